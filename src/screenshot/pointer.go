package screenshot

import "github.com/go-vgo/robotgo"

// Pointer reports the current mouse position in desktop coordinates.
type Pointer interface {
	Location() Point
}

// RobotPointer queries the OS cursor through robotgo.
type RobotPointer struct{}

func (RobotPointer) Location() Point {
	x, y := robotgo.Location()
	return Point{X: x, Y: y}
}
