package screenshot

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

// Region is a rectangle of the virtual desktop in pixel coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Point is a position on the virtual desktop.
type Point struct {
	X int
	Y int
}

// Validate reports whether the region has a positive area.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width, r.Height)
	}
	return nil
}

// Bounds returns the region as an image rectangle in desktop coordinates.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Relative translates a desktop point into region-local coordinates and
// reports whether it falls inside [0,width)x[0,height).
func (r Region) Relative(p Point) (Point, bool) {
	local := Point{X: p.X - r.X, Y: p.Y - r.Y}
	inside := local.X >= 0 && local.X < r.Width && local.Y >= 0 && local.Y < r.Height
	return local, inside
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// ParseRegion reads "x,y,width,height".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	return r, r.Validate()
}

// Spec formats the region the way ParseRegion reads it.
func (r Region) Spec() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Grabber copies the pixels of a region out of the shared screen buffer.
type Grabber interface {
	Grab(region Region) (*image.RGBA, error)
}

// ScreenGrabber grabs from the live desktop.
type ScreenGrabber struct{}

// NewScreenGrabber returns a grabber backed by the platform screenshot API.
func NewScreenGrabber() ScreenGrabber { return ScreenGrabber{} }

func (ScreenGrabber) Grab(region Region) (*image.RGBA, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(region.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", region, err)
	}
	return img, nil
}

// Displays returns the bounds of each active display in desktop coordinates.
func Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	displays := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		displays = append(displays, screenshot.GetDisplayBounds(i))
	}
	return displays
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (image.Rectangle, error) {
	return unionBounds(Displays())
}

func unionBounds(displays []image.Rectangle) (image.Rectangle, error) {
	if len(displays) == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := displays[0]
	for _, d := range displays[1:] {
		union = union.Union(d)
	}
	return union, nil
}

// ClampToDesktop trims the region to the virtual desktop. It returns an
// error when nothing of the region is visible.
func ClampToDesktop(region Region) (Region, error) {
	desktop, err := VirtualBounds()
	if err != nil {
		return Region{}, err
	}
	clipped := region.Bounds().Intersect(desktop)
	if clipped.Empty() {
		return Region{}, fmt.Errorf("region %s lies outside the desktop %v", region, desktop)
	}
	return Region{X: clipped.Min.X, Y: clipped.Min.Y, Width: clipped.Dx(), Height: clipped.Dy()}, nil
}
