package overlay

import (
	"context"
	"errors"

	"screen-recorder/src/screenshot"
)

var (
	// ErrDegenerateSelection marks a drag with zero width or height. It is a
	// "try again" signal: the gesture resets and selection continues.
	ErrDegenerateSelection = errors.New("selection has zero width or height, try again")
	// ErrNothingSelected is returned when confirm is requested before a drag.
	ErrNothingSelected = errors.New("no region selected yet")
	// ErrSelectionCancelled is what callers report when Select returns cancelled.
	ErrSelectionCancelled = errors.New("region selection cancelled")
)

// Selector defines a synchronous region-selection API.
// Returns (region, cancelled, error). If cancelled is true, region is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, bool, error)
}

// Normalize turns two corner points into a top-left-origin rectangle.
func Normalize(a, b screenshot.Point) screenshot.Region {
	x0, x1 := a.X, b.X
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := a.Y, b.Y
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return screenshot.Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Gesture tracks one press, drag, release sequence. A completed drag stays
// pending until Confirm; a new press starts over.
type Gesture struct {
	pressing bool
	anchor   screenshot.Point
	current  screenshot.Point
	pending  *screenshot.Region
}

func (g *Gesture) Press(p screenshot.Point) {
	g.pressing = true
	g.anchor = p
	g.current = p
	g.pending = nil
}

func (g *Gesture) Drag(p screenshot.Point) {
	if g.pressing {
		g.current = p
	}
}

// Pressing reports whether a drag is in progress.
func (g *Gesture) Pressing() bool { return g.pressing }

// Current returns the rectangle spanned so far, for live feedback.
func (g *Gesture) Current() screenshot.Region {
	return Normalize(g.anchor, g.current)
}

// Release finishes the drag. A degenerate rectangle yields
// ErrDegenerateSelection and leaves nothing pending.
func (g *Gesture) Release(p screenshot.Point) error {
	if !g.pressing {
		return nil
	}
	g.pressing = false
	g.current = p
	r := Normalize(g.anchor, p)
	if r.Width == 0 || r.Height == 0 {
		g.pending = nil
		return ErrDegenerateSelection
	}
	g.pending = &r
	return nil
}

// Pending returns the completed but unconfirmed selection.
func (g *Gesture) Pending() (screenshot.Region, bool) {
	if g.pending == nil {
		return screenshot.Region{}, false
	}
	return *g.pending, true
}

// Confirm yields the pending selection.
func (g *Gesture) Confirm() (screenshot.Region, error) {
	if g.pending == nil {
		return screenshot.Region{}, ErrNothingSelected
	}
	return *g.pending, nil
}

// Fixed is a Selector that returns a preset region, used for scripted
// recordings.
type Fixed struct {
	Region screenshot.Region
}

func (f Fixed) Select(ctx context.Context) (screenshot.Region, bool, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Region{}, false, err
	}
	if err := f.Region.Validate(); err != nil {
		return screenshot.Region{}, false, ErrDegenerateSelection
	}
	return f.Region, false, nil
}
