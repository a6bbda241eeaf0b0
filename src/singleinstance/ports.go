package singleinstance

import "fmt"

const (
	defaultPortStart = 49500
	defaultPortEnd   = 49550
	minPort          = 1024
	maxPort          = 65535
)

// PortRange is the inclusive set of loopback ports a resident may own. The
// resident binds Start; clients scan the whole range.
type PortRange struct {
	Start int
	End   int
}

func DefaultPortRange() PortRange {
	return PortRange{Start: defaultPortStart, End: defaultPortEnd}
}

// Normalize fills zero bounds from the defaults, clamps to [1024, 65535]
// and orders the bounds.
func (r PortRange) Normalize() PortRange {
	if r.Start == 0 {
		r.Start = defaultPortStart
	}
	if r.End == 0 {
		r.End = defaultPortEnd
	}
	r.Start = clampPort(r.Start)
	r.End = clampPort(r.End)
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func (r PortRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

func clampPort(p int) int {
	if p < minPort {
		return minPort
	}
	if p > maxPort {
		return maxPort
	}
	return p
}
