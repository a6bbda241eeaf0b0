package eventloop

import (
	"sync"
	"time"
)

// QuitGuard confirms a destructive quit by requiring a second request
// within Window. The first request only arms it and calls Warn.
type QuitGuard struct {
	Window time.Duration
	Warn   func()
	Now    func() time.Time

	mu    sync.Mutex
	armed time.Time
}

func (g *QuitGuard) Confirm() bool {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	window := g.Window
	if window <= 0 {
		window = 5 * time.Second
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	t := now()
	if !g.armed.IsZero() && t.Sub(g.armed) <= window {
		g.armed = time.Time{}
		return true
	}
	g.armed = t
	if g.Warn != nil {
		g.Warn()
	}
	return false
}
