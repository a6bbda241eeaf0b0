package overlay

import (
	"context"
	"errors"
	"log"

	gohook "github.com/robotn/gohook"

	"screen-recorder/src/hotkey"
	"screen-recorder/src/screenshot"
)

// libuiohook button number for the primary button.
const leftButton uint16 = 1

// HookSelector turns global mouse and keyboard events into a region. The
// whole virtual desktop is the selection surface: the user drags with the
// left button, presses Enter to confirm and Escape to cancel.
type HookSelector struct {
	Events hotkey.EventSource
	// Clamp trims the confirmed region to the desktop. Defaults to
	// screenshot.ClampToDesktop.
	Clamp func(screenshot.Region) (screenshot.Region, error)
	// Feedback, when set, receives user-facing prompts such as retry hints.
	Feedback func(string)
}

func NewHookSelector(events hotkey.EventSource, feedback func(string)) *HookSelector {
	return &HookSelector{Events: events, Clamp: screenshot.ClampToDesktop, Feedback: feedback}
}

func (s *HookSelector) say(msg string) {
	log.Printf("overlay: %s", msg)
	if s.Feedback != nil {
		s.Feedback(msg)
	}
}

func (s *HookSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	events, cancel := s.Events.Subscribe()
	defer cancel()

	s.say("drag to select a region, Enter to confirm, Esc to cancel")
	var g Gesture
	for {
		select {
		case <-ctx.Done():
			return screenshot.Region{}, false, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return screenshot.Region{}, false, errors.New("input hook closed during selection")
			}
			region, done, cancelled, err := s.handle(&g, ev)
			if done {
				return region, cancelled, err
			}
		}
	}
}

// handle applies one event; done reports that Select should return.
func (s *HookSelector) handle(g *Gesture, ev gohook.Event) (region screenshot.Region, done, cancelled bool, err error) {
	p := screenshot.Point{X: int(ev.X), Y: int(ev.Y)}
	switch ev.Kind {
	// gohook kinds carry libuiohook event types: MouseDown is the press,
	// MouseHold the release. MouseUp (clicked) only follows a release.
	case gohook.MouseDown:
		if ev.Button == leftButton {
			g.Press(p)
		}
	case gohook.MouseDrag:
		g.Drag(p)
	case gohook.MouseHold:
		if ev.Button != leftButton || !g.Pressing() {
			return
		}
		if err := g.Release(p); errors.Is(err, ErrDegenerateSelection) {
			s.say(err.Error())
			return
		}
		r, _ := g.Pending()
		s.say("selected " + r.String() + ", press Enter to confirm")
	case gohook.KeyDown:
		switch ev.Keycode {
		case hotkey.KeyEscape:
			return screenshot.Region{}, true, true, nil
		case hotkey.KeyEnter, hotkey.KeyNumEnter:
			r, err := g.Confirm()
			if err != nil {
				s.say(err.Error())
				return
			}
			if s.Clamp != nil {
				clamped, err := s.Clamp(r)
				if err != nil {
					s.say(err.Error())
					return
				}
				r = clamped
			}
			return r, true, false, nil
		}
	}
	return
}
