package hotkey

import (
	"fmt"

	gohook "github.com/robotn/gohook"
)

type keyState struct {
	name     string
	keycodes []uint16
	pressed  bool
}

// Combo detects one key combination in a stream of key events. It is not
// safe for concurrent use; each listener goroutine owns its own Combo.
type Combo struct {
	spec string
	keys []keyState
}

// ParseCombo builds a matcher for a string such as "Ctrl+Alt+R".
func ParseCombo(spec string) (*Combo, error) {
	names := parseHotkey(spec)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", spec)
	}
	c := &Combo{spec: spec}
	for _, name := range names {
		codes := keyNameToKeycodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("hotkey %q: cannot map key %q", spec, name)
		}
		c.keys = append(c.keys, keyState{name: name, keycodes: codes})
	}
	return c, nil
}

func (c *Combo) String() string { return c.spec }

// Feed updates key state and reports whether the event completed the
// combination. State resets after a match so holding the keys fires once.
func (c *Combo) Feed(ev gohook.Event) bool {
	switch ev.Kind {
	case gohook.KeyDown:
		if !c.set(ev.Keycode, true) {
			return false
		}
		for i := range c.keys {
			if !c.keys[i].pressed {
				return false
			}
		}
		for i := range c.keys {
			c.keys[i].pressed = false
		}
		return true
	case gohook.KeyUp:
		c.set(ev.Keycode, false)
	}
	return false
}

func (c *Combo) set(keycode uint16, pressed bool) bool {
	matched := false
	for i := range c.keys {
		for _, code := range c.keys[i].keycodes {
			if code == keycode {
				c.keys[i].pressed = pressed
				matched = true
				break
			}
		}
	}
	return matched
}
