//go:build !windows

package overlay

import "screen-recorder/src/hotkey"

// NewDefault returns the hook-driven selector; there is no drawn overlay on
// this platform.
func NewDefault(events hotkey.EventSource, feedback func(string)) Selector {
	return NewHookSelector(events, feedback)
}
