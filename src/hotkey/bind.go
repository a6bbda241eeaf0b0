package hotkey

import (
	"fmt"
	"log"

	gohook "github.com/robotn/gohook"
)

// Binding pairs a hotkey string with the action it triggers.
type Binding struct {
	Name   string
	Combo  string
	Action func()
}

// Listen registers the combination on src and invokes callback each time it
// is pressed. The returned func unregisters it.
func Listen(src EventSource, hotkeyConfig string, callback func()) (func(), error) {
	combo, err := ParseCombo(hotkeyConfig)
	if err != nil {
		return nil, err
	}
	events, cancel := src.Subscribe()
	log.Printf("hotkey: listener configured for %s", combo)

	go func() {
		for ev := range events {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			if combo.Feed(ev) {
				log.Printf("hotkey: %s pressed", combo)
				if callback != nil {
					callback()
				}
			}
		}
	}()
	return cancel, nil
}

// ListenAll registers every binding. A binding with an empty combo is
// skipped. On error, bindings already registered are released.
func ListenAll(src EventSource, bindings []Binding) (func(), error) {
	var cancels []func()
	stop := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, b := range bindings {
		if b.Combo == "" {
			log.Printf("hotkey: %s has no combination, skipping", b.Name)
			continue
		}
		cancel, err := Listen(src, b.Combo, b.Action)
		if err != nil {
			stop()
			return nil, fmt.Errorf("%s hotkey: %w", b.Name, err)
		}
		cancels = append(cancels, cancel)
	}
	return stop, nil
}
