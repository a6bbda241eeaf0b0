// Package notification shows desktop toasts for recorder milestones.
package notification

import (
	"log"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

const appName = "Screen Recorder"

var enabled atomic.Bool

func init() { enabled.Store(true) }

// SetEnabled turns toasts on or off; disabled toasts are only logged.
func SetEnabled(on bool) { enabled.Store(on) }

// Show displays a toast without blocking the caller.
func Show(message string) {
	log.Printf("notification: %s", message)
	if !enabled.Load() {
		return
	}
	go func() {
		if err := beeep.Notify(appName, message, ""); err != nil {
			log.Printf("notification: failed to show: %v", err)
		}
	}()
}

// ShowBlockingError reports a startup failure with an alert sound.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
	if err := beeep.Alert(title, message, ""); err != nil {
		log.Printf("notification: failed to show alert: %v", err)
	}
}
