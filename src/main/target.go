package main

import (
	"errors"
	"fmt"
	"log"

	"screen-recorder/src/clipboard"
	"screen-recorder/src/config"
	"screen-recorder/src/mux"
	"screen-recorder/src/session"
)

// residentTarget mirrors session progress into the tray tooltip and toasts.
type residentTarget struct {
	idle     string
	copyPath bool
	tooltip  func(string)
	notify   func(string)
	copy     func(string) error
}

func newResidentTarget(cfg *config.Config, tooltip, notify func(string)) *residentTarget {
	return &residentTarget{
		idle:     idleTooltip(cfg),
		copyPath: cfg.CopyPathToClipboard,
		tooltip:  tooltip,
		notify:   notify,
		copy:     clipboard.Write,
	}
}

func (t *residentTarget) OnState(st session.State) {
	switch st {
	case session.Idle:
		t.tooltip(t.idle)
	case session.Paused:
		t.tooltip(appTitle + " - Paused")
	case session.Stopping, session.Finalizing:
		t.tooltip(appTitle + " - Saving...")
	}
}

func (t *residentTarget) OnCountdown(remaining int) {
	msg := fmt.Sprintf("Recording starts in %d...", remaining)
	t.tooltip(appTitle + " - " + msg)
	t.notify(msg)
}

func (t *residentTarget) OnStatus(text string) { t.tooltip(appTitle + " - " + text) }

func (t *residentTarget) OnWarning(err error) { t.notify(warningText(err)) }

func (t *residentTarget) OnFinished(res session.Result, err error) {
	switch {
	case res.Outcome == mux.Failed:
		t.notify(fmt.Sprintf("Could not save the recording. Raw video kept at %s", res.RecoveryPath))
	case res.Path == "":
		t.notify("Recording cancelled")
		return
	case res.Outcome == mux.Fallback:
		t.notify(fmt.Sprintf("Saved without audio: %s", res.Path))
	default:
		t.notify(fmt.Sprintf("Recording saved: %s", res.Path))
	}
	if err != nil {
		log.Printf("recording finished with error: %v", err)
	}
	if t.copyPath && res.Path != "" {
		if cerr := t.copy(res.Path); cerr != nil {
			log.Printf("copy path to clipboard: %v", cerr)
		}
	}
}

func warningText(err error) string {
	switch {
	case errors.Is(err, mux.ErrToolMissing):
		return "FFmpeg not found; the recording will be saved without audio"
	case errors.Is(err, mux.ErrToolFailure):
		return "FFmpeg failed; the recording will be saved without audio"
	default:
		return fmt.Sprintf("Warning: %v", err)
	}
}
