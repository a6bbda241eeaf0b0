// Package tray puts the recorder's controls in the system tray. Menu clicks
// become commands for the event loop.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"

	"screen-recorder/src/messages"
	"screen-recorder/src/tray/icon"
)

type Config struct {
	Title   string
	Tooltip string
	// Post receives each menu command.
	Post func(messages.Command)
	// OnExit runs after the tray has shut down.
	OnExit func()
}

var (
	mu      sync.Mutex
	ready   bool
	lastTip string
)

// Run blocks on the tray's message loop until Quit is called. It must be
// called from the main goroutine.
func Run(cfg Config) {
	systray.Run(func() { onReady(cfg) }, func() {
		if cfg.OnExit != nil {
			cfg.OnExit()
		}
	})
}

func onReady(cfg Config) {
	systray.SetIcon(icon.Bytes())
	systray.SetTitle(cfg.Title)
	systray.SetTooltip(cfg.Tooltip)

	mStart := systray.AddMenuItem("Start Recording", "Select a region and start recording")
	mPause := systray.AddMenuItem("Pause / Resume", "Pause or resume the recording")
	mStop := systray.AddMenuItem("Stop Recording", "Stop and save the recording")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the recorder")

	mu.Lock()
	ready = true
	if lastTip != "" {
		systray.SetTooltip(lastTip)
	}
	mu.Unlock()

	post := cfg.Post
	if post == nil {
		post = func(cmd messages.Command) { log.Printf("tray: no handler for %s", cmd.Kind) }
	}
	go func() {
		for {
			select {
			case <-mStart.ClickedCh:
				post(messages.Command{Kind: messages.Start, Source: "tray"})
			case <-mPause.ClickedCh:
				post(messages.Command{Kind: messages.TogglePause, Source: "tray"})
			case <-mStop.ClickedCh:
				post(messages.Command{Kind: messages.Stop, Source: "tray"})
			case <-mQuit.ClickedCh:
				post(messages.Command{Kind: messages.Close, Source: "tray"})
			}
		}
	}()
}

// UpdateTooltip shows the recorder status on hover. Safe before Run.
func UpdateTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	lastTip = text
	if ready {
		systray.SetTooltip(text)
	}
}

// Quit ends Run.
func Quit() { systray.Quit() }
