package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screen-recorder/src/config"
	"screen-recorder/src/eventloop"
	"screen-recorder/src/hotkey"
	"screen-recorder/src/logutil"
	"screen-recorder/src/messages"
	"screen-recorder/src/mux"
	"screen-recorder/src/notification"
	"screen-recorder/src/overlay"
	"screen-recorder/src/runtimeinit"
	"screen-recorder/src/screenshot"
	"screen-recorder/src/session"
	"screen-recorder/src/singleinstance"
	"screen-recorder/src/tray"
)

const appTitle = "Screen Recorder"

var errAlreadyRunning = errors.New("a recorder is already running")

type mainOptions struct {
	configPath string
	outputDir  string
	verbose    bool
}

// delegationClient is the part of singleinstance.Client used before startup.
type delegationClient interface {
	Send(ctx context.Context, cmd messages.Command) (bool, messages.Reply, error)
}

func main() {
	// Ensure DPI awareness before querying monitor metrics or hooking input.
	enableDPIAwareness()

	// The tray's message loop must own the main thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-recorder"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-recorder",
		Short:         "Resident screen-region recorder with tray and hotkeys",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(*opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to recorder.toml")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Directory for finished recordings")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")
	return cmd
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"config", "output-dir", "verbose"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}

	return normalized
}

// handleExistingResident reports whether another recorder already answers on
// the loopback port. Probe errors count as no resident.
func handleExistingResident(ctx context.Context, client delegationClient) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	delegated, reply, err := client.Send(ctx, messages.Command{Kind: messages.Status, Source: "startup"})
	if err != nil {
		log.Printf("Pre-flight: probe failed: %v; assuming no resident", err)
		return false
	}
	if !delegated {
		log.Printf("Pre-flight: no resident detected")
		return false
	}
	log.Printf("Pre-flight: resident already running (%s)", reply.Text)
	return true
}

func runResident(opts mainOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  config.LoadOptions{ConfigPath: opts.configPath, OutputDir: opts.outputDir},
		SetupLogging: setupLogging(opts.verbose),
	})
	if err != nil {
		notification.ShowBlockingError(appTitle, err.Error())
		return err
	}

	ports := cfg.Ports()
	if handleExistingResident(ctx, singleinstance.NewClient(ports)) {
		notification.Show("Screen Recorder is already running")
		return errAlreadyRunning
	}
	logMonitorConfiguration()

	log.Printf("Screen Recorder initialized")
	log.Printf("Hotkeys: start=%s pause=%s stop=%s", cfg.HotkeyStart, cfg.HotkeyPause, cfg.HotkeyStop)
	log.Printf("Capture: %d fps, cursor=%t, audio=%t", cfg.FrameRate, cfg.HighlightCursor, cfg.AudioEnabled)

	hub := hotkey.NewHub()
	defer hub.Close()

	target := newResidentTarget(cfg, tray.UpdateTooltip, notification.Show)
	sess := session.New(session.Options{
		Pointer: screenshot.RobotPointer{},
		Muxer: mux.Muxer{
			FFmpegPath:   cfg.FFmpegPath,
			AudioCodec:   cfg.AudioCodec,
			AudioBitrate: cfg.AudioBitrate,
			Stderr:       func(line string) { log.Printf("ffmpeg: %s", line) },
		},
		Target:      target,
		TempDir:     cfg.TempDir,
		OutputDir:   cfg.OutputDir,
		LockPath:    filepath.Join(cfg.TempDir, "screen-recorder.lock"),
		JPEGQuality: cfg.JPEGQuality,
	})

	srv := singleinstance.NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("claim loopback port: %w", err)
	}
	defer srv.Close()

	loop := eventloop.New(eventloop.Options{
		Recorder:     sess,
		Selector:     overlay.NewDefault(hub, notification.Show),
		Capture:      cfg.Capture,
		ConfirmClose: closeConfirmer(),
		Server:       srv,
	})

	stopHotkeys, err := hotkey.ListenAll(hub, hotkeyBindings(cfg, loop.Post))
	if err != nil {
		return err
	}
	defer stopHotkeys()

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("event loop stopped: %v", err)
		}
		tray.Quit()
	}()

	// Handle SIGINT/SIGTERM: save whatever is being recorded, then exit.
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Printf("signal received, shutting down")
		sess.RequestClose(nil)
		cancel()
	}()

	tray.Run(tray.Config{
		Title:   appTitle,
		Tooltip: idleTooltip(cfg),
		Post:    loop.Post,
		OnExit:  cancel,
	})

	// A tray exit that bypassed the loop still must not lose a recording.
	sess.RequestClose(nil)
	return nil
}

func hotkeyBindings(cfg *config.Config, post func(messages.Command)) []hotkey.Binding {
	bind := func(name, combo string, kind messages.Kind) hotkey.Binding {
		return hotkey.Binding{Name: name, Combo: combo, Action: func() {
			post(messages.Command{Kind: kind, Source: "hotkey"})
		}}
	}
	return []hotkey.Binding{
		bind("start", cfg.HotkeyStart, messages.Start),
		bind("pause", cfg.HotkeyPause, messages.TogglePause),
		bind("stop", cfg.HotkeyStop, messages.Stop),
	}
}

// closeConfirmer asks before quitting mid-recording: a dialog where the
// platform has one, otherwise a repeat of the quit request.
func closeConfirmer() func() bool {
	if tray.HasDialogs {
		return func() bool {
			return tray.AskYesNo(appTitle, "A recording is in progress. Stop and save it, then quit?")
		}
	}
	guard := &eventloop.QuitGuard{
		Window: 5 * time.Second,
		Warn:   func() { notification.Show("Recording in progress. Quit again within 5 seconds to stop and exit.") },
	}
	return guard.Confirm
}

// logMonitorConfiguration records the display layout regions are captured
// from. Negative origins are secondary monitors left of or above the primary.
func logMonitorConfiguration() {
	displays := screenshot.Displays()
	log.Printf("monitor: %d active displays", len(displays))
	for i, d := range displays {
		log.Printf("monitor: display %d at %d,%d size %dx%d", i, d.Min.X, d.Min.Y, d.Dx(), d.Dy())
	}
	if desktop, err := screenshot.VirtualBounds(); err == nil {
		log.Printf("monitor: virtual desktop %v", desktop)
	}
	logPlatformMetrics()
}

func idleTooltip(cfg *config.Config) string {
	return fmt.Sprintf("%s - Press %s to record", appTitle, cfg.HotkeyStart)
}

func setupLogging(verbose bool) func(bool, string) {
	return func(enableFileLogging bool, dir string) {
		if verbose {
			logutil.SetupVerbose()
			return
		}
		logutil.Setup(enableFileLogging, dir)
	}
}
