package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"screen-recorder/src/config"
	"screen-recorder/src/eventloop"
	"screen-recorder/src/hotkey"
	"screen-recorder/src/mux"
	"screen-recorder/src/overlay"
	"screen-recorder/src/runtimeinit"
	"screen-recorder/src/screenshot"
	"screen-recorder/src/session"
)

type recordOptions struct {
	region       string
	selectRegion bool
	output       string
	outputDir    string
	duration     time.Duration
	pauseAt      time.Duration
	pauseFor     time.Duration
	fps          int
	cursor       bool
	audio        bool
	device       string
}

func newRecordCmd(opts *cliOptions) *cobra.Command {
	ro := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a region in this process until Ctrl+C or --duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ro.validate(); err != nil {
				return err
			}
			lo := loadOptions(opts)
			lo.FrameRate = ro.fps
			lo.AudioDevice = ro.device
			lo.OutputDir = ro.outputDir
			if cmd.Flags().Changed("cursor") {
				v := ro.cursor
				lo.HighlightCursor = &v
			}
			if cmd.Flags().Changed("audio") {
				v := ro.audio
				lo.AudioEnabled = &v
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runRecord(ctx, *ro, lo, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&ro.region, "region", "", "Region as x,y,w,h in desktop pixels")
	f.BoolVar(&ro.selectRegion, "select", false, "Drag to select the region, Enter to confirm, Esc to cancel")
	f.StringVar(&ro.output, "output", "", "Output file (default: timestamped name in the output directory)")
	f.StringVar(&ro.outputDir, "output-dir", "", "Directory for the timestamped output name")
	f.DurationVar(&ro.duration, "duration", 0, "Stop after this much recorded time (0 = until Ctrl+C)")
	f.DurationVar(&ro.pauseAt, "pause-at", 0, "Pause this long after recording starts")
	f.DurationVar(&ro.pauseFor, "pause-for", 0, "Resume after being paused this long")
	f.IntVar(&ro.fps, "fps", 0, fmt.Sprintf("Frame rate, one of %v", session.FrameRates))
	f.BoolVar(&ro.cursor, "cursor", true, "Draw a marker at the mouse position")
	f.BoolVar(&ro.audio, "audio", true, "Record the audio input device")
	f.StringVar(&ro.device, "device", "", "Audio input device name (default device when empty)")
	return cmd
}

func (ro recordOptions) validate() error {
	switch {
	case ro.region == "" && !ro.selectRegion:
		return errors.New("either --region or --select is required")
	case ro.region != "" && ro.selectRegion:
		return errors.New("--region and --select are mutually exclusive")
	case ro.duration < 0 || ro.pauseAt < 0 || ro.pauseFor < 0:
		return errors.New("durations must not be negative")
	case (ro.pauseAt > 0) != (ro.pauseFor > 0):
		return errors.New("--pause-at and --pause-for must be given together")
	case ro.duration > 0 && ro.pauseAt >= ro.duration:
		return fmt.Errorf("--pause-at %s must be before --duration %s", ro.pauseAt, ro.duration)
	}
	if ro.region != "" {
		if _, err := parseRegionFlag(ro.region); err != nil {
			return err
		}
	}
	return nil
}

func (ro recordOptions) schedule() schedule {
	return schedule{duration: ro.duration, pauseAt: ro.pauseAt, pauseFor: ro.pauseFor}
}

func parseRegionFlag(s string) (screenshot.Region, error) {
	r, err := screenshot.ParseRegion(s)
	if err != nil {
		return screenshot.Region{}, fmt.Errorf("invalid --region: %w", err)
	}
	return r, nil
}

func runRecord(ctx context.Context, ro recordOptions, lo config.LoadOptions, out io.Writer) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: lo})
	if err != nil {
		return err
	}

	region, err := resolveRegion(ctx, ro, out)
	if err != nil {
		return err
	}

	output := ro.output
	if output != "" {
		if output, err = filepath.Abs(output); err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
	}

	target := newCLITarget(out)
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
	if err := sess.Start(region, cfg.Capture(), output); err != nil {
		return err
	}
	target.printf("Recording %s, press Ctrl+C to stop\n", region)

	res, err := drive(ctx, sess, target, ro.schedule())
	target.printf("%s\n", eventloop.FinishedReply(res, err).Text)
	if err != nil {
		return err
	}
	if res.Outcome == mux.Failed {
		return errors.New("recording could not be saved")
	}
	return nil
}

func resolveRegion(ctx context.Context, ro recordOptions, out io.Writer) (screenshot.Region, error) {
	if ro.region != "" {
		return parseRegionFlag(ro.region)
	}
	hub := hotkey.NewHub()
	defer hub.Close()
	fmt.Fprintln(out, "Drag to select a region, Enter to confirm, Esc to cancel")
	sel := overlay.NewDefault(hub, func(msg string) { fmt.Fprintln(out, msg) })
	region, cancelled, err := sel.Select(ctx)
	if err != nil {
		return screenshot.Region{}, err
	}
	if cancelled {
		return screenshot.Region{}, overlay.ErrSelectionCancelled
	}
	return region, nil
}

// recorder is the part of session.Session the CLI drives.
type recorder interface {
	Pause() error
	Resume() error
	Stop() (session.Result, error)
}

type schedule struct {
	duration time.Duration
	pauseAt  time.Duration
	pauseFor time.Duration
}

// drive applies the stop and pause schedule once recording has begun. The
// duration counts recorded time, so a scheduled pause extends the wall time.
func drive(ctx context.Context, rec recorder, t *cliTarget, sch schedule) (session.Result, error) {
	select {
	case <-t.started:
	case <-t.finished:
		return t.result()
	case <-ctx.Done():
		return rec.Stop()
	}

	var stopC, pauseC, resumeC <-chan time.Time
	if sch.duration > 0 {
		timer := time.NewTimer(sch.duration + sch.pauseFor)
		defer timer.Stop()
		stopC = timer.C
	}
	if sch.pauseAt > 0 {
		timer := time.NewTimer(sch.pauseAt)
		defer timer.Stop()
		pauseC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return rec.Stop()
		case <-stopC:
			return rec.Stop()
		case <-t.finished:
			return t.result()
		case <-pauseC:
			pauseC = nil
			if err := rec.Pause(); err != nil {
				log.Printf("record: scheduled pause: %v", err)
				continue
			}
			timer := time.NewTimer(sch.pauseFor)
			defer timer.Stop()
			resumeC = timer.C
		case <-resumeC:
			resumeC = nil
			if err := rec.Resume(); err != nil {
				log.Printf("record: scheduled resume: %v", err)
			}
		}
	}
}

// cliTarget prints session progress and signals the recording milestones.
type cliTarget struct {
	mu  sync.Mutex
	out io.Writer

	started    chan struct{}
	startOnce  sync.Once
	finished   chan struct{}
	finishOnce sync.Once
	res        session.Result
	err        error
}

func newCLITarget(out io.Writer) *cliTarget {
	return &cliTarget{out: out, started: make(chan struct{}), finished: make(chan struct{})}
}

func (t *cliTarget) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *cliTarget) OnState(st session.State) {
	switch st {
	case session.Recording:
		t.startOnce.Do(func() { close(t.started) })
	case session.Paused, session.Finalizing:
		t.printf("%s\n", st)
	}
}

func (t *cliTarget) OnCountdown(remaining int) { t.printf("Recording starts in %d...\n", remaining) }

func (t *cliTarget) OnStatus(text string) { t.printf("%s\n", text) }

func (t *cliTarget) OnWarning(err error) { t.printf("warning: %v\n", err) }

func (t *cliTarget) OnFinished(res session.Result, err error) {
	t.mu.Lock()
	t.res, t.err = res, err
	t.mu.Unlock()
	t.finishOnce.Do(func() { close(t.finished) })
}

func (t *cliTarget) result() (session.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res, t.err
}
