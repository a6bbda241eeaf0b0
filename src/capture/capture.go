// Package capture runs the paced screen-grab loop that feeds the video sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"screen-recorder/src/screenshot"
	"screen-recorder/src/video"
)

// ErrCaptureFailure wraps any grab or encode error that aborted the loop.
var ErrCaptureFailure = errors.New("capture failure")

// PauseQuantum is how long the loop sleeps per iteration while paused.
const PauseQuantum = 100 * time.Millisecond

// Options configures one FrameCapture loop.
type Options struct {
	Region          screenshot.Region
	FrameRate       int
	HighlightCursor bool
	Grabber         screenshot.Grabber
	Pointer         screenshot.Pointer
	Sink            video.Sink
}

// Stats is a snapshot of loop progress.
type Stats struct {
	Frames   int
	Active   time.Duration
	Paused   bool
	Finished bool
}

// FPS is the measured rate over unpaused time.
func (s Stats) FPS() float64 {
	if s.Active <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Active.Seconds()
}

// Loop grabs the region at the configured rate until its context ends.
type Loop struct {
	opts     Options
	interval time.Duration

	paused  atomic.Bool
	started atomic.Bool
	frames  atomic.Int64

	mu          sync.Mutex
	start       time.Time
	end         time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	done chan struct{}
	err  error
}

// New validates opts and returns an idle loop.
func New(opts Options) (*Loop, error) {
	if err := opts.Region.Validate(); err != nil {
		return nil, err
	}
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", opts.FrameRate)
	}
	if opts.Grabber == nil {
		return nil, errors.New("Grabber is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("Sink is required")
	}
	if opts.HighlightCursor && opts.Pointer == nil {
		opts.Pointer = screenshot.RobotPointer{}
	}
	return &Loop{
		opts:     opts,
		interval: time.Second / time.Duration(opts.FrameRate),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop goroutine. Cancelling ctx is the stop signal.
func (l *Loop) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("capture loop already started")
	}
	l.mu.Lock()
	l.start = time.Now()
	l.mu.Unlock()
	go l.run(ctx)
	return nil
}

// Pause stops grabbing without ending the loop or closing the sink.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused.Swap(true) {
		return
	}
	l.pausedAt = time.Now()
}

// Resume continues grabbing into the same sink.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.paused.Swap(false) {
		return
	}
	if !l.pausedAt.IsZero() {
		l.pausedTotal += time.Since(l.pausedAt)
		l.pausedAt = time.Time{}
	}
}

// Wait blocks until the loop has exited and the sink is closed.
func (l *Loop) Wait() error {
	<-l.done
	return l.err
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{Frames: int(l.frames.Load()), Paused: l.paused.Load()}
	if !l.start.IsZero() {
		now := time.Now()
		if !l.end.IsZero() {
			now = l.end
		}
		s.Active = l.activeLocked(now)
	}
	select {
	case <-l.done:
		s.Finished = true
	default:
	}
	return s
}

// activeLocked is the unpaused wall time since the loop started.
func (l *Loop) activeLocked(now time.Time) time.Duration {
	paused := l.pausedTotal
	if !l.pausedAt.IsZero() {
		paused += now.Sub(l.pausedAt)
	}
	return now.Sub(l.start) - paused
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	log.Printf("capture: loop started region=%s fps=%d cursor=%v", l.opts.Region, l.opts.FrameRate, l.opts.HighlightCursor)

	err := l.loop(ctx)
	l.mu.Lock()
	l.end = time.Now()
	l.mu.Unlock()
	if cerr := l.opts.Sink.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: %v", ErrCaptureFailure, cerr)
	}
	l.err = err
	if err != nil {
		log.Printf("capture: loop aborted after %d frames: %v", l.frames.Load(), err)
		return
	}
	log.Printf("capture: loop stopped after %d frames", l.frames.Load())
}

func (l *Loop) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if l.paused.Load() {
			if !sleepCtx(ctx, PauseQuantum) {
				return nil
			}
			continue
		}
		if err := l.captureFrame(); err != nil {
			return err
		}
		n := l.frames.Add(1)

		l.mu.Lock()
		active := l.activeLocked(time.Now())
		l.mu.Unlock()
		if !sleepCtx(ctx, paceDelay(l.interval, active, int(n))) {
			return nil
		}
	}
}

func (l *Loop) captureFrame() error {
	img, err := l.opts.Grabber.Grab(l.opts.Region)
	if err != nil {
		return fmt.Errorf("%w: grab: %v", ErrCaptureFailure, err)
	}
	if l.opts.HighlightCursor {
		if p, inside := l.opts.Region.Relative(l.opts.Pointer.Location()); inside {
			drawMarker(img, p.X, p.Y)
		}
	}
	if err := l.opts.Sink.WriteFrame(img); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrCaptureFailure, err)
	}
	return nil
}

// paceDelay returns how long to sleep so that frame n+1 starts at
// n*interval of active time after the loop start. Late frames get zero.
func paceDelay(interval, active time.Duration, framesWritten int) time.Duration {
	d := time.Duration(framesWritten)*interval - active
	if d < 0 {
		return 0
	}
	return d
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
