// Package session sequences one recording at a time: countdown, the two
// capture loops, pause and resume, and the finalize step that produces the
// output file.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"screen-recorder/src/audio"
	"screen-recorder/src/capture"
	"screen-recorder/src/fileutil"
	"screen-recorder/src/mux"
	"screen-recorder/src/screenshot"
	"screen-recorder/src/video"
)

// Merger combines the raw tracks into the final file.
type Merger interface {
	Merge(ctx context.Context, rawVideo, rawAudio, final string) (mux.Result, error)
}

type SinkFactory func(path string, width, height, fps int) (video.Sink, error)

type DeviceOpener func(name string) (audio.Device, error)

type Options struct {
	Grabber   screenshot.Grabber
	Pointer   screenshot.Pointer
	OpenSink  SinkFactory
	OpenAudio DeviceOpener
	Muxer     Merger
	Target    Target

	TempDir   string
	OutputDir string
	// LockPath, when set, names a lock file held for the whole recording so
	// two recorder processes never capture at once.
	LockPath string

	JPEGQuality    int
	CountdownTicks int
	TickInterval   time.Duration
	StatusInterval time.Duration
	Now            func() time.Time
}

// Status is a snapshot for status displays.
type Status struct {
	State       State
	Region      screenshot.Region
	Output      string
	Frames      int
	FPS         float64
	Active      time.Duration
	AudioChunks int
}

// Session owns at most one recording. All methods are safe for concurrent use.
type Session struct {
	opts Options

	mu    sync.Mutex
	state State
	rec   *recording
	last  *Result
}

type recording struct {
	id        string
	region    screenshot.Region
	cfg       CaptureConfig
	final     string
	videoPath string
	audioPath string
	lock      *flock.Flock

	cancelCountdown context.CancelFunc
	cancel          context.CancelFunc
	video           *capture.Loop
	audio           *audio.Capture

	warnMu   sync.Mutex
	warnings []error

	finishOnce sync.Once
	done       chan struct{}
	result     Result
	err        error
}

func (r *recording) warn(err error) {
	r.warnMu.Lock()
	r.warnings = append(r.warnings, err)
	r.warnMu.Unlock()
}

func (r *recording) warningsCopy() []error {
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	return append([]error(nil), r.warnings...)
}

// New returns an idle Session. Unset options get production defaults.
func New(opts Options) *Session {
	if opts.Grabber == nil {
		opts.Grabber = screenshot.NewScreenGrabber()
	}
	if opts.OpenSink == nil {
		quality := opts.JPEGQuality
		opts.OpenSink = func(path string, w, h, fps int) (video.Sink, error) {
			return video.NewMJPEGSink(path, w, h, fps, quality)
		}
	}
	if opts.OpenAudio == nil {
		opts.OpenAudio = openPortAudio
	}
	if opts.Muxer == nil {
		opts.Muxer = mux.Muxer{}
	}
	if opts.Target == nil {
		opts.Target = NopTarget{}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.CountdownTicks < 0 {
		opts.CountdownTicks = 0
	} else if opts.CountdownTicks == 0 {
		opts.CountdownTicks = 3
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{opts: opts}
}

func openPortAudio(name string) (audio.Device, error) {
	dev, err := audio.OpenDevice(name)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the outcome of the most recent finished recording.
func (s *Session) LastResult() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state}
	if s.rec == nil {
		return st
	}
	st.Region = s.rec.region
	st.Output = s.rec.final
	if s.rec.video != nil {
		vs := s.rec.video.Stats()
		st.Frames = vs.Frames
		st.FPS = vs.FPS()
		st.Active = vs.Active
	}
	if s.rec.audio != nil {
		st.AudioChunks = s.rec.audio.Chunks()
	}
	return st
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	log.Printf("session: %s", st)
	s.opts.Target.OnState(st)
}

// Start begins the countdown for a new recording of region. An empty
// output selects a timestamped name in the output directory. It fails with
// ErrBusy unless the session is Idle.
func (s *Session) Start(region screenshot.Region, cfg CaptureConfig, output string) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}

	s.mu.Lock()
	if s.state != Idle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrBusy, st)
	}

	var lock *flock.Flock
	if s.opts.LockPath != "" {
		lock = flock.New(s.opts.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("acquire recording lock: %w", err)
		}
		if !ok {
			s.mu.Unlock()
			return ErrAnotherRecording
		}
	}

	var warnings []error
	if !ValidFrameRate(cfg.FrameRate) {
		warnings = append(warnings, fmt.Errorf("frame rate %d not supported, using %d", cfg.FrameRate, DefaultFrameRate))
		cfg.FrameRate = DefaultFrameRate
	}

	now := s.opts.Now()
	if output == "" {
		output = DefaultOutputPath(s.opts.OutputDir, now)
	}
	id := uuid.NewString()[:8]
	videoPath, audioPath := tempPaths(s.opts.TempDir, now, id)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recording{
		id:              id,
		region:          region,
		cfg:             cfg,
		final:           output,
		videoPath:       videoPath,
		audioPath:       audioPath,
		lock:            lock,
		cancelCountdown: cancel,
		warnings:        warnings,
		done:            make(chan struct{}),
	}
	s.rec = rec
	s.state = CountingDown
	s.mu.Unlock()

	log.Printf("session: %s starting %s @ %d fps (audio=%t, cursor=%t) -> %s",
		id, region, cfg.FrameRate, cfg.AudioEnabled, cfg.HighlightCursor, output)
	for _, w := range warnings {
		s.opts.Target.OnWarning(w)
	}
	s.opts.Target.OnState(CountingDown)
	go s.countdown(ctx, rec)
	return nil
}

func (s *Session) countdown(ctx context.Context, rec *recording) {
	for remaining := s.opts.CountdownTicks; remaining > 0; remaining-- {
		s.opts.Target.OnCountdown(remaining)
		t := time.NewTimer(s.opts.TickInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	s.begin(rec)
}

// begin opens both sinks and launches the capture loops. The lock is held
// throughout so a concurrent Stop either cancels the countdown first or
// sees a running recording.
func (s *Session) begin(rec *recording) {
	s.mu.Lock()
	if s.rec != rec || s.state != CountingDown {
		s.mu.Unlock()
		return
	}

	sink, err := s.opts.OpenSink(rec.videoPath, rec.region.Width, rec.region.Height, rec.cfg.FrameRate)
	if err != nil {
		s.abortLocked(rec, fmt.Errorf("%w: open video: %v", capture.ErrCaptureFailure, err))
		return
	}
	loop, err := capture.New(capture.Options{
		Region:          rec.region,
		FrameRate:       rec.cfg.FrameRate,
		HighlightCursor: rec.cfg.HighlightCursor,
		Grabber:         s.opts.Grabber,
		Pointer:         s.opts.Pointer,
		Sink:            sink,
	})
	if err != nil {
		_ = sink.Close()
		s.abortLocked(rec, fmt.Errorf("%w: %v", capture.ErrCaptureFailure, err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec.cancel = cancel
	if rec.cfg.AudioEnabled {
		rec.audio = s.startAudio(ctx, rec)
	}
	_ = loop.Start(ctx) // fails only when started twice
	rec.video = loop
	s.state = Recording
	s.mu.Unlock()

	log.Printf("session: recording")
	s.opts.Target.OnState(Recording)
	go s.watch(rec)
}

// startAudio degrades to video-only on any device problem.
func (s *Session) startAudio(ctx context.Context, rec *recording) *audio.Capture {
	dev, err := s.opts.OpenAudio(rec.cfg.AudioDevice)
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
		}
		s.warnAsync(rec, fmt.Errorf("recording without audio: %w", err))
		return nil
	}
	ac := audio.New(dev, func(err error) {
		s.warnAsync(rec, fmt.Errorf("audio stopped early: %w", err))
	})
	if err := ac.Start(ctx); err != nil {
		s.warnAsync(rec, fmt.Errorf("recording without audio: %w", err))
		return nil
	}
	return ac
}

// warnAsync records the warning and notifies the target off the caller's
// goroutine, which may hold s.mu.
func (s *Session) warnAsync(rec *recording, err error) {
	log.Printf("session: warning: %v", err)
	rec.warn(err)
	go s.opts.Target.OnWarning(err)
}

// abortLocked returns a recording that never started capturing to Idle.
// It is entered with s.mu held and releases it.
func (s *Session) abortLocked(rec *recording, err error) {
	log.Printf("session: %v", err)
	_ = fileutil.RemoveIfExists(rec.videoPath)
	rec.result = Result{ID: rec.id, Region: rec.region, Warnings: rec.warningsCopy()}
	rec.err = err
	s.idleLocked(rec)
	s.mu.Unlock()
	s.announceIdle(rec)
}

// watch reports progress and turns a capture failure into a stop.
func (s *Session) watch(rec *recording) {
	ticker := time.NewTicker(s.opts.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rec.video.Done():
			if err := rec.video.Wait(); err != nil {
				log.Printf("session: capture aborted: %v", err)
				_, _ = s.finish(rec)
			}
			return
		case <-rec.done:
			return
		case <-ticker.C:
			st := rec.video.Stats()
			if st.Paused {
				s.opts.Target.OnStatus("Paused")
			} else {
				s.opts.Target.OnStatus(fmt.Sprintf("Recording... (%.1f FPS)", st.FPS()))
			}
		}
	}
}

// TogglePause flips between Recording and Paused and returns the new state.
func (s *Session) TogglePause() (State, error) {
	s.mu.Lock()
	switch s.state {
	case Recording:
		s.mu.Unlock()
		return Paused, s.Pause()
	case Paused:
		s.mu.Unlock()
		return Recording, s.Resume()
	default:
		st := s.state
		s.mu.Unlock()
		return st, fmt.Errorf("%w: cannot pause while %s", ErrNotRecording, st)
	}
}

func (s *Session) Pause() error {
	s.mu.Lock()
	switch s.state {
	case Paused:
		s.mu.Unlock()
		return nil
	case Recording:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause while %s", ErrNotRecording, st)
	}
	rec := s.rec
	rec.video.Pause()
	if rec.audio != nil {
		rec.audio.Pause()
	}
	s.state = Paused
	s.mu.Unlock()

	log.Printf("session: paused")
	s.opts.Target.OnState(Paused)
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	switch s.state {
	case Recording:
		s.mu.Unlock()
		return nil
	case Paused:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot resume while %s", ErrNotRecording, st)
	}
	rec := s.rec
	rec.video.Resume()
	if rec.audio != nil {
		rec.audio.Resume()
	}
	s.state = Recording
	s.mu.Unlock()

	log.Printf("session: resumed")
	s.opts.Target.OnState(Recording)
	return nil
}

// Stop ends the current recording and blocks until it is finalized. During
// the countdown it cancels without producing any file.
func (s *Session) Stop() (Result, error) {
	s.mu.Lock()
	rec := s.rec
	switch s.state {
	case Idle:
		s.mu.Unlock()
		return Result{}, ErrNotRecording
	case CountingDown:
		rec.cancelCountdown()
		log.Printf("session: countdown cancelled")
		rec.result = Result{ID: rec.id, Region: rec.region, Warnings: rec.warningsCopy()}
		s.idleLocked(rec)
		s.mu.Unlock()
		s.announceIdle(rec)
		return rec.result, nil
	case Stopping, Finalizing:
		st := s.state
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: already %s", ErrBusy, st)
	}
	s.mu.Unlock()
	return s.finish(rec)
}

// Wait blocks until the current recording, if any, is back at Idle.
func (s *Session) Wait() {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec != nil {
		<-rec.done
	}
}

// RequestClose prepares the host for exit. While a countdown or capture is
// active, confirm decides whether to stop; a false answer leaves the
// recording running and returns false. A nil confirm counts as yes.
func (s *Session) RequestClose(confirm func() bool) bool {
	st := s.State()
	switch {
	case st.Active():
		if confirm != nil && !confirm() {
			return false
		}
		if _, err := s.Stop(); err != nil && !errors.Is(err, ErrNotRecording) && !errors.Is(err, ErrBusy) {
			log.Printf("session: stop on close: %v", err)
		}
	}
	s.Wait()
	return true
}

// finish runs Stopping and Finalizing exactly once per recording; concurrent
// callers block until it is done and share its outcome.
func (s *Session) finish(rec *recording) (Result, error) {
	rec.finishOnce.Do(func() {
		s.setState(Stopping)
		rec.cancel()
		videoErr := rec.video.Wait()
		var buf *audio.Buffer
		if rec.audio != nil {
			var audioErr error
			buf, audioErr = rec.audio.Wait()
			if audioErr != nil {
				log.Printf("session: audio ended with: %v", audioErr)
			}
		}
		stats := rec.video.Stats()

		s.setState(Finalizing)
		rawAudio := ""
		res := Result{ID: rec.id, Region: rec.region, Frames: stats.Frames, Active: stats.Active}
		if buf != nil {
			res.AudioChunks = buf.Chunks()
			if buf.Chunks() > 0 {
				if err := audio.WriteWAV(rec.audioPath, buf); err != nil {
					rec.warn(fmt.Errorf("%w: write audio: %v", mux.ErrFileIO, err))
				} else {
					rawAudio = rec.audioPath
				}
			}
		}

		mres, mergeErr := s.opts.Muxer.Merge(context.Background(), rec.videoPath, rawAudio, rec.final)
		if mres.Warning != nil {
			rec.warn(mres.Warning)
		}
		res.Outcome = mres.Outcome
		res.Path = mres.Path
		res.RecoveryPath = mres.RecoveryPath

		if err := fileutil.RemoveIfExists(rec.audioPath); err != nil {
			log.Printf("session: remove %s: %v", rec.audioPath, err)
		}
		if mres.Outcome != mux.Failed {
			if err := fileutil.RemoveIfExists(rec.videoPath); err != nil {
				log.Printf("session: remove %s: %v", rec.videoPath, err)
			}
		}

		res.Warnings = rec.warningsCopy()
		rec.result = res
		rec.err = errors.Join(videoErr, mergeErr)
		log.Printf("session: %s finished: %s %d frames in %s (%.1f fps), %d audio chunks",
			rec.id, res.Outcome, res.Frames, res.Active.Round(time.Millisecond), res.FPS(), res.AudioChunks)
		s.toIdle(rec)
	})
	return rec.result, rec.err
}

func (s *Session) toIdle(rec *recording) {
	s.mu.Lock()
	s.idleLocked(rec)
	s.mu.Unlock()
	s.announceIdle(rec)
}

// idleLocked releases the recording's resources and, if it is still the
// current one, moves the session to Idle. s.mu must be held.
func (s *Session) idleLocked(rec *recording) {
	if rec.lock != nil {
		if err := rec.lock.Unlock(); err != nil {
			log.Printf("session: release lock: %v", err)
		}
	}
	if s.rec == rec {
		s.rec = nil
		s.state = Idle
	}
	res := rec.result
	s.last = &res
}

func (s *Session) announceIdle(rec *recording) {
	close(rec.done)
	log.Printf("session: %s", Idle)
	s.opts.Target.OnState(Idle)
	s.opts.Target.OnFinished(rec.result, rec.err)
}
