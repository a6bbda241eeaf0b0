package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"screen-recorder/src/screenshot"
)

type fakeGrabber struct {
	mu    sync.Mutex
	calls int
	err   error
	// failAfter makes Grab fail once this many frames were returned.
	failAfter int
}

func (g *fakeGrabber) Grab(r screenshot.Region) (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil && g.calls >= g.failAfter {
		return nil, g.err
	}
	g.calls++
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}

type fakeSink struct {
	mu              sync.Mutex
	frames          []*image.RGBA
	closed          int
	writesAfterStop int
}

func (s *fakeSink) WriteFrame(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		s.writesAfterStop++
		return errors.New("closed")
	}
	s.frames = append(s.frames, img)
	return nil
}

func (s *fakeSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fixedPointer screenshot.Point

func (p fixedPointer) Location() screenshot.Point { return screenshot.Point(p) }

func newTestLoop(t *testing.T, fps int, g *fakeGrabber, s *fakeSink) *Loop {
	t.Helper()
	l, err := New(Options{
		Region:    screenshot.Region{X: 0, Y: 0, Width: 64, Height: 48},
		FrameRate: fps,
		Grabber:   g,
		Sink:      s,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLoopFrameCountTracksRate(t *testing.T) {
	g, s := &fakeGrabber{}, &fakeSink{}
	l := newTestLoop(t, 20, g, s)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(time.Second)
	cancel()
	if err := l.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got := s.Frames()
	if got < 17 || got > 23 {
		t.Errorf("expected ~20 frames for 1s at 20fps, got %d", got)
	}
	if s.closed != 1 {
		t.Errorf("sink closed %d times, want 1", s.closed)
	}
}

func TestLoopPauseKeepsSinkAndExcludesPausedTime(t *testing.T) {
	g, s := &fakeGrabber{}, &fakeSink{}
	l := newTestLoop(t, 20, g, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	l.Pause()
	time.Sleep(50 * time.Millisecond)
	atPause := s.Frames()
	time.Sleep(500 * time.Millisecond)
	if got := s.Frames(); got != atPause {
		t.Errorf("frames advanced while paused: %d -> %d", atPause, got)
	}
	if st := l.Stats(); !st.Paused || st.Finished {
		t.Errorf("loop must stay alive while paused, stats=%+v", st)
	}

	l.Resume()
	time.Sleep(500 * time.Millisecond)
	cancel()
	if err := l.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// ~1s of active time; the paused half second must not be backfilled.
	got := s.Frames()
	if got < 17 || got > 24 {
		t.Errorf("expected ~20 frames over 1s of active time, got %d", got)
	}
	if s.closed != 1 {
		t.Errorf("sink must be closed exactly once, got %d", s.closed)
	}
}

func TestLoopStopJoinsBeforeReturn(t *testing.T) {
	g, s := &fakeGrabber{}, &fakeSink{}
	l := newTestLoop(t, 60, g, s)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := l.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	final := s.Frames()
	time.Sleep(100 * time.Millisecond)
	if s.Frames() != final || s.writesAfterStop != 0 {
		t.Errorf("writes happened after Wait returned")
	}
	if !l.Stats().Finished {
		t.Error("Stats should report finished after Wait")
	}
}

func TestLoopStopWhilePausedIsPrompt(t *testing.T) {
	l := newTestLoop(t, 10, &fakeGrabber{}, &fakeSink{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Pause()
	time.Sleep(20 * time.Millisecond)

	begin := time.Now()
	cancel()
	if err := l.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 2*PauseQuantum {
		t.Errorf("stop took %v while paused", elapsed)
	}
}

func TestLoopGrabErrorAborts(t *testing.T) {
	g := &fakeGrabber{err: errors.New("display gone"), failAfter: 3}
	s := &fakeSink{}
	l := newTestLoop(t, 50, g, s)

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not abort on grab error")
	}
	err := l.Wait()
	if !errors.Is(err, ErrCaptureFailure) {
		t.Fatalf("expected ErrCaptureFailure, got %v", err)
	}
	if s.Frames() != 3 {
		t.Errorf("partial output should keep 3 frames, got %d", s.Frames())
	}
	if s.closed != 1 {
		t.Errorf("sink must be closed after abort")
	}
}

func TestLoopHighlightsCursorInsideRegion(t *testing.T) {
	region := screenshot.Region{X: 100, Y: 100, Width: 64, Height: 64}
	tests := []struct {
		name    string
		pointer screenshot.Point
		marked  bool
	}{
		{"inside", screenshot.Point{X: 132, Y: 132}, true},
		{"outside", screenshot.Point{X: 10, Y: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSink{}
			l, err := New(Options{
				Region:          region,
				FrameRate:       10,
				HighlightCursor: true,
				Grabber:         &fakeGrabber{},
				Pointer:         fixedPointer(tt.pointer),
				Sink:            s,
			})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := l.captureFrame(); err != nil {
				t.Fatalf("captureFrame: %v", err)
			}
			img := s.frames[0]
			// A point on the ring, radius-1 pixels right of the center.
			got := img.RGBAAt(32+markerRadius-1, 32)
			if marked := got == markerColor; marked != tt.marked {
				t.Errorf("marker present=%v, want %v (pixel %v)", marked, tt.marked, got)
			}
			if center := img.RGBAAt(32, 32); center == markerColor {
				t.Error("ring center must stay untouched")
			}
		})
	}
}

func TestDrawMarkerClipsAtEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	drawMarker(img, 0, 0)
	if img.RGBAAt(markerRadius-1, 0) != markerColor || img.RGBAAt(0, markerRadius-1) != markerColor {
		t.Error("visible quarter of the ring should be drawn")
	}
	if img.RGBAAt(0, 0) != (color.RGBA{}) {
		t.Error("ring center must stay untouched")
	}
}

func TestPaceDelay(t *testing.T) {
	interval := 50 * time.Millisecond
	tests := []struct {
		name   string
		active time.Duration
		frames int
		want   time.Duration
	}{
		{"on schedule", 10 * time.Millisecond, 1, 40 * time.Millisecond},
		{"slow frame", 70 * time.Millisecond, 1, 0},
		{"catching up", 120 * time.Millisecond, 3, 30 * time.Millisecond},
		{"far behind", time.Second, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := paceDelay(interval, tt.active, tt.frames); got != tt.want {
				t.Errorf("paceDelay(%v, %d) = %v, want %v", tt.active, tt.frames, got, tt.want)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Region: screenshot.Region{Width: 0, Height: 10}, FrameRate: 20, Grabber: &fakeGrabber{}, Sink: &fakeSink{}}); err == nil {
		t.Error("expected error for zero-area region")
	}
	if _, err := New(Options{Region: screenshot.Region{Width: 10, Height: 10}, FrameRate: 0, Grabber: &fakeGrabber{}, Sink: &fakeSink{}}); err == nil {
		t.Error("expected error for zero frame rate")
	}
	if _, err := New(Options{Region: screenshot.Region{Width: 10, Height: 10}, FrameRate: 10, Sink: &fakeSink{}}); err == nil {
		t.Error("expected error for missing grabber")
	}
}

func TestStartTwice(t *testing.T) {
	l := newTestLoop(t, 10, &fakeGrabber{}, &fakeSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = l.Wait()
	}()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}
