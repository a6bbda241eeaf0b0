package eventloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"screen-recorder/src/messages"
	"screen-recorder/src/mux"
	"screen-recorder/src/screenshot"
	"screen-recorder/src/session"
)

type fakeRecorder struct {
	mu       sync.Mutex
	state    session.State
	started  []screenshot.Region
	outputs  []string
	closeAsk int
}

func (f *fakeRecorder) Start(r screenshot.Region, _ session.CaptureConfig, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != session.Idle {
		return session.ErrBusy
	}
	f.started = append(f.started, r)
	f.outputs = append(f.outputs, output)
	f.state = session.Recording
	return nil
}

func (f *fakeRecorder) TogglePause() (session.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case session.Recording:
		f.state = session.Paused
	case session.Paused:
		f.state = session.Recording
	default:
		return f.state, session.ErrNotRecording
	}
	return f.state, nil
}

func (f *fakeRecorder) Stop() (session.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == session.Idle {
		return session.Result{}, session.ErrNotRecording
	}
	f.state = session.Idle
	return session.Result{Path: "/out/clip.mp4", Frames: 40, Active: 2 * time.Second, Outcome: mux.VideoOnly}, nil
}

func (f *fakeRecorder) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRecorder) Status() session.Status {
	return session.Status{State: f.State(), Region: screenshot.Region{Width: 10, Height: 10}, Frames: 7}
}

func (f *fakeRecorder) RequestClose(confirm func() bool) bool {
	f.mu.Lock()
	f.closeAsk++
	active := f.state.Active()
	f.mu.Unlock()
	if active && confirm != nil && !confirm() {
		return false
	}
	_, _ = f.Stop()
	return true
}

type fakeSelector struct {
	region    screenshot.Region
	cancelled bool
	err       error
	calls     int
}

func (s *fakeSelector) Select(context.Context) (screenshot.Region, bool, error) {
	s.calls++
	return s.region, s.cancelled, s.err
}

func startLoop(t *testing.T, opts Options) (*Loop, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	l := New(opts)
	go func() { _ = l.Run(ctx) }()
	return l, ctx
}

func TestStartUsesSelector(t *testing.T) {
	rec := &fakeRecorder{}
	sel := &fakeSelector{region: screenshot.Region{X: 1, Y: 2, Width: 30, Height: 40}}
	l, ctx := startLoop(t, Options{Recorder: rec, Selector: sel})

	r := l.Submit(ctx, messages.Command{Kind: messages.Start, Source: "test"})
	if !r.OK {
		t.Fatalf("start rejected: %s", r.Text)
	}
	if sel.calls != 1 || len(rec.started) != 1 || rec.started[0] != sel.region {
		t.Fatalf("selector calls=%d started=%v", sel.calls, rec.started)
	}

	// Busy: no second selection is attempted.
	r = l.Submit(ctx, messages.Command{Kind: messages.Start})
	if r.OK || sel.calls != 1 {
		t.Fatalf("second start: %+v (selector calls %d)", r, sel.calls)
	}
}

func TestStartWithPresetRegion(t *testing.T) {
	rec := &fakeRecorder{}
	sel := &fakeSelector{}
	l, ctx := startLoop(t, Options{Recorder: rec, Selector: sel})

	region := screenshot.Region{Width: 640, Height: 480}
	r := l.Submit(ctx, messages.Command{Kind: messages.Start, Region: &region, Output: "x.mp4"})
	if !r.OK {
		t.Fatalf("start: %s", r.Text)
	}
	if sel.calls != 0 {
		t.Fatal("preset region must skip selection")
	}
	if rec.outputs[0] != "x.mp4" {
		t.Fatalf("output = %q", rec.outputs[0])
	}
}

func TestStartCancelledSelection(t *testing.T) {
	rec := &fakeRecorder{}
	l, ctx := startLoop(t, Options{Recorder: rec, Selector: &fakeSelector{cancelled: true}})
	r := l.Submit(ctx, messages.Command{Kind: messages.Start})
	if r.OK || !strings.Contains(r.Text, "cancelled") {
		t.Fatalf("reply = %+v", r)
	}
	if rec.State() != session.Idle {
		t.Fatal("cancelled selection must not start recording")
	}

	l2, ctx2 := startLoop(t, Options{Recorder: rec, Selector: &fakeSelector{err: errors.New("boom")}})
	if r := l2.Submit(ctx2, messages.Command{Kind: messages.Start}); r.OK {
		t.Fatal("selector error should reject start")
	}
}

func TestPauseAndStop(t *testing.T) {
	rec := &fakeRecorder{}
	region := screenshot.Region{Width: 64, Height: 48}
	l, ctx := startLoop(t, Options{Recorder: rec})

	if r := l.Submit(ctx, messages.Command{Kind: messages.TogglePause}); r.OK {
		t.Fatal("pause while idle should be rejected")
	}
	if r := l.Submit(ctx, messages.Command{Kind: messages.Stop}); r.OK {
		t.Fatal("stop while idle should be rejected")
	}
	l.Submit(ctx, messages.Command{Kind: messages.Start, Region: &region})
	if r := l.Submit(ctx, messages.Command{Kind: messages.TogglePause}); !r.OK || r.Text != "paused" {
		t.Fatalf("pause: %+v", r)
	}
	if r := l.Submit(ctx, messages.Command{Kind: messages.Status}); !r.OK || !strings.HasPrefix(r.Text, "paused") {
		t.Fatalf("status: %+v", r)
	}
	r := l.Submit(ctx, messages.Command{Kind: messages.Stop})
	if !r.OK || !strings.Contains(r.Text, "/out/clip.mp4") {
		t.Fatalf("stop: %+v", r)
	}
}

func TestCloseAsksConfirmation(t *testing.T) {
	rec := &fakeRecorder{}
	answer := false
	region := screenshot.Region{Width: 64, Height: 48}
	l, ctx := startLoop(t, Options{Recorder: rec, ConfirmClose: func() bool { return answer }})

	l.Submit(ctx, messages.Command{Kind: messages.Start, Region: &region})
	if r := l.Submit(ctx, messages.Command{Kind: messages.Close}); !strings.Contains(r.Text, "declined") {
		t.Fatalf("close: %+v", r)
	}
	select {
	case <-l.Closed():
		t.Fatal("declined close must keep the loop running")
	default:
	}

	answer = true
	if r := l.Submit(ctx, messages.Command{Kind: messages.Close}); !r.OK {
		t.Fatalf("close: %+v", r)
	}
	select {
	case <-l.Closed():
	case <-time.After(time.Second):
		t.Fatal("loop should close")
	}
	if rec.State() != session.Idle {
		t.Fatal("close should stop the recording")
	}
}

func TestFinishedReply(t *testing.T) {
	r := FinishedReply(session.Result{Outcome: mux.Failed, RecoveryPath: "/tmp/raw.avi"}, mux.ErrFileIO)
	if r.OK || !strings.Contains(r.Text, "/tmp/raw.avi") {
		t.Fatalf("reply = %+v", r)
	}
	r = FinishedReply(session.Result{Path: "/o.mp4", Warnings: []error{mux.ErrToolMissing}}, nil)
	if !r.OK || !strings.Contains(r.Text, "warning: encoder tool missing") {
		t.Fatalf("reply = %+v", r)
	}
	if r := FinishedReply(session.Result{}, nil); r.Text != "cancelled" {
		t.Fatalf("reply = %+v", r)
	}
}
