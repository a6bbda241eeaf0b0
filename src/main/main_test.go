package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"screen-recorder/src/config"
	"screen-recorder/src/messages"
	"screen-recorder/src/mux"
	"screen-recorder/src/session"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"screen-recorder", "-config", "/tmp/recorder.toml", "-verbose"},
			out:  []string{"screen-recorder", "--config", "/tmp/recorder.toml", "--verbose"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"screen-recorder", "-output-dir=/tmp/out", "-verbose=true"},
			out:  []string{"screen-recorder", "--output-dir=/tmp/out", "--verbose=true"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"screen-recorder", "--config", "-v", "--other"},
			out:  []string{"screen-recorder", "--config", "-v", "--other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--config", "/tmp/recorder.toml", "--output-dir", "/tmp/out", "-v"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.configPath != "/tmp/recorder.toml" {
		t.Fatalf("Expected configPath=/tmp/recorder.toml, got %q", opts.configPath)
	}
	if opts.outputDir != "/tmp/out" {
		t.Fatalf("Expected outputDir=/tmp/out, got %q", opts.outputDir)
	}
	if !opts.verbose {
		t.Fatal("Expected verbose=true")
	}
}

type fakeClient struct {
	delegated bool
	err       error
	got       messages.Command
	called    bool
}

func (f *fakeClient) Send(ctx context.Context, cmd messages.Command) (bool, messages.Reply, error) {
	f.called = true
	f.got = cmd
	return f.delegated, messages.Reply{OK: true, Text: "IDLE"}, f.err
}

func TestHandleExistingResident(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		want   bool
	}{
		{name: "Resident answers", client: &fakeClient{delegated: true}, want: true},
		{name: "No resident", client: &fakeClient{}, want: false},
		{name: "Probe error", client: &fakeClient{err: errors.New("busy")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handleExistingResident(context.Background(), tt.client); got != tt.want {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			if !tt.client.called || tt.client.got.Kind != messages.Status {
				t.Fatalf("Expected a STATUS probe, got %+v", tt.client.got)
			}
		})
	}
}

func TestHotkeyBindings(t *testing.T) {
	cfg := config.Default()
	var posted []messages.Command
	bindings := hotkeyBindings(&cfg, func(c messages.Command) { posted = append(posted, c) })
	if len(bindings) != 3 {
		t.Fatalf("Expected 3 bindings, got %d", len(bindings))
	}
	for _, b := range bindings {
		b.Action()
	}
	want := []messages.Kind{messages.Start, messages.TogglePause, messages.Stop}
	for i, k := range want {
		if posted[i].Kind != k || posted[i].Source != "hotkey" {
			t.Errorf("binding %d posted %+v, want %s", i, posted[i], k)
		}
	}
	if bindings[0].Combo != "Ctrl+Alt+R" {
		t.Errorf("unexpected start combo %q", bindings[0].Combo)
	}
}

type targetRecorder struct {
	tips, notes, copied []string
}

func newTestTarget(copyPath bool) (*residentTarget, *targetRecorder) {
	rec := &targetRecorder{}
	cfg := config.Default()
	cfg.CopyPathToClipboard = copyPath
	t := newResidentTarget(&cfg, func(s string) { rec.tips = append(rec.tips, s) }, func(s string) { rec.notes = append(rec.notes, s) })
	t.copy = func(s string) error { rec.copied = append(rec.copied, s); return nil }
	return t, rec
}

func TestResidentTargetFinished(t *testing.T) {
	tg, rec := newTestTarget(true)
	tg.OnFinished(session.Result{Path: "/out/a.mp4", Outcome: mux.Muxed}, nil)
	tg.OnFinished(session.Result{Path: "/out/b.mp4", Outcome: mux.Fallback}, nil)
	tg.OnFinished(session.Result{Outcome: mux.Failed, RecoveryPath: "/tmp/raw.avi"}, errors.New("disk full"))
	tg.OnFinished(session.Result{}, nil)

	if len(rec.notes) != 4 {
		t.Fatalf("Expected 4 notifications, got %v", rec.notes)
	}
	if !strings.Contains(rec.notes[0], "/out/a.mp4") {
		t.Errorf("unexpected saved note %q", rec.notes[0])
	}
	if !strings.Contains(rec.notes[1], "without audio") {
		t.Errorf("unexpected fallback note %q", rec.notes[1])
	}
	if !strings.Contains(rec.notes[2], "/tmp/raw.avi") {
		t.Errorf("unexpected failure note %q", rec.notes[2])
	}
	if rec.notes[3] != "Recording cancelled" {
		t.Errorf("unexpected cancel note %q", rec.notes[3])
	}
	if len(rec.copied) != 2 || rec.copied[0] != "/out/a.mp4" || rec.copied[1] != "/out/b.mp4" {
		t.Errorf("unexpected clipboard writes %v", rec.copied)
	}
}

func TestResidentTargetTooltips(t *testing.T) {
	tg, rec := newTestTarget(false)
	tg.OnCountdown(3)
	tg.OnStatus("Recording... (20.0 FPS)")
	tg.OnState(session.Paused)
	tg.OnState(session.Idle)
	tg.OnFinished(session.Result{Path: "/out/a.mp4", Outcome: mux.VideoOnly}, nil)

	if len(rec.tips) != 4 {
		t.Fatalf("Expected 4 tooltips, got %v", rec.tips)
	}
	if !strings.Contains(rec.tips[0], "3") || !strings.Contains(rec.tips[1], "20.0 FPS") {
		t.Errorf("unexpected tooltips %v", rec.tips)
	}
	if rec.tips[3] != "Screen Recorder - Press Ctrl+Alt+R to record" {
		t.Errorf("unexpected idle tooltip %q", rec.tips[3])
	}
	if len(rec.copied) != 0 {
		t.Errorf("clipboard should stay untouched, got %v", rec.copied)
	}
}

func TestWarningText(t *testing.T) {
	if got := warningText(fmt.Errorf("%w: not on PATH", mux.ErrToolMissing)); !strings.Contains(got, "FFmpeg not found") {
		t.Errorf("unexpected text %q", got)
	}
	if got := warningText(errors.New("mic gone")); got != "Warning: mic gone" {
		t.Errorf("unexpected text %q", got)
	}
}
