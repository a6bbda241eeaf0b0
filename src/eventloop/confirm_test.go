package eventloop

import (
	"testing"
	"time"
)

func TestQuitGuard(t *testing.T) {
	now := time.Unix(1000, 0)
	warned := 0
	g := &QuitGuard{Window: 5 * time.Second, Warn: func() { warned++ }, Now: func() time.Time { return now }}

	if g.Confirm() {
		t.Fatal("first request only arms")
	}
	now = now.Add(2 * time.Second)
	if !g.Confirm() {
		t.Fatal("second request within window confirms")
	}
	if g.Confirm() {
		t.Fatal("guard should re-arm after confirming")
	}
	now = now.Add(10 * time.Second)
	if g.Confirm() {
		t.Fatal("request after window expires only arms again")
	}
	if warned != 3 {
		t.Fatalf("warned = %d, want 3", warned)
	}
}
