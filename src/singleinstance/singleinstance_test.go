package singleinstance

import (
	"context"
	"net"
	"testing"
	"time"

	"screen-recorder/src/messages"
	"screen-recorder/src/screenshot"
)

func onePort(port int) PortRange { return PortRange{Start: port, End: port} }

func TestServerClientRoundTrip(t *testing.T) {
	ports := onePort(49611)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	region := screenshot.Region{X: 1, Y: 2, Width: 300, Height: 200}
	client := NewClient(ports)
	type outcome struct {
		delegated bool
		reply     messages.Reply
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		d, r, err := client.Send(ctx, messages.Command{Kind: messages.Start, Region: &region})
		done <- outcome{d, r, err}
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	req := conn.Request()
	if req.Kind != messages.Start || req.Region == nil || *req.Region != region {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Source != "ipc" {
		t.Errorf("source = %q", req.Source)
	}
	if err := conn.Respond(messages.Ok("counting down")); err != nil {
		t.Fatalf("respond: %v", err)
	}
	conn.Close()

	got := <-done
	if got.err != nil || !got.delegated {
		t.Fatalf("client: delegated=%v err=%v", got.delegated, got.err)
	}
	if !got.reply.OK || got.reply.Text != "counting down" {
		t.Fatalf("reply = %+v", got.reply)
	}
}

func TestClientErrorReply(t *testing.T) {
	ports := onePort(49612)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	go func() {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		_ = conn.Respond(messages.Reply{Text: "no recording in progress"})
		conn.Close()
	}()

	delegated, reply, err := NewClient(ports).Send(ctx, messages.Command{Kind: messages.Stop})
	if !delegated {
		t.Fatal("expected delegation")
	}
	if err == nil || reply.Text != "no recording in progress" {
		t.Fatalf("reply = %+v, err = %v", reply, err)
	}
}

func TestNoResident(t *testing.T) {
	ports := onePort(49613)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	delegated, _, err := NewClient(ports).Send(ctx, messages.Command{Kind: messages.Status})
	if delegated || err != nil {
		t.Fatalf("delegated=%v err=%v", delegated, err)
	}
	if _, ok := DetectResidentPort(ctx, ports); ok {
		t.Fatal("no resident should be detected")
	}
}

func TestPortRangeNormalize(t *testing.T) {
	tests := []struct {
		in, want PortRange
	}{
		{PortRange{}, DefaultPortRange()},
		{PortRange{Start: 50010, End: 50000}, PortRange{Start: 50000, End: 50010}},
		{PortRange{Start: 80, End: 70000}, PortRange{Start: 1024, End: 65535}},
		{PortRange{Start: 50000}, PortRange{Start: 49550, End: 50000}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%+v.Normalize() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestServerBindsRangeStart(t *testing.T) {
	ports := PortRange{Start: 49614, End: 49616}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()
	if srv.Port() != 49614 {
		t.Fatalf("port = %d", srv.Port())
	}
	if port, ok := DetectResidentPort(ctx, ports); !ok || port != 49614 {
		t.Fatalf("detect = %d, %v", port, ok)
	}
	if _, ok := DetectResidentPort(ctx, onePort(49617)); ok {
		t.Fatal("a resident outside the range must not be found")
	}
}

func TestStalledClientDoesNotBlockPing(t *testing.T) {
	ports := onePort(49618)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv := NewServer(ports)
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	defer srv.Close()

	stalled, err := net.Dial("tcp", residentAddr(49618))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stalled.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
	defer pingCancel()
	if _, ok := DetectResidentPort(pingCtx, ports); !ok {
		t.Fatal("resident should answer PING while another client is silent")
	}
}
