package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"screen-recorder/src/messages"
	"screen-recorder/src/mux"
	"screen-recorder/src/overlay"
	"screen-recorder/src/screenshot"
	"screen-recorder/src/session"
	"screen-recorder/src/singleinstance"
)

// Recorder is the part of session.Session the loop drives.
type Recorder interface {
	Start(region screenshot.Region, cfg session.CaptureConfig, output string) error
	TogglePause() (session.State, error)
	Stop() (session.Result, error)
	State() session.State
	Status() session.Status
	RequestClose(confirm func() bool) bool
}

// Loop is the single coordinator goroutine: region selection and every
// session command run here, in arrival order.
type Loop struct {
	rec      Recorder
	selector overlay.Selector
	capture  func() session.CaptureConfig
	confirm  func() bool

	requests chan request
	closed   chan struct{}
	srv      singleinstance.Server
}

type request struct {
	cmd   messages.Command
	reply func(messages.Reply)
}

type Options struct {
	Recorder Recorder
	Selector overlay.Selector
	// Capture returns the config for the next recording.
	Capture func() session.CaptureConfig
	// ConfirmClose is asked before a Close command interrupts a recording.
	ConfirmClose func() bool
	// Server, when set, feeds loopback commands into the loop.
	Server singleinstance.Server
}

func New(opts Options) *Loop {
	capture := opts.Capture
	if capture == nil {
		capture = func() session.CaptureConfig { return session.CaptureConfig{FrameRate: session.DefaultFrameRate} }
	}
	return &Loop{
		rec:      opts.Recorder,
		selector: opts.Selector,
		capture:  capture,
		confirm:  opts.ConfirmClose,
		requests: make(chan request, 8),
		closed:   make(chan struct{}),
		srv:      opts.Server,
	}
}

// Post queues a command from a fire-and-forget source such as a hotkey or
// the tray. The reply is logged. A full queue drops the command.
func (l *Loop) Post(cmd messages.Command) {
	select {
	case l.requests <- request{cmd: cmd, reply: func(r messages.Reply) { logReply(cmd, r) }}:
	default:
		log.Printf("eventloop: queue full, dropping %s from %s", cmd.Kind, cmd.Source)
	}
}

// Submit queues a command and waits for its reply.
func (l *Loop) Submit(ctx context.Context, cmd messages.Command) messages.Reply {
	ch := make(chan messages.Reply, 1)
	select {
	case l.requests <- request{cmd: cmd, reply: func(r messages.Reply) { ch <- r }}:
	case <-ctx.Done():
		return messages.Fail(ctx.Err())
	case <-l.closed:
		return messages.Fail(errors.New("recorder is shutting down"))
	}
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return messages.Fail(ctx.Err())
	}
}

// Closed is closed after a Close command has been carried out.
func (l *Loop) Closed() <-chan struct{} { return l.closed }

// Run processes commands until ctx ends or a Close command succeeds.
func (l *Loop) Run(ctx context.Context) error {
	var conns <-chan singleinstance.Conn
	if l.srv != nil {
		if p := l.srv.Port(); p > 0 {
			log.Printf("eventloop: resident listening on 127.0.0.1:%d", p)
		}
		ch := make(chan singleinstance.Conn, 4)
		conns = ch
		go func() {
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					close(ch)
					return
				}
				ch <- conn
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-l.requests:
			if l.handle(ctx, req) {
				return nil
			}
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handle(ctx, request{cmd: conn.Request(), reply: func(r messages.Reply) {
				if err := conn.Respond(r); err != nil {
					log.Printf("eventloop: reply to client: %v", err)
				}
				_ = conn.Close()
			}})
		}
	}
}

// handle runs one command and reports whether the loop should exit.
func (l *Loop) handle(ctx context.Context, req request) bool {
	cmd := req.cmd
	log.Printf("eventloop: %s from %s", cmd.Kind, sourceName(cmd))
	switch cmd.Kind {
	case messages.Start:
		req.reply(l.start(ctx, cmd))
	case messages.TogglePause:
		st, err := l.rec.TogglePause()
		if err != nil {
			req.reply(messages.Fail(err))
			return false
		}
		req.reply(messages.Ok("%s", st))
	case messages.Stop:
		// Finalizing can take a while; keep the loop responsive meanwhile.
		// The session itself rejects overlapping commands.
		if l.rec.State() == session.Idle {
			req.reply(messages.Fail(session.ErrNotRecording))
			return false
		}
		go func() {
			res, err := l.rec.Stop()
			req.reply(FinishedReply(res, err))
		}()
	case messages.Status:
		req.reply(messages.Ok("%s", FormatStatus(l.rec.Status())))
	case messages.Close:
		if !l.rec.RequestClose(l.confirm) {
			req.reply(messages.Ok("close declined, still %s", l.rec.State()))
			return false
		}
		req.reply(messages.Ok("closed"))
		close(l.closed)
		return true
	default:
		req.reply(messages.Fail(fmt.Errorf("unsupported command %s", cmd.Kind)))
	}
	return false
}

func (l *Loop) start(ctx context.Context, cmd messages.Command) messages.Reply {
	if st := l.rec.State(); st != session.Idle {
		return messages.Fail(fmt.Errorf("%w: cannot start while %s", session.ErrBusy, st))
	}
	var region screenshot.Region
	if cmd.Region != nil {
		region = *cmd.Region
	} else {
		if l.selector == nil {
			return messages.Fail(errors.New("no region given and no selector available"))
		}
		r, cancelled, err := l.selector.Select(ctx)
		if err != nil {
			return messages.Fail(fmt.Errorf("select region: %w", err))
		}
		if cancelled {
			return messages.Fail(overlay.ErrSelectionCancelled)
		}
		region = r
	}
	if err := l.rec.Start(region, l.capture(), cmd.Output); err != nil {
		return messages.Fail(err)
	}
	return messages.Ok("counting down for %s", region)
}

// FinishedReply summarizes a stop outcome for a client.
func FinishedReply(res session.Result, err error) messages.Reply {
	var b strings.Builder
	switch {
	case res.Outcome == mux.Failed:
		fmt.Fprintf(&b, "could not save output, raw video kept at %s", res.RecoveryPath)
	case res.Path != "":
		fmt.Fprintf(&b, "saved %s (%d frames, %.1f FPS)", res.Path, res.Frames, res.FPS())
	default:
		b.WriteString("cancelled")
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\nwarning: %v", w)
	}
	if err != nil {
		fmt.Fprintf(&b, "\nerror: %v", err)
	}
	return messages.Reply{OK: err == nil, Text: b.String()}
}

// FormatStatus renders a session snapshot on one line.
func FormatStatus(st session.Status) string {
	switch st.State {
	case session.Idle, session.CountingDown, session.Stopping, session.Finalizing:
		if st.Output == "" {
			return st.State.String()
		}
		return fmt.Sprintf("%s %s -> %s", st.State, st.Region, st.Output)
	default:
		return fmt.Sprintf("%s %s: %d frames in %s (%.1f FPS), %d audio chunks -> %s",
			st.State, st.Region, st.Frames, st.Active.Round(100*time.Millisecond), st.FPS, st.AudioChunks, st.Output)
	}
}

func logReply(cmd messages.Command, r messages.Reply) {
	if r.OK {
		log.Printf("eventloop: %s ok: %s", cmd.Kind, r.Text)
		return
	}
	log.Printf("eventloop: %s rejected: %s", cmd.Kind, r.Text)
}

func sourceName(cmd messages.Command) string {
	if cmd.Source == "" {
		return "unknown"
	}
	return cmd.Source
}
