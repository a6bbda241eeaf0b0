package singleinstance

import (
	"bufio"
	"context"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"screen-recorder/src/messages"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	// requestTimeout bounds how long a client may take to send its line.
	requestTimeout = 3 * time.Second
)

// tcpServer implements Server over TCP loopback. Each connection is read on
// its own goroutine so a stalled client cannot delay PING probes; parsed
// commands queue on incoming for the event loop.
type tcpServer struct {
	ports    PortRange
	incoming chan *tcpConn

	mu   sync.Mutex
	lis  net.Listener
	port int
}

func newTcpServer(ports PortRange) Server {
	return &tcpServer{ports: ports.Normalize(), incoming: make(chan *tcpConn, 8)}
}

// Start binds only the first port of the range, so two residents with the
// same configuration cannot both run.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	addr := residentAddr(s.ports.Start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis, s.port = lis, s.ports.Start
	log.Printf("singleinstance: listening on %s (clients scan %s)", addr, s.ports)
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		go s.serve(ctx, c)
	}
}

func (s *tcpServer) serve(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetReadDeadline(time.Now().Add(requestTimeout))
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("singleinstance: read from %s: %v", remote, err)
		_ = c.Close()
		return
	}
	_ = c.SetReadDeadline(time.Time{})
	bw := bufio.NewWriter(c)
	if line == pingRequest {
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}
	cmd, err := messages.ParseLine(line)
	if err != nil {
		log.Printf("singleinstance: bad request from %s: %v", remote, err)
		_, _ = bw.WriteString("ERROR\n" + err.Error())
		_ = bw.Flush()
		_ = c.Close()
		return
	}
	cmd.Source = "ipc"
	log.Printf("singleinstance: %s from %s", cmd.Kind, remote)
	select {
	case s.incoming <- &tcpConn{c: c, r: cmd, w: bw}:
	case <-ctx.Done():
		_ = c.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis, s.port = nil, 0
	return err
}

type tcpConn struct {
	c net.Conn
	r messages.Command
	w *bufio.Writer
}

func (tc *tcpConn) Request() messages.Command { return tc.r }

// Respond writes "OK\n<text>" or "ERROR\n<text>".
func (tc *tcpConn) Respond(reply messages.Reply) error {
	status := "ERROR\n"
	if reply.OK {
		status = "OK\n"
	}
	if _, err := tc.w.WriteString(status + strings.TrimRight(reply.Text, "\n")); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
