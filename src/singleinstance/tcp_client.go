package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"screen-recorder/src/messages"
)

type tcpClient struct{ ports PortRange }

func newTcpClient(ports PortRange) Client { return &tcpClient{ports: ports.Normalize()} }

func (c *tcpClient) Send(ctx context.Context, cmd messages.Command) (bool, messages.Reply, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	port, ok := DetectResidentPort(ctx, c.ports)
	if !ok {
		return false, messages.Reply{}, nil
	}
	reply, err := exchange(ctx, residentAddr(port), deadline, cmd)
	return true, reply, err
}

func exchange(ctx context.Context, addr string, timeout time.Duration, cmd messages.Command) (messages.Reply, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return messages.Reply{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(cmd.Line() + "\n"); err != nil {
		return messages.Reply{}, err
	}
	if err := w.Flush(); err != nil {
		return messages.Reply{}, err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return messages.Reply{}, err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case "OK\n":
		return messages.Reply{OK: true, Text: string(body)}, nil
	case "ERROR\n":
		return messages.Reply{Text: string(body)}, errors.New(string(body))
	default:
		return messages.Reply{}, fmt.Errorf("unexpected response %q", status)
	}
}
