package singleinstance

// This file defines the API for single-instance ownership and command delegation.

import (
	"context"

	"screen-recorder/src/messages"
)

// Server owns the TCP endpoint and answers control commands.
type Server interface {
	// Start binds the first port of the configured range and accepts clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client command.
	Request() messages.Command
	// Respond sends the reply. One reply per connection.
	Respond(reply messages.Reply) error
	// Close closes the underlying connection.
	Close() error
}

// Client delegates commands to a resident recorder.
type Client interface {
	// Send scans the port range, performs the PING handshake and delivers cmd.
	// If no resident is found, returns delegated=false, err=nil.
	Send(ctx context.Context, cmd messages.Command) (delegated bool, reply messages.Reply, err error)
}

// NewServer returns a TCP server that binds ports.Start.
func NewServer(ports PortRange) Server { return newTcpServer(ports) }

// NewClient returns a TCP client that scans ports for a resident.
func NewClient(ports PortRange) Client { return newTcpClient(ports) }
