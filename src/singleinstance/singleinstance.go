// Package singleinstance guards the resident process and carries one-line
// commands from short-lived invocations to it over TCP loopback.
package singleinstance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Command is a request understood by the resident.
type Command string

const (
	CommandCapture Command = "CAPTURE"
	CommandStatus  Command = "STATUS"
	CommandReset   Command = "RESET"
)

// ParseCommand accepts a command name in any case.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToUpper(strings.TrimSpace(s))); c {
	case CommandCapture, CommandStatus, CommandReset:
		return c, nil
	default:
		return "", fmt.Errorf("unknown command %q", s)
	}
}

// Server owns the TCP endpoint and answers resident commands.
type Server interface {
	// Start binds the first port of the configured range; failure means
	// another resident already owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted command connection, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn is one client connection carrying a single command.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is a parsed client request.
type Request struct {
	Command Command
}

// Client delegates a command to a running resident.
type Client interface {
	// Send scans the port range for a resident and delivers cmd. If no
	// resident is found it returns delegated=false, err=nil.
	Send(ctx context.Context, cmd Command) (delegated bool, reply string, err error)
}

// NewServer returns the TCP implementation.
func NewServer(logger *slog.Logger) Server { return newTcpServer(logger) }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }
