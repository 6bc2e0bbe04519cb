package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

// Client defaults, matching the server's expectations.
const (
	DefaultDialTimeout = 3 * time.Second
	DefaultLinger      = 500 * time.Millisecond
	DefaultSpacing     = 200 * time.Millisecond
)

// Client sends control commands to a HackRF server. Each command gets its own
// connection, which is kept open for Linger to collect the reply.
type Client struct {
	Addr        string
	DialTimeout time.Duration
	Linger      time.Duration
	Spacing     time.Duration
}

// NewClient returns a Client for addr with the default timings.
func NewClient(addr string) *Client {
	return &Client{
		Addr:        addr,
		DialTimeout: DefaultDialTimeout,
		Linger:      DefaultLinger,
		Spacing:     DefaultSpacing,
	}
}

// Send validates cmd, writes it and returns whatever the server answered
// before the linger period ran out. An empty reply is not an error.
func (c *Client) Send(ctx context.Context, cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to control port %s: %w", c.Addr, err)
	}
	defer conn.Close()

	// Unblock the reader if ctx ends during the linger.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte(cmd.String() + "\n")); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", cmd.Kind, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.Linger)); err != nil {
		return "", err
	}
	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return "", fmt.Errorf("failed to read reply to %s: %w", cmd.Kind, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reply := strings.Join(lines, "\n")
	if strings.HasPrefix(reply, "ERROR") {
		return reply, fmt.Errorf("%w: %s", ErrRejected, reply)
	}
	return reply, nil
}

// SendAll sends cmds in order, waiting Spacing between them. A failed
// command does not stop the rest; all failures are returned together.
func (c *Client) SendAll(ctx context.Context, cmds ...Command) error {
	var errs []error
	for i, cmd := range cmds {
		if i > 0 && c.Spacing > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(c.Spacing):
			}
		}
		reply, err := c.Send(ctx, cmd)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, ctx.Err())...)
			}
			log.Printf("Control: %s failed: %v", cmd, err)
			errs = append(errs, err)
			continue
		}
		log.Printf("Control: sent %s %s", cmd, reply)
	}
	return errors.Join(errs...)
}
