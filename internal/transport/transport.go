// Package transport delivers raw IQ chunks to the receiver: interleaved
// signed 8-bit I/Q bytes from a HackRF TCP server or from a recording.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// MaxChunkSize is the largest chunk handed out by a single read.
const MaxChunkSize = 256 * 1024

// ErrTimeout is returned when no data arrives within the read timeout.
var ErrTimeout = errors.New("timed out waiting for IQ data")

// Source yields IQ chunks. Every chunk is freshly allocated and never reused
// by the source. ReadChunk returns io.EOF at the end of the stream.
type Source interface {
	ReadChunk() ([]byte, error)
	Close() error
}

// Conn is a TCP connection to a HackRF IQ server.
type Conn struct {
	conn        net.Conn
	buf         []byte
	readTimeout time.Duration
}

// Options tunes a Conn. ReadTimeout bounds each read; zero waits forever.
// A ChunkSize of zero means MaxChunkSize.
type Options struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
	ChunkSize   int
}

// Dial connects to the IQ server at addr.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IQ server %s: %w", addr, err)
	}
	return NewConn(conn, opts.ChunkSize, opts.ReadTimeout), nil
}

// NewConn wraps an established connection. chunkSize is clamped to
// MaxChunkSize.
func NewConn(conn net.Conn, chunkSize int, readTimeout time.Duration) *Conn {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	return &Conn{
		conn:        conn,
		buf:         make([]byte, chunkSize),
		readTimeout: readTimeout,
	}
}

// ReadChunk returns whatever the server sent next, up to the chunk size.
// A timeout yields ErrTimeout; a closed or empty read yields io.EOF.
func (c *Conn) ReadChunk() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, c.buf[:n])
		return chunk, nil
	}
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, c.readTimeout)
	default:
		return nil, fmt.Errorf("IQ read failed: %w", err)
	}
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the connection, unblocking a pending ReadChunk.
func (c *Conn) Close() error {
	return c.conn.Close()
}
