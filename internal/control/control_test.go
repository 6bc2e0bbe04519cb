package control

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{SetFrequency(100_000_000), "SET_FREQ:100000000"},
		{SetSampleRate(16_000_000), "SET_SAMPLE_RATE:16000000"},
		{SetVGAGain(20), "SET_VGA_GAIN:20"},
		{SetLNAGain(16), "SET_LNA_GAIN:16"},
		{SetRxAmpGain(0), "SET_RX_AMP_GAIN:0"},
		{Status(), "GET_STATUS"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{"SET_FREQ:433920000\n", SetFrequency(433_920_000), false},
		{"set_vga_gain: 40", SetVGAGain(40), false},
		{"  SET_RX_AMP_GAIN:14  ", SetRxAmpGain(14), false},
		{"help", Help(), false},
		{"SET_VGA_GAIN:63", Command{}, true},
		{"SET_LNA_GAIN:-1", Command{}, true},
		{"SET_FREQ:999999", Command{}, true},
		{"SET_SAMPLE_RATE:21000000", Command{}, true},
		{"SET_FREQ", Command{}, true},
		{"SET_FREQ:abc", Command{}, true},
		{"SET_TX_AMP_GAIN:10", Command{}, true},
		{"GET_STATUS:1", Command{}, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.line)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("Parse(%q): expected ErrInvalidCommand, got %v", tt.line, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): unexpected error %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
		// Round trip through the wire form.
		again, err := Parse(got.String())
		if err != nil || again != got {
			t.Errorf("Round trip of %q failed: %+v, %v", tt.line, again, err)
		}
	}
}

// fakeServer answers each connection's first line like the HackRF server does.
type fakeServer struct {
	ln       net.Listener
	mu       sync.Mutex
	received []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, strings.TrimSpace(line))
			s.mu.Unlock()

			reply := "OK: done\n"
			if strings.HasPrefix(line, "SET_FREQ:1234567") {
				reply = "ERROR: Invalid frequency (1 MHz - 6 GHz)\n"
			}
			conn.Write([]byte(reply))
			// Keep the connection open like a real control socket.
			time.Sleep(time.Second)
		}(conn)
	}
}

func (s *fakeServer) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func testClient(addr string) *Client {
	c := NewClient(addr)
	c.Linger = 100 * time.Millisecond
	c.Spacing = 10 * time.Millisecond
	return c
}

func TestClient_Send(t *testing.T) {
	srv := newFakeServer(t)
	c := testClient(srv.ln.Addr().String())

	reply, err := c.Send(context.Background(), SetFrequency(100_000_000))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "OK: done" {
		t.Errorf("Unexpected reply %q", reply)
	}

	_, err = c.Send(context.Background(), SetFrequency(1_234_567))
	if !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}

	// Out-of-range commands never reach the server.
	if _, err := c.Send(context.Background(), SetVGAGain(100)); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand, got %v", err)
	}
	if got := len(srv.lines()); got != 2 {
		t.Errorf("Expected 2 commands at the server, got %d", got)
	}
}

func TestClient_SendAllKeepsOrder(t *testing.T) {
	srv := newFakeServer(t)
	c := testClient(srv.ln.Addr().String())

	cmds := []Command{SetSampleRate(2_000_000), SetFrequency(1_234_567), SetVGAGain(20), SetLNAGain(16)}
	err := c.SendAll(context.Background(), cmds...)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("Expected the rejected command to be reported, got %v", err)
	}

	got := srv.lines()
	if len(got) != len(cmds) {
		t.Fatalf("Expected %d commands, got %v", len(cmds), got)
	}
	for i, cmd := range cmds {
		if got[i] != cmd.String() {
			t.Errorf("Command %d: expected %q, got %q", i, cmd, got[i])
		}
	}
}

func TestClient_SendCanceled(t *testing.T) {
	srv := newFakeServer(t)
	c := testClient(srv.ln.Addr().String())
	c.Linger = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Send(ctx, Status())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Send did not return promptly after cancellation")
	}
}
