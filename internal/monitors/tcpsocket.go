package monitors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jroosing/polaris-gslb/internal/pool"
)

// recvBuffSize is the per-read buffer for probe responses.
const recvBuffSize = 8192

// read buffers are recycled across probes; every monitor run performs
// at least one read and probes fire continuously
var recvBuffers = pool.New(func() []byte { return make([]byte, recvBuffSize) })

// tcpSocket wraps a TCP connection with a shrinking time budget: the
// remaining timeout decreases after every I/O step, so the whole probe
// is bounded by the configured monitor timeout rather than allowing the
// full timeout per syscall.
type tcpSocket struct {
	conn      net.Conn
	remaining time.Duration
}

// dialTCP connects to ip:port within timeout and returns a socket whose
// remaining budget already accounts for the time the dial took.
func dialTCP(ip string, port int, timeout time.Duration) (*tcpSocket, error) {
	s := &tcpSocket{remaining: timeout}

	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), timeout)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.conn = conn
	s.spend(time.Since(start))
	return s, nil
}

// sendAll writes b fully or fails within the remaining budget.
func (s *tcpSocket) sendAll(b []byte) error {
	start := time.Now()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.remaining)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	s.spend(time.Since(start))
	return nil
}

// recv reads once from the connection, up to recvBuffSize bytes. An
// orderly close by the peer yields a nil slice and no error.
func (s *tcpSocket) recv() ([]byte, error) {
	start := time.Now()
	if err := s.conn.SetReadDeadline(time.Now().Add(s.remaining)); err != nil {
		return nil, fmt.Errorf("recv: %w", err)
	}

	buf := recvBuffers.Get()
	defer recvBuffers.Put(buf)

	n, err := s.conn.Read(buf)
	s.spend(time.Since(start))
	if n > 0 {
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
	if err != nil {
		if isClosedByPeer(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recv: %w", err)
	}
	return []byte{}, nil
}

// close shuts the connection down; safe on half-open sockets.
func (s *tcpSocket) close() {
	if s.conn == nil {
		return
	}
	if tc, ok := s.conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = s.conn.Close()
}

func (s *tcpSocket) spend(d time.Duration) {
	s.remaining -= d
	if s.remaining < 0 {
		s.remaining = 0
	}
}

func isClosedByPeer(err error) bool {
	return errors.Is(err, io.EOF)
}
