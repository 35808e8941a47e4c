package monitors

import (
	"crypto/tls"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// statusLineRE extracts the status code and reason from an HTTP
// Status-Line. The line must appear within the first statusLineWindow
// bytes of the accumulated response.
var statusLineRE = regexp.MustCompile(`(?i)^HTTP/\d\.\d (\d+) ([^\r]*)\r\n`)

const statusLineWindow = 128

type httpResponse struct {
	statusCode   int
	statusReason string
}

// httpRequest is a minimal HTTP client used for status probing. It
// sends a fixed HTTP/1.0 request and incrementally scans the response
// for a Status-Line, never reading further than needed.
type httpRequest struct {
	ip       string
	port     int
	useSSL   bool
	hostname string
	urlPath  string
	timeout  time.Duration
}

func (r *httpRequest) get() (*httpResponse, error) {
	return r.do("GET")
}

func (r *httpRequest) do(method string) (*httpResponse, error) {
	// Host header carries the configured hostname when present, the
	// target IP otherwise
	host := r.hostname
	if host == "" {
		host = r.ip
	}

	reqStr := fmt.Sprintf("%s %s HTTP/1.0\r\nHost: %s\r\nConnection: close\r\n\r\n",
		method, r.urlPath, host)

	sock, err := dialTCP(r.ip, r.port, r.timeout)
	if err != nil {
		return nil, err
	}
	defer sock.close()

	if r.useSSL {
		if err := r.wrapTLS(sock); err != nil {
			return nil, err
		}
	}

	if err := sock.sendAll([]byte(reqStr)); err != nil {
		return nil, err
	}

	// read until a Status-Line is found, the remote closes, or the
	// remaining time budget runs out
	var response []byte
	for {
		chunk, err := sock.recv()
		if err != nil {
			if len(response) == 0 {
				return nil, fmt.Errorf("no data received from the peer: %w", err)
			}
			return nil, fmt.Errorf(
				"failed to find an HTTP Status-Line within the timeout, response (up to 512 chars): %q",
				truncate(response, 512))
		}
		if chunk == nil {
			if len(response) == 0 {
				return nil, fmt.Errorf("remote closed the connection, no data received from the peer")
			}
			return nil, fmt.Errorf(
				"remote closed the connection, no HTTP Status-Line in the response (up to 512 chars): %q",
				truncate(response, 512))
		}

		response = append(response, chunk...)
		if resp := parseStatusLine(response); resp != nil {
			return resp, nil
		}
		if len(response) >= statusLineWindow {
			return nil, fmt.Errorf(
				"no HTTP Status-Line in the first %d bytes of the response: %q",
				statusLineWindow, truncate(response, 512))
		}
	}
}

func (r *httpRequest) wrapTLS(sock *tcpSocket) error {
	start := time.Now()
	tlsConn := tls.Client(sock.conn, &tls.Config{
		// probing targets are raw member IPs, certificate
		// verification is intentionally off
		InsecureSkipVerify: true,
		ServerName:         r.hostname,
	})

	if err := tlsConn.SetDeadline(time.Now().Add(sock.remaining)); err != nil {
		return fmt.Errorf("tls handshake: %w", err)
	}
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("tls handshake: %w", err)
	}

	sock.conn = tlsConn
	sock.spend(time.Since(start))
	return nil
}

func parseStatusLine(response []byte) *httpResponse {
	window := response
	if len(window) > statusLineWindow {
		window = window[:statusLineWindow]
	}

	m := statusLineRE.FindSubmatch(window)
	if m == nil {
		return nil
	}

	// \d+ matched, Atoi cannot fail
	code, _ := strconv.Atoi(string(m[1]))
	return &httpResponse{statusCode: code, statusReason: string(m[2])}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
