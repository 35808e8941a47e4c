// Package pdns implements the PowerDNS remote-backend side of the
// load balancer: the JSON pipe protocol on stdin/stdout, the query
// distribution logic and the subscriber that keeps the distribution
// state in sync with the shared KV store.
//
// Protocol reference:
// https://doc.powerdns.com/authoritative/backends/remote.html
package pdns

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Request is one remote-backend JSON API call.
type Request struct {
	Method     string     `json:"method"`
	Parameters Parameters `json:"parameters"`
}

// Parameters carries the fields of a lookup request. Remote is the
// client (resolver) address used for topology decisions.
type Parameters struct {
	QType      string `json:"qtype"`
	QName      string `json:"qname"`
	Remote     string `json:"remote"`
	Local      string `json:"local"`
	RealRemote string `json:"real-remote"`
	ZoneID     int    `json:"zone-id"`
}

// Record is one resource record in a lookup response.
type Record struct {
	QType   string `json:"qtype"`
	QName   string `json:"qname"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// Response is the reply to one request. Result is false on failure,
// true for initialize, or a list of records for a successful lookup.
type Response struct {
	Result any      `json:"result"`
	Log    []string `json:"log,omitempty"`
}

// Handler resolves remote-backend methods to results. Implementations
// append diagnostics to log; entries are returned to PowerDNS when
// response logging is enabled.
type Handler interface {
	Initialize(params Parameters, log *[]string) any
	Lookup(params Parameters, log *[]string) any
}

// Backend runs the remote-backend pipe loop: one JSON request per
// line on the reader, one JSON response per line on the writer.
type Backend struct {
	handler Handler
	logger  *slog.Logger

	// includeLog mirrors the "log" configuration option: when set,
	// responses carry a "log" array back to PowerDNS.
	includeLog bool

	reader io.Reader
	writer io.Writer
}

// NewBackend creates a pipe backend over stdin/stdout.
func NewBackend(handler Handler, includeLog bool, logger *slog.Logger) *Backend {
	return &Backend{
		handler:    handler,
		logger:     logger,
		includeLog: includeLog,
		reader:     os.Stdin,
		writer:     os.Stdout,
	}
}

// Run processes requests until the reader is exhausted or an empty
// line is received (PowerDNS sends one when exiting).
func (b *Backend) Run() error {
	scanner := bufio.NewScanner(b.reader)
	writer := bufio.NewWriter(b.writer)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		if line == "" {
			return nil
		}

		resp := b.process(line)
		if err := b.writeResponse(writer, resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

func (b *Backend) process(line string) Response {
	start := time.Now()
	var log []string

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log = append(log, fmt.Sprintf("error: cannot parse input %q", line))
		b.logger.Warn("cannot parse request", "input", line, "err", err)
		return b.finish(Response{Result: false}, line, log, start)
	}

	var result any
	switch req.Method {
	case "initialize":
		result = b.handler.Initialize(req.Parameters, &log)
	case "lookup":
		result = b.handler.Lookup(req.Parameters, &log)
	case "getDomainMetadata":
		result = false
	default:
		result = false
		log = append(log, fmt.Sprintf("warning: method %q is not implemented", req.Method))
		b.logger.Warn("unsupported remote-backend method", "method", req.Method)
	}

	return b.finish(Response{Result: result}, line, log, start)
}

func (b *Backend) finish(resp Response, line string, log []string, start time.Time) Response {
	if !b.includeLog {
		return resp
	}

	log = append(log,
		fmt.Sprintf("request: %s", line),
		fmt.Sprintf("result: %v", resp.Result != false),
		fmt.Sprintf("pid: %d", os.Getpid()),
		fmt.Sprintf("time taken: %.6f", time.Since(start).Seconds()),
	)

	// PowerDNS logs entries one per line which is hard to read;
	// join them into a single entry
	resp.Log = []string{strings.Join(log, " ")}
	return resp
}

func (b *Backend) writeResponse(w *bufio.Writer, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
