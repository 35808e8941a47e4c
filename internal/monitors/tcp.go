package monitors

import (
	"fmt"
	"regexp"
)

const (
	// maxResponseBytes bounds how much of a TCP response is matched.
	maxResponseBytes = 512

	maxMatchLen = 128
	maxSendLen  = 256
)

// TCPConnect succeeds when a TCP handshake to the member completes
// within the timeout.
type TCPConnect struct {
	Base `mapstructure:",squash"`

	Port int `mapstructure:"port" json:"port"`
}

func newTCPConnect() *TCPConnect {
	return &TCPConnect{Base: Base{IntervalSec: 10, TimeoutSec: 1, NumRetries: 2}}
}

func (m *TCPConnect) Name() string { return "tcp_connect" }

func (m *TCPConnect) validate() error {
	if err := m.Base.validate(); err != nil {
		return err
	}
	return validatePort(m.Port)
}

func (m *TCPConnect) Run(dstIP string) error {
	sock, err := dialTCP(dstIP, m.Port, m.Timeout())
	if err != nil {
		return err
	}
	sock.close()
	return nil
}

// TCPContent connects, optionally sends a configured payload, reads a
// single response and matches it against a case-insensitive regular
// expression.
type TCPContent struct {
	Base `mapstructure:",squash"`

	Port  int    `mapstructure:"port" json:"port"`
	Match string `mapstructure:"match" json:"match"`
	Send  string `mapstructure:"send" json:"send,omitempty"`

	matchRE *regexp.Regexp
}

func newTCPContent() *TCPContent {
	return &TCPContent{Base: Base{IntervalSec: 10, TimeoutSec: 1, NumRetries: 2}}
}

func (m *TCPContent) Name() string { return "tcp_content" }

func (m *TCPContent) validate() error {
	if err := m.Base.validate(); err != nil {
		return err
	}
	if err := validatePort(m.Port); err != nil {
		return err
	}

	if m.Match == "" || len(m.Match) > maxMatchLen {
		return fmt.Errorf("match %q must be a non-empty string, %d chars max",
			m.Match, maxMatchLen)
	}
	re, err := regexp.Compile("(?i)" + m.Match)
	if err != nil {
		return fmt.Errorf("failed to compile a regular expression from %q: %w",
			m.Match, err)
	}
	m.matchRE = re

	if len(m.Send) > maxSendLen {
		return fmt.Errorf("send %q must be a string, %d chars max", m.Send, maxSendLen)
	}
	return nil
}

func (m *TCPContent) Run(dstIP string) error {
	sock, err := dialTCP(dstIP, m.Port, m.Timeout())
	if err != nil {
		return err
	}
	defer sock.close()

	if m.Send != "" {
		if err := sock.sendAll([]byte(m.Send)); err != nil {
			return err
		}
	}

	response, err := sock.recv()
	if err != nil {
		return err
	}
	if len(response) > maxResponseBytes {
		response = response[:maxResponseBytes]
	}

	if !m.matchRE.Match(response) {
		return fmt.Errorf("failed to match %q in the response", m.Match)
	}
	return nil
}
