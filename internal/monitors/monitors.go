// Package monitors implements the protocol-level health checks probed
// against pool members: TCP connect, TCP content match, HTTP(S) status,
// forced status and external scripts.
//
// A monitor either returns nil (the probe succeeded) or an error whose
// message is the failure reason. Every monitor bounds its own execution
// by the configured wall-clock timeout.
package monitors

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Allowed parameter ranges, shared by all monitors.
const (
	MinInterval = 1 * time.Second
	MaxInterval = 3600 * time.Second
	MinTimeout  = 100 * time.Millisecond
	MaxTimeout  = 5 * time.Second
	MinRetries  = 0
	MaxRetries  = 5
)

// Monitor is a health check definition bound to its parameters.
// Run probes the given destination IP and returns nil on success or an
// error carrying the failure reason.
type Monitor interface {
	Run(dstIP string) error

	// Name is the registered monitor name, e.g. "tcp_connect".
	Name() string
	Interval() time.Duration
	Timeout() time.Duration
	Retries() int
}

// Base carries the scheduling parameters common to every monitor.
// Interval and timeout are configured in seconds (fractional values
// allowed for timeout).
type Base struct {
	IntervalSec float64 `mapstructure:"interval" json:"interval"`
	TimeoutSec  float64 `mapstructure:"timeout" json:"timeout"`
	NumRetries  int     `mapstructure:"retries" json:"retries"`
}

func (b *Base) Interval() time.Duration { return secondsToDuration(b.IntervalSec) }
func (b *Base) Timeout() time.Duration  { return secondsToDuration(b.TimeoutSec) }
func (b *Base) Retries() int            { return b.NumRetries }

func (b *Base) validate() error {
	if iv := b.Interval(); iv < MinInterval || iv > MaxInterval {
		return fmt.Errorf("interval %v must be between %v and %v",
			b.IntervalSec, MinInterval, MaxInterval)
	}
	if to := b.Timeout(); to < MinTimeout || to > MaxTimeout {
		return fmt.Errorf("timeout %v must be between %v and %v",
			b.TimeoutSec, MinTimeout, MaxTimeout)
	}
	if b.NumRetries < MinRetries || b.NumRetries > MaxRetries {
		return fmt.Errorf("retries %d must be between %d and %d",
			b.NumRetries, MinRetries, MaxRetries)
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// builders for every registered monitor name; each builder applies its
// own defaults before decoding the params on top
var registered = map[string]func() Monitor{
	"tcp_connect":  func() Monitor { return newTCPConnect() },
	"tcp_content":  func() Monitor { return newTCPContent() },
	"http_status":  func() Monitor { return newHTTPStatus(false) },
	"https_status": func() Monitor { return newHTTPStatus(true) },
	"forced":       func() Monitor { return newForced() },
	"external":     func() Monitor { return newExternal() },
}

// validator is implemented by monitors that need to check and
// post-process their decoded parameters.
type validator interface {
	validate() error
}

// New builds a monitor from its registered name and the raw
// monitor_params mapping from the pool configuration.
func New(name string, params map[string]any) (Monitor, error) {
	builder, ok := registered[name]
	if !ok {
		return nil, fmt.Errorf("unknown monitor %q", name)
	}

	m := builder()
	if err := decodeParams(m, params); err != nil {
		return nil, fmt.Errorf("monitor %q: %w", name, err)
	}
	if v, ok := m.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("monitor %q: %w", name, err)
		}
	}
	return m, nil
}

// Registered reports whether name is a known monitor name.
func Registered(name string) bool {
	_, ok := registered[name]
	return ok
}

func decodeParams(target any, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid monitor_params: %w", err)
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d must be between 1 and 65535", port)
	}
	return nil
}
