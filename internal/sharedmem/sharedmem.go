// Package sharedmem is the shared KV transport between the health and
// distribution processes: a thin wrapper over a memcached client that
// stores JSON-encoded values.
//
// The health process writes state snapshots and heartbeats; the
// distribution process and admin tooling read them. Neither side
// treats the store as authoritative: on write failure the publisher
// retries on its next cadence, on read failure subscribers keep their
// prior snapshot.
package sharedmem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// ErrCacheMiss is returned by Get* when the key is absent.
var ErrCacheMiss = errors.New("sharedmem: cache miss")

// Store is the KV access surface used by publishers and subscribers.
type Store interface {
	// SetJSON marshals value and stores it under key. A zero
	// expire means the value does not expire.
	SetJSON(key string, value any, expire int32) error

	// GetJSON fetches key and unmarshals it into out. Returns
	// ErrCacheMiss when the key is absent.
	GetJSON(key string, out any) error
}

// Client is a memcached-backed Store.
type Client struct {
	mc *memcache.Client

	// maxValueLength mirrors the server's -I limit; oversized
	// values fail locally instead of being rejected server-side.
	maxValueLength int
}

// Options configure a Client.
type Options struct {
	// Hostname of the memcached server (port 11211 assumed when
	// not given).
	Hostname string

	// SocketTimeout bounds every memcached operation.
	SocketTimeout time.Duration

	// MaxValueLength caps the serialized size of stored values.
	MaxValueLength int
}

// New creates a memcached-backed client.
func New(opts Options) *Client {
	addr := opts.Hostname
	if addr == "" {
		addr = "127.0.0.1"
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "11211")
	}

	mc := memcache.New(addr)
	if opts.SocketTimeout > 0 {
		mc.Timeout = opts.SocketTimeout
	}

	maxLen := opts.MaxValueLength
	if maxLen <= 0 {
		maxLen = 1024 * 1024
	}

	return &Client{mc: mc, maxValueLength: maxLen}
}

func (c *Client) SetJSON(key string, value any, expire int32) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sharedmem: failed to serialize %q: %w", key, err)
	}
	if len(raw) > c.maxValueLength {
		return fmt.Errorf("sharedmem: value for %q is %d bytes, exceeds the %d byte limit",
			key, len(raw), c.maxValueLength)
	}

	if err := c.mc.Set(&memcache.Item{Key: key, Value: raw, Expiration: expire}); err != nil {
		return fmt.Errorf("sharedmem: failed to write %q: %w", key, err)
	}
	return nil
}

func (c *Client) GetJSON(key string, out any) error {
	item, err := c.mc.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return ErrCacheMiss
		}
		return fmt.Errorf("sharedmem: failed to read %q: %w", key, err)
	}

	if err := json.Unmarshal(item.Value, out); err != nil {
		return fmt.Errorf("sharedmem: failed to deserialize %q: %w", key, err)
	}
	return nil
}
