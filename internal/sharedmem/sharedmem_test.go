package sharedmem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetJSONRejectsOversizedValue(t *testing.T) {
	// the size check happens before any network I/O, so no server
	// is needed
	c := New(Options{Hostname: "127.0.0.1", MaxValueLength: 64})

	err := c.SetJSON("key", strings.Repeat("x", 128), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestSetJSONRejectsUnmarshalableValue(t *testing.T) {
	c := New(Options{Hostname: "127.0.0.1"})

	err := c.SetJSON("key", func() {}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialize")
}

func TestNewDefaultsPort(t *testing.T) {
	// both bare hosts and host:port forms are accepted
	assert.NotNil(t, New(Options{Hostname: "10.0.0.1"}))
	assert.NotNil(t, New(Options{Hostname: "10.0.0.1:11212"}))
	assert.NotNil(t, New(Options{}))
}
