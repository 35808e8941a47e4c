package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownMonitor(t *testing.T) {
	_, err := New("icmp_echo", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown monitor")
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{
		"tcp_connect", "tcp_content", "http_status", "https_status", "forced", "external",
	} {
		assert.True(t, Registered(name), name)
	}
	assert.False(t, Registered("none"))
}

func TestNewAppliesDefaults(t *testing.T) {
	m, err := New("tcp_connect", map[string]any{"port": 80})
	require.NoError(t, err)

	tc := m.(*TCPConnect)
	assert.Equal(t, float64(10), tc.IntervalSec)
	assert.Equal(t, float64(1), tc.TimeoutSec)
	assert.Equal(t, 2, tc.NumRetries)
	assert.Equal(t, "tcp_connect", tc.Name())
}

func TestNewRejectsUnknownParam(t *testing.T) {
	_, err := New("tcp_connect", map[string]any{"port": 80, "bogus": true})
	assert.Error(t, err)
}

func TestBaseValidation(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"interval too small", map[string]any{"port": 80, "interval": 0.5}},
		{"interval too large", map[string]any{"port": 80, "interval": 4000}},
		{"timeout too small", map[string]any{"port": 80, "timeout": 0.01}},
		{"timeout too large", map[string]any{"port": 80, "timeout": 10}},
		{"retries negative", map[string]any{"port": 80, "retries": -1}},
		{"retries too large", map[string]any{"port": 80, "retries": 6}},
		{"port zero", map[string]any{"port": 0}},
		{"port too large", map[string]any{"port": 70000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("tcp_connect", tt.params)
			assert.Error(t, err)
		})
	}
}

func TestTCPContentValidation(t *testing.T) {
	_, err := New("tcp_content", map[string]any{"port": 80})
	assert.Error(t, err, "match is mandatory")

	_, err = New("tcp_content", map[string]any{"port": 80, "match": "([bad"})
	assert.Error(t, err, "match must compile")

	m, err := New("tcp_content", map[string]any{"port": 80, "match": "pong", "send": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "tcp_content", m.Name())
}

func TestHTTPStatusValidation(t *testing.T) {
	m, err := New("http_status", nil)
	require.NoError(t, err)
	hs := m.(*HTTPStatus)
	assert.Equal(t, 80, hs.Port)
	assert.Equal(t, "/", hs.URLPath)
	assert.Equal(t, []int{200}, hs.ExpectedCodes)

	m, err = New("https_status", map[string]any{"hostname": "www.example.com"})
	require.NoError(t, err)
	hs = m.(*HTTPStatus)
	assert.Equal(t, 443, hs.Port)
	assert.Equal(t, "https_status", hs.Name())

	// url_path gets a leading slash, duplicate codes collapse
	m, err = New("http_status", map[string]any{
		"url_path":       "health",
		"expected_codes": []int{301, 200, 200},
	})
	require.NoError(t, err)
	hs = m.(*HTTPStatus)
	assert.Equal(t, "/health", hs.URLPath)
	assert.Equal(t, []int{200, 301}, hs.ExpectedCodes)

	_, err = New("http_status", map[string]any{"expected_codes": []int{200, 201, 202, 203}})
	assert.Error(t, err, "too many expected codes")

	_, err = New("http_status", map[string]any{"expected_codes": []int{99}})
	assert.Error(t, err, "code out of range")
}

func TestForcedValidation(t *testing.T) {
	m, err := New("forced", nil)
	require.NoError(t, err)
	assert.NoError(t, m.Run("10.0.0.1"), "defaults to up")

	m, err = New("forced", map[string]any{"status": "DOWN"})
	require.NoError(t, err)
	assert.Error(t, m.Run("10.0.0.1"))

	_, err = New("forced", map[string]any{"status": "sideways"})
	assert.Error(t, err)
}
