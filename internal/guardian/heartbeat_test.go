package guardian

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

// fakeStore records the last write per key; safe for concurrent use
// since guardian subsystems write from their own goroutines.
type fakeStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	expires map[string]int32
	failSet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:  make(map[string][]byte),
		expires: make(map[string]int32),
	}
}

func (f *fakeStore) SetJSON(key string, value any, expire int32) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("server is down")
	}
	f.values[key] = raw
	f.expires[key] = expire
	return nil
}

func (f *fakeStore) GetJSON(key string, out any) error {
	f.mu.Lock()
	raw, ok := f.values[key]
	f.mu.Unlock()
	if !ok {
		return sharedmem.ErrCacheMiss
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func (f *fakeStore) expire(key string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expires[key]
}

var _ sharedmem.Store = (*fakeStore)(nil)

func TestHeartbeatBeat(t *testing.T) {
	store := newFakeStore()
	h := NewHeartbeat(store, "polaris_health:heartbeat", discardLogger())

	h.beat()

	var payload HeartbeatPayload
	require.NoError(t, store.GetJSON("polaris_health:heartbeat", &payload))

	assert.NotZero(t, payload.Timestamp)
	assert.Len(t, payload.InstanceID, 8)
	assert.Equal(t, os.Getpid(), payload.PID)

	// TTL is the interval plus the grace period
	assert.Equal(t, int32(5), store.expire("polaris_health:heartbeat"))
}

func TestHeartbeatInstanceIDStable(t *testing.T) {
	store := newFakeStore()
	h := NewHeartbeat(store, "hb", discardLogger())

	h.beat()
	var first HeartbeatPayload
	require.NoError(t, store.GetJSON("hb", &first))

	h.beat()
	var second HeartbeatPayload
	require.NoError(t, store.GetJSON("hb", &second))

	assert.Equal(t, first.InstanceID, second.InstanceID)
	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
}

func TestHeartbeatSurvivesStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failSet = true

	h := NewHeartbeat(store, "hb", discardLogger())
	assert.NotPanics(t, func() { h.beat() })
}
