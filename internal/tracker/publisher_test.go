package tracker

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/polaris-gslb/internal/sharedmem"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

// fakeStore records writes in order and can fail specific keys.
type fakeStore struct {
	writes  []string
	values  map[string][]byte
	failKey string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string][]byte)}
}

func (f *fakeStore) SetJSON(key string, value any, expire int32) error {
	if key == f.failKey {
		return errors.New("server is down")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.writes = append(f.writes, key)
	f.values[key] = raw
	return nil
}

func (f *fakeStore) GetJSON(key string, out any) error {
	raw, ok := f.values[key]
	if !ok {
		return sharedmem.ErrCacheMiss
	}
	return json.Unmarshal(raw, out)
}

var _ sharedmem.Store = (*fakeStore)(nil)

var testKeys = PublisherKeys{
	PPDNSState:     "polaris_health:ppdns_state",
	GenericState:   "polaris_health:generic_state",
	StateTimestamp: "polaris_health:state_timestamp",
}

func newTestPublisher(t *testing.T, trk *Tracker, store *fakeStore) *Publisher {
	t.Helper()
	pub := NewPublisher(trk, store, testKeys, discardLogger())
	pub.newRNG = testRNG
	return pub
}

// converge brings every member UP through the real result-application
// path so snapshots are publishable.
func converge(trk *Tracker) {
	for _, pool := range trk.st.Pools {
		for _, member := range pool.Members {
			trk.applyProbeResponse(respond(member, pool, true, "monitor passed"))
		}
	}
}

func TestPushWriteOrder(t *testing.T) {
	st := testState(t)
	trk := newTestTracker(t, st)
	store := newFakeStore()
	pub := newTestPublisher(t, trk, store)

	converge(trk)
	pub.push()

	// timestamp strictly after the two data keys
	require.Equal(t, []string{
		testKeys.PPDNSState,
		testKeys.GenericState,
		testKeys.StateTimestamp,
	}, store.writes)

	var ts float64
	require.NoError(t, store.GetJSON(testKeys.StateTimestamp, &ts))
	assert.Equal(t, pub.lastPushed, ts)
}

func TestPushSkipsBeforeConvergence(t *testing.T) {
	st := testState(t)
	trk := newTestTracker(t, st)
	store := newFakeStore()
	pub := newTestPublisher(t, trk, store)

	// one member determined, one still UNKNOWN
	pool := st.Pools["pool1"]
	trk.applyProbeResponse(respond(pool.Members[0], pool, true, "ok"))

	pub.push()
	assert.Empty(t, store.writes)
	assert.Zero(t, pub.lastPushed)
}

func TestPushSkipsWhenTimestampUnchanged(t *testing.T) {
	st := testState(t)
	trk := newTestTracker(t, st)
	store := newFakeStore()
	pub := newTestPublisher(t, trk, store)

	converge(trk)
	pub.push()
	written := len(store.writes)

	pub.push()
	assert.Equal(t, written, len(store.writes), "no new writes without a state change")
}

func TestPushRetriesAfterWriteFailure(t *testing.T) {
	st := testState(t)
	trk := newTestTracker(t, st)
	store := newFakeStore()
	pub := newTestPublisher(t, trk, store)

	converge(trk)

	store.failKey = testKeys.GenericState
	pub.push()
	assert.Zero(t, pub.lastPushed, "failed push must not advance lastPushed")

	// next cadence succeeds and pushes the full snapshot
	store.failKey = ""
	pub.push()
	assert.NotZero(t, pub.lastPushed)
	assert.Contains(t, store.values, testKeys.StateTimestamp)
}

func TestPushedSnapshotDeserializes(t *testing.T) {
	st := testState(t)
	trk := newTestTracker(t, st)
	store := newFakeStore()
	pub := newTestPublisher(t, trk, store)

	converge(trk)
	pub.push()

	var snapshot map[string]any
	require.NoError(t, store.GetJSON(testKeys.PPDNSState, &snapshot))
	assert.Contains(t, snapshot, "pools")
	assert.Contains(t, snapshot, "globalnames")
	assert.Contains(t, snapshot, "timestamp")

	var generic map[string]any
	require.NoError(t, store.GetJSON(testKeys.GenericState, &generic))
	assert.Contains(t, generic, "pools")
}
