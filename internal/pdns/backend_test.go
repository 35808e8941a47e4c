package pdns

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedHandler returns canned results and records calls.
type scriptedHandler struct {
	initializeResult any
	lookupResult     any
	lookups          []Parameters
}

func (h *scriptedHandler) Initialize(params Parameters, log *[]string) any {
	return h.initializeResult
}

func (h *scriptedHandler) Lookup(params Parameters, log *[]string) any {
	h.lookups = append(h.lookups, params)
	return h.lookupResult
}

// runBackend feeds input through the pipe loop and returns one decoded
// response per output line.
func runBackend(t *testing.T, handler Handler, includeLog bool, input string) []map[string]any {
	t.Helper()

	backend := NewBackend(handler, includeLog, discardLogger())
	backend.reader = strings.NewReader(input)
	var out bytes.Buffer
	backend.writer = &out

	require.NoError(t, backend.Run())

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestBackendInitialize(t *testing.T) {
	h := &scriptedHandler{initializeResult: true}
	responses := runBackend(t, h, false,
		`{"method":"initialize","parameters":{"timeout":"2000"}}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, true, responses[0]["result"])
	assert.NotContains(t, responses[0], "log")
}

func TestBackendLookup(t *testing.T) {
	h := &scriptedHandler{lookupResult: []Record{{
		QType: "A", QName: "www.example.com", Content: "192.0.2.1", TTL: 1,
	}}}

	responses := runBackend(t, h, false,
		`{"method":"lookup","parameters":{"qtype":"A","qname":"www.example.com","remote":"10.1.1.21","local":"0.0.0.0","real-remote":"10.1.1.21/32","zone-id":-1}}`+"\n")

	require.Len(t, responses, 1)
	records, ok := responses[0]["result"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)

	record := records[0].(map[string]any)
	assert.Equal(t, "A", record["qtype"])
	assert.Equal(t, "www.example.com", record["qname"])
	assert.Equal(t, "192.0.2.1", record["content"])
	assert.Equal(t, float64(1), record["ttl"])

	// the handler saw the parsed parameters
	require.Len(t, h.lookups, 1)
	assert.Equal(t, "10.1.1.21", h.lookups[0].Remote)
	assert.Equal(t, -1, h.lookups[0].ZoneID)
}

func TestBackendGetDomainMetadata(t *testing.T) {
	h := &scriptedHandler{}
	responses := runBackend(t, h, false,
		`{"method":"getDomainMetadata","parameters":{"name":"www.example.com","kind":"SOA-EDIT"}}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["result"])
}

func TestBackendUnknownMethod(t *testing.T) {
	h := &scriptedHandler{}
	responses := runBackend(t, h, true,
		`{"method":"calculateSOASerial","parameters":{}}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["result"])

	log, ok := responses[0]["log"].([]any)
	require.True(t, ok)
	require.Len(t, log, 1)
	assert.Contains(t, log[0].(string), "not implemented")
}

func TestBackendMalformedRequest(t *testing.T) {
	h := &scriptedHandler{}
	responses := runBackend(t, h, false, "{not json}\n")

	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["result"])
}

func TestBackendEmptyLineExits(t *testing.T) {
	h := &scriptedHandler{lookupResult: false}
	responses := runBackend(t, h, false,
		"\n"+`{"method":"lookup","parameters":{"qtype":"A","qname":"x"}}`+"\n")

	// the empty line terminates the loop before the lookup
	assert.Empty(t, responses)
	assert.Empty(t, h.lookups)
}

func TestBackendResponseLog(t *testing.T) {
	h := &scriptedHandler{lookupResult: false}
	responses := runBackend(t, h, true,
		`{"method":"lookup","parameters":{"qtype":"A","qname":"x"}}`+"\n")

	require.Len(t, responses, 1)
	log, ok := responses[0]["log"].([]any)
	require.True(t, ok, "log array present when response logging is on")
	require.Len(t, log, 1, "entries joined into a single string")

	entry := log[0].(string)
	assert.Contains(t, entry, "request:")
	assert.Contains(t, entry, "pid:")
	assert.Contains(t, entry, "time taken:")
}

func TestBackendProcessesMultipleRequests(t *testing.T) {
	h := &scriptedHandler{lookupResult: false}
	input := strings.Repeat(`{"method":"lookup","parameters":{"qtype":"A","qname":"x"}}`+"\n", 3)

	responses := runBackend(t, h, false, input)
	assert.Len(t, responses, 3)
	assert.Len(t, h.lookups, 3)
}
