package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(map[string][]string{
		"us-east": {"10.1.0.0/16", "172.16.1.0/24"},
		"eu-west": {"192.168.1.0/24"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestFromConfigRejectsDefaultRegion(t *testing.T) {
	_, err := FromConfig(map[string][]string{
		"_default": {"10.0.0.0/8"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "_default")
}

func TestFromConfigRejectsBadCIDR(t *testing.T) {
	_, err := FromConfig(map[string][]string{
		"us": {"10.0.0.0/33"},
	})
	assert.Error(t, err)

	_, err = FromConfig(map[string][]string{
		"us": {"not-a-network"},
	})
	assert.Error(t, err)
}

func TestGetRegion(t *testing.T) {
	m, err := FromConfig(map[string][]string{
		"us": {"10.0.0.0/8"},
		"eu": {"192.168.0.0/16"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		ip   string
		want string
	}{
		{"us match", "10.1.2.3", "us"},
		{"eu match", "192.168.44.1", "eu"},
		{"no match", "172.16.0.1", ""},
		{"invalid ip", "not-an-ip", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.GetRegion(tt.ip))
		})
	}
}

func TestGetRegionLongestPrefixWins(t *testing.T) {
	m, err := FromConfig(map[string][]string{
		"broad":    {"10.0.0.0/8"},
		"specific": {"10.1.1.0/24"},
	})
	require.NoError(t, err)

	assert.Equal(t, "specific", m.GetRegion("10.1.1.77"))
	assert.Equal(t, "broad", m.GetRegion("10.2.0.1"))
}

func TestGetRegionNilMap(t *testing.T) {
	var m *Map
	assert.Equal(t, "", m.GetRegion("10.0.0.1"))

	empty, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty.GetRegion("10.0.0.1"))
}
