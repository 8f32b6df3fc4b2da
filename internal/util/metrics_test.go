package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherCounter reads one counter from Registry.
func gatherCounter(t *testing.T, name string) float64 {
	t.Helper()

	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestRegistryReflectsStats(t *testing.T) {
	before := gatherCounter(t, "muxpeer_spoofed_packets_total")
	Stats.AddSpoofed()
	assert.Equal(t, before+1, gatherCounter(t, "muxpeer_spoofed_packets_total"))
}

func TestMetricsHandler(t *testing.T) {
	Stats.AddSent(10)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{
		"muxpeer_bytes_sent_total",
		"muxpeer_bytes_received_total",
		"muxpeer_peers_open",
		"muxpeer_decode_errors_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, formatBytes(tc.in))
	}
}
