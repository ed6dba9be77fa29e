package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score    float64
		want     Severity
		alerting bool
	}{
		{49.99, "", false},
		{50.00, SeverityMedium, true},
		{64.99, SeverityMedium, true},
		{65.00, SeverityHigh, true},
		{79.99, SeverityHigh, true},
		{80.00, SeverityCritical, true},
		{100.00, SeverityCritical, true},
		{0, "", false},
	}

	for _, tt := range tests {
		severity, ok := SeverityForScore(tt.score)
		assert.Equal(t, tt.alerting, ok, "score %v", tt.score)
		assert.Equal(t, tt.want, severity, "score %v", tt.score)
	}
}

func TestEnrichmentAddScoreClamps(t *testing.T) {
	e := NewEnrichment()
	e.AddScore(60)
	e.AddScore(60)
	assert.Equal(t, 100.0, e.ThreatScore)

	e2 := NewEnrichment()
	e2.AddScore(-5)
	assert.Equal(t, 0.0, e2.ThreatScore)
}

func TestEnrichmentTagDeduplicates(t *testing.T) {
	e := NewEnrichment()
	e.Tag("high_cpu")
	e.Tag("high_cpu")
	e.Tag("high_memory")
	assert.Equal(t, []string{"high_cpu", "high_memory"}, e.IOCMatches)
}

func TestAlertDetailsRoundTripKeepsExtraKeys(t *testing.T) {
	in := []byte(`{
		"features": {"vt_positives": 12},
		"reasons": {"rule": ["rule_2"], "anomaly": [], "behavioral": []},
		"model": "ensemble",
		"pid": 4242,
		"path": "C:/Temp/mal.exe"
	}`)

	var d AlertDetails
	require.NoError(t, json.Unmarshal(in, &d))

	assert.Equal(t, float64(12), d.Features["vt_positives"])
	assert.Equal(t, []string{"rule_2"}, d.Reasons.Rule)
	assert.Equal(t, "ensemble", d.Model)

	pid, ok := d.Detail("pid")
	require.True(t, ok)
	assert.Equal(t, float64(4242), pid)

	out, err := json.Marshal(d)
	require.NoError(t, err)

	var d2 AlertDetails
	require.NoError(t, json.Unmarshal(out, &d2))
	assert.Equal(t, d, d2)
}

func TestDetailFallsBackToFeatures(t *testing.T) {
	d := AlertDetails{Features: map[string]interface{}{"remote_ip": "185.156.47.22"}}

	v, ok := d.Detail("remote_ip")
	require.True(t, ok)
	assert.Equal(t, "185.156.47.22", v)

	_, ok = d.Detail("absent")
	assert.False(t, ok)
}

func TestKnownEventType(t *testing.T) {
	for _, typ := range []string{"process", "file", "network", "system"} {
		assert.True(t, KnownEventType(typ))
	}
	assert.False(t, KnownEventType("registry"))
}
