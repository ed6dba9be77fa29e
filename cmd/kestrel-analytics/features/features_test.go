package features

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

func testCounters(t *testing.T) *database.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := database.NewRedisClient(&database.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func enrichedEvent(eventType string, payload map[string]interface{}, enrichment models.Enrichment) *models.EnrichedEvent {
	return &models.EnrichedEvent{
		EventID:    "7b0f9a4e-50c1-4a1f-9d8e-2f1a6c3b5d7e",
		AgentID:    "agent-001",
		EventType:  eventType,
		Payload:    payload,
		Enrichment: enrichment,
		Timestamp:  "2024-05-01T12:00:00Z",
	}
}

func TestProcessFeaturesMimikatz(t *testing.T) {
	registry := NewRegistry(testCounters(t))

	evt := enrichedEvent("process", map[string]interface{}{
		"process_name":      "mimikatz.exe",
		"command_line":      "mimikatz.exe sekurlsa::logonpasswords",
		"executable_path":   `C:\Temp\mimikatz.exe`,
		"parent_process_id": float64(0),
	}, models.Enrichment{
		Reputation:  models.Reputation{VT: &models.VTResult{Positives: 67, Total: 70}},
		YaraHits:    []string{"mimikatz"},
		ThreatScore: 95,
	})

	feats, err := registry.Extract(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, true, feats["is_system_parent"])
	assert.Equal(t, 67, feats["vt_positives"])
	assert.Equal(t, true, feats["hash_known_malicious"])
	assert.Equal(t, true, feats["is_suspicious_path"])
	assert.Equal(t, 1, feats["yara_hits_count"])
	assert.Equal(t, 95.0, feats["threat_score"])
	assert.Equal(t, int64(1), feats["proc_freq_per_hour"])
	assert.Equal(t, len("mimikatz.exe sekurlsa::logonpasswords"), feats["command_line_len"])
}

func TestProcessFrequencyCounterIncrements(t *testing.T) {
	registry := NewRegistry(testCounters(t))

	evt := enrichedEvent("process", map[string]interface{}{
		"process_name": "powershell.exe",
	}, models.Enrichment{})

	var last int64
	for i := 1; i <= 6; i++ {
		feats, err := registry.Extract(context.Background(), evt)
		require.NoError(t, err)
		last = feats["proc_freq_per_hour"].(int64)
		assert.Equal(t, int64(i), last)
	}
	assert.Equal(t, int64(6), last)
}

func TestFileFeatures(t *testing.T) {
	registry := NewRegistry(testCounters(t))

	evt := enrichedEvent("file", map[string]interface{}{
		"file_name": "Payload.PS1",
		"file_path": `C:\Users\x\AppData\Local\Temp\payload.ps1`,
		"file_type": ".ps1",
		"file_size": float64(2048),
	}, models.Enrichment{
		Reputation: models.Reputation{
			VT:  &models.VTResult{Positives: 12},
			OTX: &models.OTXResult{Pulses: 4},
		},
		YaraHits:    []string{"powershell_download"},
		ThreatScore: 70,
	})

	feats, err := registry.Extract(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, "payload.ps1", feats["file_name"])
	assert.Equal(t, true, feats["is_temp_dir"])
	assert.Equal(t, true, feats["is_script"])
	assert.Equal(t, 1, feats["yara_hits"])
	assert.Equal(t, 12, feats["vt_positives"])
	assert.Equal(t, 4, feats["otx_pulses"])
	assert.Equal(t, int64(1), feats["temp_file_freq"])
}

func TestNetworkFeatures(t *testing.T) {
	registry := NewRegistry(testCounters(t))

	tests := []struct {
		name        string
		remoteIP    string
		wantLoop    bool
		wantPrivate bool
	}{
		{"public", "185.156.47.22", false, false},
		{"loopback", "127.0.0.1", true, false},
		{"private 192", "192.168.1.5", false, true},
		{"private 10", "10.0.0.9", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := enrichedEvent("network", map[string]interface{}{
				"remote_ip":      tt.remoteIP,
				"remote_port":    float64(443),
				"bytes_sent":     float64(1000),
				"bytes_received": float64(5000),
				"protocol":       "tcp",
			}, models.Enrichment{
				Reputation: models.Reputation{OTX: &models.OTXResult{Pulses: 85}},
				GeoIP:      models.GeoIP{Country: "Russia"},
			})

			feats, err := registry.Extract(context.Background(), evt)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLoop, feats["is_loopback"])
			assert.Equal(t, tt.wantPrivate, feats["is_private_ip"])
			assert.Equal(t, 85, feats["otx_pulses"])
			assert.Equal(t, "Russia", feats["geoip_country"])
		})
	}
}

func TestSystemFeatures(t *testing.T) {
	registry := NewRegistry(testCounters(t))

	evt := enrichedEvent("system", map[string]interface{}{
		"cpu_usage":        float64(93),
		"total_memory":     float64(16 * 1024 * 1024 * 1024),
		"available_memory": float64(1 * 1024 * 1024 * 1024),
		"disk_usage":       float64(70),
		"uptime":           float64(3600),
	}, models.Enrichment{ThreatScore: 30})

	feats, err := registry.Extract(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, true, feats["high_cpu"])
	assert.Equal(t, 93.75, feats["memory_used_pct"])
	assert.Equal(t, true, feats["high_memory"])
	assert.Equal(t, 30.0, feats["threat_score"])
}

func TestUnknownEventTypeErrors(t *testing.T) {
	registry := NewRegistry(testCounters(t))
	_, err := registry.Extract(context.Background(), enrichedEvent("registry", nil, models.Enrichment{}))
	assert.Error(t, err)
}
