package enrichers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-go/cmd/kestrel-enrichment/yara"
	"kestrel-go/pkg/models"
)

// fakeIntel returns canned verdicts and records which indicators were
// asked about.
type fakeIntel struct {
	vt      models.VTResult
	otxFile models.OTXResult
	otxIP   models.OTXResult
	ipAsked []string
	vtAsked []string
}

func (f *fakeIntel) VTFile(ctx context.Context, hash string) *models.VTResult {
	f.vtAsked = append(f.vtAsked, hash)
	v := f.vt
	return &v
}

func (f *fakeIntel) OTXFile(ctx context.Context, hash string) *models.OTXResult {
	v := f.otxFile
	return &v
}

func (f *fakeIntel) OTXIP(ctx context.Context, ip string) *models.OTXResult {
	f.ipAsked = append(f.ipAsked, ip)
	v := f.otxIP
	return &v
}

func testScanner(t *testing.T) *yara.Scanner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: mimikatz
    patterns: [mimikatz]
`), 0o644))
	s, err := yara.Load(path)
	require.NoError(t, err)
	return s
}

func rawEvent(eventType string, payload map[string]interface{}) *models.RawEvent {
	return &models.RawEvent{
		EventID:   "7b0f9a4e-50c1-4a1f-9d8e-2f1a6c3b5d7e",
		AgentID:   "agent-001",
		EventType: eventType,
		Payload:   payload,
		Timestamp: "2024-05-01T12:00:00Z",
	}
}

func TestProcessEnricherMimikatz(t *testing.T) {
	intel := &fakeIntel{vt: models.VTResult{Positives: 67, Total: 70}}
	e := &ProcessEnricher{intel: intel, yara: testScanner(t)}

	enr := e.Enrich(context.Background(), rawEvent("process", map[string]interface{}{
		"process_name":      "mimikatz.exe",
		"command_line":      "mimikatz.exe sekurlsa::logonpasswords",
		"executable_path":   `C:\Temp\mimikatz.exe`,
		"hash":              "44d88612fea8a8f36de82e1278abb02f",
		"parent_process_id": float64(0),
	}))

	// yara +25, vt capped at +60, system parent +10 => clamped additive 95.
	assert.Equal(t, 95.0, enr.ThreatScore)
	assert.Contains(t, enr.YaraHits, "mimikatz")
	assert.Contains(t, enr.IOCMatches, "system_parent")
	require.NotNil(t, enr.Reputation.VT)
	assert.Equal(t, 67, enr.Reputation.VT.Positives)
}

func TestProcessEnricherCleanProcess(t *testing.T) {
	intel := &fakeIntel{}
	e := &ProcessEnricher{intel: intel, yara: testScanner(t)}

	enr := e.Enrich(context.Background(), rawEvent("process", map[string]interface{}{
		"process_name":      "notepad.exe",
		"command_line":      "notepad.exe report.txt",
		"executable_path":   `C:\Windows\notepad.exe`,
		"parent_process_id": float64(1234),
	}))

	assert.Equal(t, 0.0, enr.ThreatScore)
	assert.Empty(t, enr.IOCMatches)
}

func TestFileEnricherScoring(t *testing.T) {
	intel := &fakeIntel{
		vt:      models.VTResult{Positives: 4, Total: 70},
		otxFile: models.OTXResult{Pulses: 5},
	}
	e := &FileEnricher{intel: intel, yara: testScanner(t)}

	enr := e.Enrich(context.Background(), rawEvent("file", map[string]interface{}{
		"file_name": "mimikatz.exe",
		"file_path": `C:\Temp\mimikatz.exe`,
		"file_hash": "44d88612fea8a8f36de82e1278abb02f",
	}))

	// yara +30, vt 4*5=20, otx 5*3=15.
	assert.Equal(t, 65.0, enr.ThreatScore)
	assert.Contains(t, enr.IOCMatches, "vt_malicious")
	assert.Contains(t, enr.IOCMatches, "otx_pulses")
}

func TestFileEnricherShortHashSkipsLookups(t *testing.T) {
	intel := &fakeIntel{vt: models.VTResult{Positives: 99}}
	e := &FileEnricher{intel: intel, yara: nil}

	enr := e.Enrich(context.Background(), rawEvent("file", map[string]interface{}{
		"file_name": "report.docx",
		"file_path": `C:\Users\docs\report.docx`,
		"file_hash": "short",
	}))

	assert.Equal(t, 0.0, enr.ThreatScore)
	assert.Empty(t, intel.vtAsked)
}

func TestNetworkEnricherSkipsLocalAddresses(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "::1", "0.0.0.0", ""} {
		intel := &fakeIntel{otxIP: models.OTXResult{Pulses: 85}}
		e := &NetworkEnricher{intel: intel, geo: nil}

		enr := e.Enrich(context.Background(), rawEvent("network", map[string]interface{}{
			"remote_ip": ip,
		}))

		assert.Equal(t, 0.0, enr.ThreatScore, "ip %q", ip)
		assert.Empty(t, intel.ipAsked, "ip %q", ip)
	}
}

func TestNetworkEnricherMaliciousIP(t *testing.T) {
	intel := &fakeIntel{otxIP: models.OTXResult{Pulses: 85}}
	e := &NetworkEnricher{intel: intel, geo: nil}

	enr := e.Enrich(context.Background(), rawEvent("network", map[string]interface{}{
		"remote_ip":   "185.156.47.22",
		"remote_port": float64(443),
	}))

	// 85 pulses * 5 capped at 40.
	assert.Equal(t, 40.0, enr.ThreatScore)
	assert.Contains(t, enr.IOCMatches, "otx_ip_malicious")
}

func TestSystemEnricherPressureTags(t *testing.T) {
	e := &SystemEnricher{}

	tests := []struct {
		name      string
		payload   map[string]interface{}
		wantScore float64
		wantTags  []string
	}{
		{
			"high cpu",
			map[string]interface{}{"cpu_usage": float64(95)},
			30.0, // (95-80)*2 = 30 capped at 30
			[]string{"high_cpu"},
		},
		{
			"high memory",
			map[string]interface{}{"cpu_usage": float64(10), "memory_used_pct": float64(95)},
			15.0, // (95-90)*3
			[]string{"high_memory"},
		},
		{
			"both",
			map[string]interface{}{"cpu_usage": float64(85), "memory_used_pct": float64(99)},
			37.0, // (85-80)*2 + (99-90)*3
			[]string{"high_cpu", "high_memory"},
		},
		{
			"calm",
			map[string]interface{}{"cpu_usage": float64(20), "memory_used_pct": float64(40)},
			0.0,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enr := e.Enrich(context.Background(), rawEvent("system", tt.payload))
			assert.Equal(t, tt.wantScore, enr.ThreatScore)
			for _, tag := range tt.wantTags {
				assert.Contains(t, enr.IOCMatches, tag)
			}
		})
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(&fakeIntel{}, nil, nil)

	_, err := r.Enrich(context.Background(), rawEvent("system", map[string]interface{}{"cpu_usage": float64(1)}))
	assert.NoError(t, err)

	_, err = r.Enrich(context.Background(), rawEvent("registry", map[string]interface{}{}))
	assert.Error(t, err)
}
