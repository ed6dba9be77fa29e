package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleDetectorPredicates(t *testing.T) {
	d, err := NewRuleDetector()
	require.NoError(t, err)

	tests := []struct {
		name        string
		features    map[string]interface{}
		wantScore   float64
		wantReasons []string
	}{
		{
			"high threat score",
			map[string]interface{}{"threat_score": 85.0},
			20, []string{"rule_1"},
		},
		{
			"known malicious hash",
			map[string]interface{}{"vt_positives": 11},
			20, []string{"rule_2"},
		},
		{
			"multiple yara hits",
			map[string]interface{}{"yara_hits_count": 2},
			20, []string{"rule_3"},
		},
		{
			"system parent with high frequency",
			map[string]interface{}{"is_system_parent": true, "proc_freq_per_hour": int64(6)},
			20, []string{"rule_4"},
		},
		{
			"suspicious path",
			map[string]interface{}{"is_suspicious_path": true},
			20, []string{"rule_5"},
		},
		{
			"system parent alone is not enough",
			map[string]interface{}{"is_system_parent": true, "proc_freq_per_hour": int64(2)},
			0, nil,
		},
		{
			"mimikatz-style stack",
			map[string]interface{}{
				"threat_score":       95.0,
				"vt_positives":       67,
				"yara_hits_count":    1,
				"is_system_parent":   true,
				"proc_freq_per_hour": int64(6),
				"is_suspicious_path": true,
			},
			80, []string{"rule_1", "rule_2", "rule_4", "rule_5"},
		},
		{
			"empty features contribute nothing",
			map[string]interface{}{},
			0, nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := d.Detect(tt.features, "agent-001", "process")
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantReasons, reasons)
		})
	}
}

func TestRuleDetectorSwallowsTypeErrors(t *testing.T) {
	d, err := NewRuleDetector()
	require.NoError(t, err)

	// Predicates over the wrong types must not panic or contribute.
	score, reasons := d.Detect(map[string]interface{}{
		"threat_score":       "not a number",
		"is_suspicious_path": "yes",
	}, "agent-001", "process")

	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestRuleDetectorIsPure(t *testing.T) {
	d, err := NewRuleDetector()
	require.NoError(t, err)

	features := map[string]interface{}{"threat_score": 90.0}
	s1, _ := d.Detect(features, "a", "process")
	s2, _ := d.Detect(features, "b", "file")
	assert.Equal(t, s1, s2)
}
