package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubDetector returns fixed results.
type stubDetector struct {
	score   float64
	reasons []string
}

func (s stubDetector) Detect(features map[string]interface{}, agentID, eventType string) (float64, []string) {
	return s.score, s.reasons
}

func TestEnsembleWeightedSum(t *testing.T) {
	e := NewEnsemble(DefaultWeights,
		stubDetector{score: 80, reasons: []string{"rule_1"}},
		stubDetector{score: 50, reasons: []string{"anomaly_high"}},
		stubDetector{score: 90, reasons: []string{"behavioral_outlier"}},
	)

	score, reasons := e.Detect(map[string]interface{}{}, "agent-001", "process")

	// 80*0.4 + 50*0.3 + 90*0.3 = 74
	assert.Equal(t, 74.0, score)
	assert.Equal(t, []string{"rule_1"}, reasons.Rule)
	assert.Equal(t, []string{"anomaly_high"}, reasons.Anomaly)
	assert.Equal(t, []string{"behavioral_outlier"}, reasons.Behavioral)
}

func TestEnsembleRoundsToTwoDecimals(t *testing.T) {
	e := NewEnsemble(DefaultWeights,
		stubDetector{score: 33.333},
		stubDetector{score: 33.333},
		stubDetector{score: 33.333},
	)

	score, _ := e.Detect(nil, "a", "process")
	assert.Equal(t, 33.33, score)
}

func TestEnsembleEmptyReasonsAreArrays(t *testing.T) {
	e := NewEnsemble(DefaultWeights, stubDetector{}, stubDetector{}, stubDetector{})

	score, reasons := e.Detect(nil, "a", "process")
	assert.Equal(t, 0.0, score)
	assert.NotNil(t, reasons.Rule)
	assert.NotNil(t, reasons.Anomaly)
	assert.NotNil(t, reasons.Behavioral)
}
