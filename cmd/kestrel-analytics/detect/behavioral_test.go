package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBehavioralColdModelIsQuiet(t *testing.T) {
	d := NewBehavioralDetector()

	// First sightings must not alert: the model has learned nothing yet.
	score, reasons := d.Detect(map[string]interface{}{
		"command_line_len":   40,
		"proc_freq_per_hour": int64(1),
	}, "agent-001", "process")

	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestBehavioralModelPerAgentAndType(t *testing.T) {
	d := NewBehavioralDetector()

	d.Detect(map[string]interface{}{"command_line_len": 40}, "agent-001", "process")
	d.Detect(map[string]interface{}{"command_line_len": 40}, "agent-002", "process")
	d.Detect(map[string]interface{}{"file_size": 10.0}, "agent-001", "file")

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.models, 3)
}

func TestBehavioralUnknownEventType(t *testing.T) {
	d := NewBehavioralDetector()
	score, reasons := d.Detect(map[string]interface{}{"x": 1.0}, "agent-001", "registry")
	assert.Equal(t, 0.0, score)
	assert.Empty(t, reasons)
}

func TestBehavioralScoreStaysBounded(t *testing.T) {
	d := NewBehavioralDetector()

	// Feed a steady pattern past the warmup window, then an extreme jump.
	for i := 0; i < 600; i++ {
		score, _ := d.Detect(map[string]interface{}{
			"command_line_len":   40,
			"proc_freq_per_hour": int64(i),
		}, "agent-001", "process")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}

	score, _ := d.Detect(map[string]interface{}{
		"command_line_len":   40000,
		"proc_freq_per_hour": int64(999999),
	}, "agent-001", "process")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestStreamModelOutlierScoresNoLowerThanTypical(t *testing.T) {
	m := newStreamModel(42)

	typical := map[string]float64{"cmd_len": 40, "freq": 5}
	for i := 0; i < 600; i++ {
		m.LearnOne(typical)
	}

	typicalScore := m.ScoreOne(typical)
	outlierScore := m.ScoreOne(map[string]float64{"cmd_len": 4000, "freq": 5000})

	assert.GreaterOrEqual(t, outlierScore, typicalScore)
	assert.LessOrEqual(t, outlierScore, 1.0)
	assert.GreaterOrEqual(t, typicalScore, 0.0)
}

func TestQuantileFilterProtectsWarmup(t *testing.T) {
	f := newQuantileFilter(0.95)
	assert.False(t, f.IsOutlier(0.99), "nothing filters before enough observations")

	for i := 0; i < 100; i++ {
		f.Observe(0.1)
	}
	assert.True(t, f.IsOutlier(0.9))
	assert.False(t, f.IsOutlier(0.05))
}
