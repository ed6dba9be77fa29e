package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testContext() map[string]interface{} {
	return map[string]interface{}{
		"alert": map[string]interface{}{
			"severity":   "critical",
			"event_type": "process",
			"score":      84.5,
			"details": map[string]interface{}{
				"reasons": map[string]interface{}{
					"rule": []interface{}{"rule_1", "rule_2"},
				},
			},
		},
	}
}

func TestPreconditionsEquals(t *testing.T) {
	tests := []struct {
		name string
		cond map[string]interface{}
		want bool
	}{
		{
			"matching equals",
			map[string]interface{}{"equals": map[string]interface{}{"path": "alert.severity", "value": "critical"}},
			true,
		},
		{
			"non-matching equals",
			map[string]interface{}{"equals": map[string]interface{}{"path": "alert.severity", "value": "low"}},
			false,
		},
		{
			"numeric equals across types",
			map[string]interface{}{"equals": map[string]interface{}{"path": "alert.score", "value": float32(84.5)}},
			true,
		},
		{
			"missing path",
			map[string]interface{}{"equals": map[string]interface{}{"path": "alert.nothing.here", "value": "x"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluatePreconditions([]map[string]interface{}{tt.cond}, testContext())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreconditionsContains(t *testing.T) {
	ok := evaluatePreconditions([]map[string]interface{}{
		{"contains": map[string]interface{}{"path": "alert.details.reasons.rule", "value": "rule_1"}},
	}, testContext())
	assert.True(t, ok)

	ok = evaluatePreconditions([]map[string]interface{}{
		{"contains": map[string]interface{}{"path": "alert.details.reasons.rule", "value": "rule_9"}},
	}, testContext())
	assert.False(t, ok)

	// String containment.
	ok = evaluatePreconditions([]map[string]interface{}{
		{"contains": map[string]interface{}{"path": "alert.event_type", "value": "proc"}},
	}, testContext())
	assert.True(t, ok)
}

func TestPreconditionsFreeKeyValue(t *testing.T) {
	ok := evaluatePreconditions([]map[string]interface{}{
		{"severity": "critical", "event_type": "process"},
	}, testContext())
	assert.True(t, ok)

	ok = evaluatePreconditions([]map[string]interface{}{
		{"severity": "medium"},
	}, testContext())
	assert.False(t, ok)
}

func TestPreconditionsAllMustHold(t *testing.T) {
	ok := evaluatePreconditions([]map[string]interface{}{
		{"equals": map[string]interface{}{"path": "alert.severity", "value": "critical"}},
		{"severity": "medium"},
	}, testContext())
	assert.False(t, ok)
}

func TestPreconditionsEmptyListPasses(t *testing.T) {
	assert.True(t, evaluatePreconditions(nil, testContext()))
	assert.True(t, evaluatePreconditions([]map[string]interface{}{}, testContext()))
}
