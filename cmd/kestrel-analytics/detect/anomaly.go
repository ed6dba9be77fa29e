package detect

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AnomalyDetector runs per-event-type isolation forests trained offline.
// The feature vector is the numeric subset of the feature map in sorted key
// order — the training job serializes its column order the same way.
type AnomalyDetector struct {
	modelDir string
	log      *zap.SugaredLogger

	mu     sync.Mutex
	models map[string]*IsolationForest
	failed map[string]bool
}

func NewAnomalyDetector(modelDir string, log *zap.SugaredLogger) *AnomalyDetector {
	return &AnomalyDetector{
		modelDir: modelDir,
		log:      log,
		models:   make(map[string]*IsolationForest),
		failed:   make(map[string]bool),
	}
}

func (d *AnomalyDetector) model(eventType string) (*IsolationForest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.models[eventType]; ok {
		return m, nil
	}
	if d.failed[eventType] {
		return nil, fmt.Errorf("model for %q previously failed to load", eventType)
	}

	path := filepath.Join(d.modelDir, fmt.Sprintf("isolation_forest_%s.json", eventType))
	m, err := LoadIsolationForest(path)
	if err != nil {
		d.failed[eventType] = true
		return nil, err
	}
	d.models[eventType] = m
	return m, nil
}

// NumericVector flattens the numeric subset of a feature map in sorted key
// order (bools as 1/0).
func NumericVector(features map[string]interface{}) []float64 {
	keys := make([]string, 0, len(features))
	for k := range features {
		if _, ok := numericValue(features[k]); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	vec := make([]float64, 0, len(keys))
	for _, k := range keys {
		v, _ := numericValue(features[k])
		vec = append(vec, v)
	}
	return vec
}

func (d *AnomalyDetector) Detect(features map[string]interface{}, agentID, eventType string) (float64, []string) {
	vec := NumericVector(features)
	if len(vec) == 0 {
		return 0, nil
	}

	m, err := d.model(eventType)
	if err != nil {
		// Missing model never stops the pipeline.
		d.log.Debugw("anomaly model unavailable", "event_type", eventType, "error", err)
		return 0, nil
	}

	decision := m.DecisionFunction(vec)
	if m.Predict(vec) == -1 {
		score := math.Max(0, math.Min(100, 100+decision*100))
		return score, []string{"anomaly_high"}
	}
	return 0, nil
}
