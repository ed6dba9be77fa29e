package detect

import (
	"hash/fnv"
	"math"
	"sync"
)

// BehavioralDetector holds one online model per (agent_id, event_type).
// Models are created on first sighting and live in-process: replicas drift
// independently unless operators pin agents to a replica.
type BehavioralDetector struct {
	mu     sync.Mutex
	models map[string]*streamModel
}

func NewBehavioralDetector() *BehavioralDetector {
	return &BehavioralDetector{models: make(map[string]*streamModel)}
}

func (d *BehavioralDetector) model(agentID, eventType string) *streamModel {
	key := agentID + ":" + eventType

	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.models[key]; ok {
		return m
	}
	// Deterministic per-key seed keeps replays reproducible.
	h := fnv.New64a()
	h.Write([]byte(key))
	m := newStreamModel(int64(h.Sum64()))
	d.models[key] = m
	return m
}

// behavioralVector picks the event-type-specific scalar features.
func behavioralVector(features map[string]interface{}, eventType string) map[string]float64 {
	get := func(key string) float64 {
		v, _ := numericValue(features[key])
		return v
	}

	switch eventType {
	case "process":
		return map[string]float64{
			"cmd_len": get("command_line_len"),
			"freq":    get("proc_freq_per_hour"),
		}
	case "file":
		return map[string]float64{
			"size": get("file_size"),
			"freq": get("temp_file_freq"),
			"yara": get("yara_hits"),
		}
	case "network":
		return map[string]float64{
			"bytes": get("bytes_sent") + get("bytes_received"),
			"port":  get("remote_port"),
		}
	case "system":
		return map[string]float64{
			"cpu":  get("cpu_usage"),
			"mem":  get("memory_used_pct"),
			"disk": get("disk_usage"),
		}
	}
	return nil
}

func (d *BehavioralDetector) Detect(features map[string]interface{}, agentID, eventType string) (float64, []string) {
	x := behavioralVector(features, eventType)
	if x == nil {
		return 0, nil
	}

	m := d.model(agentID, eventType)

	// Score first, learn after: the sample must not influence its own
	// verdict.
	score := m.ScoreOne(x)
	m.LearnOne(x)

	if score > 0.8 {
		return math.Min(score*100, 100), []string{"behavioral_outlier"}
	}
	return 0, nil
}
