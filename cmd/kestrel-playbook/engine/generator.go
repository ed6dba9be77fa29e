package engine

import (
	"kestrel-go/cmd/kestrel-playbook/playbook"
	"kestrel-go/pkg/models"
)

// Planner produces playbook YAML for an alert. A generative planner slots
// in here; its output still has to pass catalog validation, and the
// deterministic recipe remains the fallback on any failure.
type Planner interface {
	Plan(alert *models.Alert) (string, error)
}

// DeterministicPlanner is the always-available recipe: one containment
// step matched to the event type.
type DeterministicPlanner struct{}

func detailString(alert *models.Alert, fallback string, keys ...string) string {
	for _, key := range keys {
		if raw, ok := alert.Details.Detail(key); ok {
			if v, ok := raw.(string); ok && v != "" {
				return v
			}
		}
	}
	return fallback
}

func detailNumber(alert *models.Alert, key string, fallback float64) float64 {
	raw, ok := alert.Details.Detail(key)
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// Plan builds the minimal YAML for the alert's type and severity.
func (DeterministicPlanner) Plan(alert *models.Alert) (string, error) {
	var steps []playbook.Step

	switch alert.EventType {
	case "process":
		steps = []playbook.Step{{
			Name:   "Kill malicious process",
			Action: "kill_process",
			Params: map[string]interface{}{"pid": detailNumber(alert, "pid", 0)},
		}}
	case "network":
		steps = []playbook.Step{{
			Name:   "Block C2 IP",
			Action: "block_ip",
			Params: map[string]interface{}{"ip": detailString(alert, "0.0.0.0", "ip", "remote_ip")},
		}}
	case "file":
		steps = []playbook.Step{{
			Name:   "Quarantine file",
			Action: "quarantine_file",
			Params: map[string]interface{}{"path": detailString(alert, "", "path", "file_path")},
		}}
	default:
		steps = []playbook.Step{{
			Name:   "Isolate host",
			Action: "isolate_host",
			Params: map[string]interface{}{},
		}}
	}

	pb := &playbook.Playbook{
		ID:      playbook.IDFor(alert.EventType, string(alert.Severity)),
		Version: "1.0",
		Metadata: map[string]interface{}{
			"event_type": alert.EventType,
			"severity":   string(alert.Severity),
		},
		Preconditions: []map[string]interface{}{},
		Steps:         steps,
		Rollback:      []playbook.Step{},
	}

	data, err := pb.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
