package schema

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"kestrel-go/pkg/models"
)

// Validator checks bus payloads against the event schemas. Schema failure
// means the producer broke its contract; callers log and terminate the
// message without requeue.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// requiredPayloadKeys lists the payload fields each event type must carry.
// System events validate like every other type; high_cpu/high_memory tags
// are derived downstream, not required on the wire.
var requiredPayloadKeys = map[string][]string{
	"process": {"process_name"},
	"file":    {"file_name", "file_path"},
	"network": {"remote_ip"},
	"system":  {"cpu_usage"},
}

func (s *Validator) checkPayload(eventType string, payload map[string]interface{}) error {
	for _, key := range requiredPayloadKeys[eventType] {
		if _, ok := payload[key]; !ok {
			return fmt.Errorf("payload missing required key %q for event type %q", key, eventType)
		}
	}
	return nil
}

// DecodeRawEvent unmarshals and validates a raw event message.
func (s *Validator) DecodeRawEvent(data []byte) (*models.RawEvent, error) {
	var evt models.RawEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("raw event decode failed: %w", err)
	}
	if err := s.v.Struct(&evt); err != nil {
		return nil, fmt.Errorf("raw event schema violation: %w", err)
	}
	if err := s.checkPayload(evt.EventType, evt.Payload); err != nil {
		return nil, fmt.Errorf("raw event schema violation: %w", err)
	}
	return &evt, nil
}

// DecodeEnrichedEvent unmarshals and validates an enriched event message.
func (s *Validator) DecodeEnrichedEvent(data []byte) (*models.EnrichedEvent, error) {
	var evt models.EnrichedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("enriched event decode failed: %w", err)
	}
	if err := s.v.Struct(&evt); err != nil {
		return nil, fmt.Errorf("enriched event schema violation: %w", err)
	}
	if evt.Enrichment.ThreatScore < 0 || evt.Enrichment.ThreatScore > 100 {
		return nil, fmt.Errorf("enriched event schema violation: threat_score %v out of [0,100]", evt.Enrichment.ThreatScore)
	}
	return &evt, nil
}

// DecodeAlert unmarshals an alert message from the bus.
func (s *Validator) DecodeAlert(data []byte) (*models.Alert, error) {
	var alert models.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("alert decode failed: %w", err)
	}
	if alert.ID == "" || alert.AgentID == "" || alert.EventType == "" {
		return nil, fmt.Errorf("alert schema violation: missing id/agent_id/event_type")
	}
	return &alert, nil
}
