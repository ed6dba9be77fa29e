package models

import (
	"encoding/json"
	"time"
)

// Enums
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertThreshold is the minimum ensemble score that produces an alert.
const AlertThreshold = 50.0

// SeverityForScore maps an ensemble score to its severity bucket.
// Scores below the alerting threshold have no severity.
func SeverityForScore(score float64) (Severity, bool) {
	switch {
	case score >= 80:
		return SeverityCritical, true
	case score >= 65:
		return SeverityHigh, true
	case score >= AlertThreshold:
		return SeverityMedium, true
	default:
		return "", false
	}
}

type EventType string

const (
	EventTypeProcess EventType = "process"
	EventTypeFile    EventType = "file"
	EventTypeNetwork EventType = "network"
	EventTypeSystem  EventType = "system"
)

// KnownEventType reports whether t is one of the four telemetry types.
func KnownEventType(t string) bool {
	switch EventType(t) {
	case EventTypeProcess, EventTypeFile, EventTypeNetwork, EventTypeSystem:
		return true
	}
	return false
}

type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "pending"
	DecisionExecuted  DecisionStatus = "executed"
	DecisionDismissed DecisionStatus = "dismissed"
)

// RawEvent is the host telemetry message produced by an endpoint agent.
// The back-plane only reads it.
type RawEvent struct {
	EventID   string                 `json:"event_id" validate:"required,uuid4"`
	AgentID   string                 `json:"agent_id" validate:"required"`
	EventType string                 `json:"event_type" validate:"required,oneof=process file network system"`
	Payload   map[string]interface{} `json:"payload" validate:"required"`
	Timestamp string                 `json:"timestamp" validate:"required"`
}

// VTResult is a cached VirusTotal verdict for a file hash.
type VTResult struct {
	Positives int `json:"positives"`
	Total     int `json:"total"`
}

// OTXResult is a cached OTX pulse count for an indicator.
type OTXResult struct {
	Pulses int `json:"pulses"`
}

// Reputation groups the external intel verdicts on an event.
type Reputation struct {
	VT  *VTResult  `json:"vt,omitempty"`
	OTX *OTXResult `json:"otx,omitempty"`
}

// GeoIP holds the city-level lookup for a remote address.
type GeoIP struct {
	Country string  `json:"country,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Org     string  `json:"org,omitempty"`
}

// Enrichment is the intel block attached to a raw event.
// ThreatScore is additive with a saturating clamp to [0,100].
type Enrichment struct {
	IOCMatches  []string   `json:"ioc_matches"`
	Reputation  Reputation `json:"reputation"`
	YaraHits    []string   `json:"yara_hits"`
	GeoIP       GeoIP      `json:"geoip"`
	ThreatScore float64    `json:"threat_score"`
}

// NewEnrichment returns an empty enrichment with non-nil slices so the
// published JSON always carries the arrays.
func NewEnrichment() *Enrichment {
	return &Enrichment{
		IOCMatches: []string{},
		YaraHits:   []string{},
	}
}

// AddScore adds delta to the threat score, clamped to [0,100].
func (e *Enrichment) AddScore(delta float64) {
	e.ThreatScore += delta
	if e.ThreatScore > 100 {
		e.ThreatScore = 100
	}
	if e.ThreatScore < 0 {
		e.ThreatScore = 0
	}
}

// Tag records an IOC match once.
func (e *Enrichment) Tag(ioc string) {
	for _, m := range e.IOCMatches {
		if m == ioc {
			return
		}
	}
	e.IOCMatches = append(e.IOCMatches, ioc)
}

// EnrichedEvent is a RawEvent plus its enrichment. Immutable after publish.
type EnrichedEvent struct {
	EventID    string                 `json:"event_id" validate:"required,uuid4"`
	AgentID    string                 `json:"agent_id" validate:"required"`
	EventType  string                 `json:"event_type" validate:"required,oneof=process file network system"`
	Payload    map[string]interface{} `json:"payload" validate:"required"`
	Enrichment Enrichment             `json:"enrichment"`
	Timestamp  string                 `json:"timestamp" validate:"required"`
}

// AlertReasons carries the per-detector reason tags.
type AlertReasons struct {
	Rule       []string `json:"rule"`
	Anomaly    []string `json:"anomaly"`
	Behavioral []string `json:"behavioral"`
}

// AlertDetails is stored as the alert's JSON details column. The wire form
// is a loose object; keys beyond the analytics triple land in Extra so
// manually injected alerts keep fields like pid or path.
type AlertDetails struct {
	Features map[string]interface{} `json:"features"`
	Reasons  AlertReasons           `json:"reasons"`
	Model    string                 `json:"model"`
	Extra    map[string]interface{} `json:"-"`
}

func (d AlertDetails) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["features"] = d.Features
	out["reasons"] = d.Reasons
	out["model"] = d.Model
	return json.Marshal(out)
}

func (d *AlertDetails) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		switch key {
		case "features":
			if err := json.Unmarshal(value, &d.Features); err != nil {
				return err
			}
		case "reasons":
			if err := json.Unmarshal(value, &d.Reasons); err != nil {
				return err
			}
		case "model":
			if err := json.Unmarshal(value, &d.Model); err != nil {
				return err
			}
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]interface{})
			}
			var v interface{}
			if err := json.Unmarshal(value, &v); err != nil {
				return err
			}
			d.Extra[key] = v
		}
	}
	return nil
}

// Detail looks a key up in the loose detail fields, then the features.
func (d *AlertDetails) Detail(key string) (interface{}, bool) {
	if v, ok := d.Extra[key]; ok {
		return v, true
	}
	if v, ok := d.Features[key]; ok {
		return v, true
	}
	return nil, false
}

// Alert is emitted when the ensemble score crosses the threshold.
// Immutable after insert.
type Alert struct {
	ID        string       `json:"id" db:"id"`
	EventID   string       `json:"event_id" db:"event_id"`
	AgentID   string       `json:"agent_id" db:"agent_id"`
	EventType string       `json:"event_type" db:"event_type"`
	Score     float64      `json:"score" db:"score"`
	Severity  Severity     `json:"severity" db:"severity"`
	Source    string       `json:"source" db:"source"`
	Details   AlertDetails `json:"details" db:"details"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// Decision is the recommended remediation attached 1:1 to an alert.
type Decision struct {
	ID                string                 `json:"id" db:"id"`
	AlertID           string                 `json:"alert_id" db:"alert_id"`
	AgentID           string                 `json:"agent_id" db:"agent_id"`
	EventType         string                 `json:"event_type" db:"event_type"`
	Severity          Severity               `json:"severity" db:"severity"`
	Score             float64                `json:"score" db:"score"`
	RecommendedAction string                 `json:"recommended_action" db:"recommended_action"`
	Priority          float64                `json:"priority" db:"priority"`
	Rationale         map[string]interface{} `json:"rationale" db:"rationale"`
	Status            DecisionStatus         `json:"status" db:"status"`
	CreatedAt         time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" db:"updated_at"`
}
