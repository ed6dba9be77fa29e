package messaging

import "fmt"

// Subject constants for NATS JetStream.
// Using constants avoids memory allocation for subject strings during runtime.
const (
	// SubjectEventsRaw matches raw events coming from endpoint agents.
	// Subject: events.raw.<agent_id>.<event_type>
	SubjectEventsRaw = "events.raw.>"

	// SubjectEventsEnriched matches events enriched with intel/GeoIP/YARA.
	// Subject: events.enriched.<agent_id>.<event_type>
	SubjectEventsEnriched = "events.enriched.>"

	// SubjectAlerts matches alerts emitted by the analytics ensemble.
	// Subject: alerts.<severity>
	SubjectAlerts = "alerts.>"
)

// Stream names
const (
	StreamEvents = "EDR_EVENTS"
	StreamAlerts = "EDR_ALERTS"
)

// Consumer names (Durable)
const (
	ConsumerEnrichment = "EDR_ENRICHMENT"
	ConsumerAnalytics  = "EDR_ANALYTICS"
	ConsumerPlaybook   = "EDR_PLAYBOOK"
)

// RawEventSubject builds the publish subject for a raw event.
func RawEventSubject(agentID, eventType string) string {
	return fmt.Sprintf("events.raw.%s.%s", agentID, eventType)
}

// EnrichedEventSubject builds the publish subject for an enriched event.
func EnrichedEventSubject(agentID, eventType string) string {
	return fmt.Sprintf("events.enriched.%s.%s", agentID, eventType)
}

// AlertSubject builds the publish subject for an alert.
func AlertSubject(severity string) string {
	return fmt.Sprintf("alerts.%s", severity)
}
