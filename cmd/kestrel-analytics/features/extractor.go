package features

import (
	"context"
	"fmt"

	"kestrel-go/pkg/models"
)

// Counters is the stateful-feature surface: atomic per-agent counters in
// the shared KV store.
type Counters interface {
	IncrCounter(ctx context.Context, agentID, key string) (int64, error)
}

// Extractor turns an enriched event into the named feature map consumed by
// the detector ensemble.
type Extractor interface {
	Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error)
}

// Registry returns the type-matched extractor.
type Registry struct {
	byType map[string]Extractor
}

func NewRegistry(counters Counters) *Registry {
	return &Registry{byType: map[string]Extractor{
		string(models.EventTypeProcess): &ProcessExtractor{counters: counters},
		string(models.EventTypeFile):    &FileExtractor{counters: counters},
		string(models.EventTypeNetwork): &NetworkExtractor{},
		string(models.EventTypeSystem):  &SystemExtractor{},
	}}
}

// Extract dispatches on event type.
func (r *Registry) Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error) {
	extractor, ok := r.byType[evt.EventType]
	if !ok {
		return nil, fmt.Errorf("no extractor for event type %q", evt.EventType)
	}
	return extractor.Extract(ctx, evt)
}

// --- shared payload/enrichment accessors ---

func getString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(p map[string]interface{}, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func vtPositives(e *models.Enrichment) int {
	if e.Reputation.VT != nil {
		return e.Reputation.VT.Positives
	}
	return 0
}

func otxPulses(e *models.Enrichment) int {
	if e.Reputation.OTX != nil {
		return e.Reputation.OTX.Pulses
	}
	return 0
}
