package enrichers

import (
	"context"
	"fmt"

	"kestrel-go/cmd/kestrel-enrichment/geoip"
	"kestrel-go/cmd/kestrel-enrichment/intel"
	"kestrel-go/cmd/kestrel-enrichment/yara"
	"kestrel-go/pkg/models"
)

// Enricher computes the enrichment block for one event type.
type Enricher interface {
	Enrich(ctx context.Context, evt *models.RawEvent) *models.Enrichment
}

// Registry dispatches raw events to the type-matched enricher.
type Registry struct {
	byType map[string]Enricher
}

// NewRegistry wires the four enrichers to their providers.
func NewRegistry(provider intel.Provider, geo *geoip.Provider, scanner *yara.Scanner) *Registry {
	return &Registry{byType: map[string]Enricher{
		string(models.EventTypeProcess): &ProcessEnricher{intel: provider, yara: scanner},
		string(models.EventTypeFile):    &FileEnricher{intel: provider, yara: scanner},
		string(models.EventTypeNetwork): &NetworkEnricher{intel: provider, geo: geo},
		string(models.EventTypeSystem):  &SystemEnricher{},
	}}
}

// Enrich runs the enricher for the event's type.
func (r *Registry) Enrich(ctx context.Context, evt *models.RawEvent) (*models.Enrichment, error) {
	enricher, ok := r.byType[evt.EventType]
	if !ok {
		return nil, fmt.Errorf("no enricher for event type %q", evt.EventType)
	}
	return enricher.Enrich(ctx, evt), nil
}
