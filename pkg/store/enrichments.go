package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

// EnrichmentStore persists one record per enrichment pass.
type EnrichmentStore struct {
	pg *database.PostgresClient
}

func NewEnrichmentStore(pg *database.PostgresClient) *EnrichmentStore {
	return &EnrichmentStore{pg: pg}
}

// Insert writes the enrichment record for an event.
func (s *EnrichmentStore) Insert(ctx context.Context, evt *models.EnrichedEvent) error {
	iocs, _ := json.Marshal(evt.Enrichment.IOCMatches)
	reputation, _ := json.Marshal(evt.Enrichment.Reputation)
	yaraHits, _ := json.Marshal(evt.Enrichment.YaraHits)
	geo, _ := json.Marshal(evt.Enrichment.GeoIP)

	_, err := s.pg.Exec(ctx, `
		INSERT INTO enrichments (id, event_type, event_id, agent_id, ioc_matches, reputation, yara_hits, geoip, threat_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		uuid.NewString(), evt.EventType, evt.EventID, evt.AgentID,
		string(iocs), string(reputation), string(yaraHits), string(geo),
		evt.Enrichment.ThreatScore,
	)
	if err != nil {
		return fmt.Errorf("enrichment insert failed: %w", err)
	}
	return nil
}
