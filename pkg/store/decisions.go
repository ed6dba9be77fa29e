package store

import (
	"context"
	"encoding/json"
	"fmt"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

// DecisionStore persists decisions. Insertion is idempotent by alert_id.
type DecisionStore struct {
	pg *database.PostgresClient
}

func NewDecisionStore(pg *database.PostgresClient) *DecisionStore {
	return &DecisionStore{pg: pg}
}

// Insert writes a decision; a decision already present for the alert is a
// no-op. Returns true when a row was created.
func (s *DecisionStore) Insert(ctx context.Context, d *models.Decision) (bool, error) {
	rationale, err := json.Marshal(d.Rationale)
	if err != nil {
		return false, fmt.Errorf("decision rationale marshal failed: %w", err)
	}

	res, err := s.pg.Exec(ctx, `
		INSERT INTO decisions (id, alert_id, agent_id, event_type, severity, score,
		                       recommended_action, priority, rationale, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (alert_id) DO NOTHING`,
		d.ID, d.AlertID, d.AgentID, d.EventType, string(d.Severity), d.Score,
		d.RecommendedAction, d.Priority, string(rationale), string(d.Status),
	)
	if err != nil {
		return false, fmt.Errorf("decision insert failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}
