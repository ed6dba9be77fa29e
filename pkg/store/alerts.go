package store

import (
	"context"
	"encoding/json"
	"fmt"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

// AlertStore persists alerts to the relational store. Alerts are immutable
// after insert.
type AlertStore struct {
	pg *database.PostgresClient
}

func NewAlertStore(pg *database.PostgresClient) *AlertStore {
	return &AlertStore{pg: pg}
}

// Insert writes an alert in a single transaction. The caller publishes to
// the bus only after this returns nil.
func (s *AlertStore) Insert(ctx context.Context, alert *models.Alert) error {
	details, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("alert details marshal failed: %w", err)
	}

	tx, err := s.pg.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("alert insert begin failed: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alerts (id, event_id, agent_id, event_type, score, severity, source, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		alert.ID, alert.EventID, alert.AgentID, alert.EventType,
		alert.Score, string(alert.Severity), alert.Source, string(details),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("alert insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("alert insert commit failed: %w", err)
	}
	return nil
}

// RecentWithoutDecision returns alerts created in the last 24h that have no
// decision yet, newest first, capped at limit.
func (s *AlertStore) RecentWithoutDecision(ctx context.Context, limit int) ([]*models.Alert, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT a.id::text, a.event_id::text, a.agent_id, a.event_type, a.score::float,
		       a.severity, a.source, a.details::text, a.created_at
		FROM alerts a
		LEFT JOIN decisions d ON d.alert_id = a.id::text
		WHERE d.alert_id IS NULL
		  AND a.created_at >= NOW() - INTERVAL '24 hours'
		ORDER BY a.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("alert scan query failed: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var severity, detailsText string
		if err := rows.Scan(&a.ID, &a.EventID, &a.AgentID, &a.EventType,
			&a.Score, &severity, &a.Source, &detailsText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("alert row scan failed: %w", err)
		}
		a.Severity = models.Severity(severity)
		if err := json.Unmarshal([]byte(detailsText), &a.Details); err != nil {
			// Malformed details should not hide the alert from the
			// decision engine.
			a.Details = models.AlertDetails{}
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}
