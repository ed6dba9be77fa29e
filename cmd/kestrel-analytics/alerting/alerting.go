package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"kestrel-go/pkg/messaging"
	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/store"
)

// Publisher is the confirmed-delivery publish surface of the bus client.
type Publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

var _ Publisher = (*messaging.Client)(nil)

// Alerter persists and publishes alerts. The durable write gates the
// publish: a failed write means no message; a failed publish leaves the row
// for the decision engine's polling to pick up.
type Alerter struct {
	store *store.AlertStore
	bus   Publisher
	log   *zap.SugaredLogger
}

func NewAlerter(alertStore *store.AlertStore, bus Publisher, log *zap.SugaredLogger) *Alerter {
	return &Alerter{store: alertStore, bus: bus, log: log}
}

// Raise builds, stores, and publishes an alert for a scored event.
func (a *Alerter) Raise(ctx context.Context, evt *models.EnrichedEvent, score float64, severity models.Severity, features map[string]interface{}, reasons models.AlertReasons) (*models.Alert, error) {
	alert := &models.Alert{
		ID:        uuid.NewString(),
		EventID:   evt.EventID,
		AgentID:   evt.AgentID,
		EventType: evt.EventType,
		Score:     score,
		Severity:  severity,
		Source:    "analytics",
		Details: models.AlertDetails{
			Features: features,
			Reasons:  reasons,
			Model:    "ensemble",
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := a.store.Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("alert store failed: %w", err)
	}

	body, err := json.Marshal(alert)
	if err != nil {
		a.log.Errorw("alert marshal failed", "alert_id", alert.ID, "error", err)
		return alert, nil
	}

	subject := messaging.AlertSubject(string(severity))
	if _, err := a.bus.PublishSync(ctx, subject, body); err != nil {
		// Row stays in place; the decision engine polls the store.
		a.log.Errorw("alert publish failed", "alert_id", alert.ID, "subject", subject, "error", err)
	} else {
		a.log.Infow("alert published", "alert_id", alert.ID, "subject", subject, "score", score)
	}

	metrics.AlertsEmitted.WithLabelValues(string(severity)).Inc()
	return alert, nil
}
