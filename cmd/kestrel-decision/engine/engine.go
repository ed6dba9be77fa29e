package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/store"
)

// Recommended actions.
const (
	ActionIsolateHost      = "isolate_host"
	ActionTerminateProcess = "terminate_process"
	ActionQuarantineFile   = "quarantine_file"
	ActionBlockIP          = "block_ip"
	ActionNotifySOC        = "notify_soc"
)

// Engine turns recent undecided alerts into decisions. One decision per
// alert; insertion is idempotent by alert_id.
type Engine struct {
	alerts    *store.AlertStore
	decisions *store.DecisionStore
	batchSize int
	log       *zap.SugaredLogger
}

func New(alerts *store.AlertStore, decisions *store.DecisionStore, batchSize int, log *zap.SugaredLogger) *Engine {
	return &Engine{alerts: alerts, decisions: decisions, batchSize: batchSize, log: log}
}

// Recommend computes (action, priority, rationale) for an alert by the
// ordered remediation rules.
func Recommend(alert *models.Alert) (string, float64, map[string]interface{}) {
	features := alert.Details.Features
	reasons := alert.Details.Reasons

	action := ActionNotifySOC
	priority := 1.0

	featBool := func(key string) bool {
		v, _ := features[key].(bool)
		return v
	}
	featFloat := func(key string) float64 {
		switch v := features[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		}
		return 0
	}

	switch {
	case alert.Severity == models.SeverityCritical || alert.Severity == models.SeverityHigh || alert.Score >= 80:
		action, priority = ActionIsolateHost, 5.0
	case alert.EventType == "process" && (featBool("hash_known_malicious") || featFloat("vt_positives") > 50):
		action, priority = ActionTerminateProcess, 4.0
	case alert.EventType == "process" && featBool("is_suspicious_path"):
		action, priority = ActionQuarantineFile, 3.0
	case alert.EventType == "network" && !featBool("is_private_ip") && !featBool("is_loopback"):
		action, priority = ActionBlockIP, 3.5
	case alert.EventType == "file" && featFloat("yara_hits_count") > 0:
		action, priority = ActionQuarantineFile, 3.5
	}

	// Detector-driven boosts.
	if len(reasons.Anomaly) > 0 && priority < 2.5 {
		priority = 2.5
	}
	if len(reasons.Behavioral) > 0 && priority < 2.0 {
		priority = 2.0
	}

	rationale := map[string]interface{}{
		"features": features,
		"reasons":  reasons,
	}
	return action, priority, rationale
}

// RunOnce scans alerts from the last 24h lacking a decision and creates
// one each. Returns the number of decisions created.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	alerts, err := e.alerts.RecentWithoutDecision(ctx, e.batchSize)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, alert := range alerts {
		action, priority, rationale := Recommend(alert)

		decision := &models.Decision{
			ID:                uuid.NewString(),
			AlertID:           alert.ID,
			AgentID:           alert.AgentID,
			EventType:         alert.EventType,
			Severity:          alert.Severity,
			Score:             alert.Score,
			RecommendedAction: action,
			Priority:          priority,
			Rationale:         rationale,
			Status:            models.DecisionPending,
		}

		inserted, err := e.decisions.Insert(ctx, decision)
		if err != nil {
			e.log.Errorw("decision insert failed", "alert_id", alert.ID, "error", err)
			continue
		}
		if inserted {
			created++
			metrics.DecisionsCreated.WithLabelValues(action).Inc()
		}
	}

	if created > 0 {
		e.log.Infow("decisions created", "count", created)
	}
	return created, nil
}
