package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kestrel-go/cmd/kestrel-playbook/actions"
	"kestrel-go/cmd/kestrel-playbook/playbook"
	"kestrel-go/pkg/audit"
	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/store"
)

// Caller-visible refusals. The alert was handled, just rate-limited or
// conflicting; consumers ack on these.
var (
	ErrUnderCooldown       = errors.New("Under cooldown")
	ErrExecutionInProgress = errors.New("Another execution in progress")
	ErrPreconditionsNotMet = errors.New("Preconditions not met")
)

// ExecutorConfig carries the gating knobs.
type ExecutorConfig struct {
	CooldownEnabled  bool
	CooldownTTL      time.Duration
	LockTTL          time.Duration
	AllowIsolateHost bool
	// IsPrivileged reports whether the runtime can perform privileged host
	// actions.
	IsPrivileged func() bool
}

// Executor runs playbooks: cooldown gate, per-subject lock, preconditions,
// ordered steps, rollback on failure, durable result.
type Executor struct {
	redis    *database.RedisClient // nil degrades gracefully
	registry *actions.Registry
	execLog  *store.ExecutionLog
	auditor  *audit.Writer
	cfg      ExecutorConfig
	log      *zap.SugaredLogger
}

func NewExecutor(redis *database.RedisClient, registry *actions.Registry, execLog *store.ExecutionLog, auditor *audit.Writer, cfg ExecutorConfig, log *zap.SugaredLogger) *Executor {
	return &Executor{
		redis:    redis,
		registry: registry,
		execLog:  execLog,
		auditor:  auditor,
		cfg:      cfg,
		log:      log,
	}
}

func (e *Executor) audit(event string, payload map[string]interface{}) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.Record(event, payload); err != nil {
		e.log.Warnw("audit write failed", "event", event, "error", err)
	}
}

// tryClaim wraps SET NX EX with graceful degrade: an unreachable KV store
// logs and allows the claim.
func (e *Executor) tryClaim(ctx context.Context, key string, ttl time.Duration) bool {
	if e.redis == nil {
		return true
	}
	ok, err := e.redis.TryClaim(ctx, key, ttl)
	if err != nil {
		e.log.Warnw("kv store unavailable, proceeding without claim", "key", key, "error", err)
		return true
	}
	return ok
}

func (e *Executor) release(key string) {
	if e.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.redis.Release(ctx, key); err != nil {
		e.log.Warnw("claim release failed", "key", key, "error", err)
	}
}

// Execute runs pb against alert and persists the result.
func (e *Executor) Execute(ctx context.Context, pb *playbook.Playbook, alert *models.Alert) (*models.ExecutionResult, error) {
	// 1. Cooldown gate.
	if e.cfg.CooldownEnabled && e.cfg.CooldownTTL > 0 {
		key := database.CooldownKey(alert.EventType, string(alert.Severity))
		if !e.tryClaim(ctx, key, e.cfg.CooldownTTL) {
			return nil, ErrUnderCooldown
		}
	}

	// 2. Per-subject execution lock, released on every exit path.
	lockKey := database.ExecLockKey(alert.AgentID, alert.EventID)
	if !e.tryClaim(ctx, lockKey, e.cfg.LockTTL) {
		return nil, ErrExecutionInProgress
	}
	defer e.release(lockKey)

	// 3. Preconditions against {alert: ...}.
	alertMap, err := alertAsMap(alert)
	if err != nil {
		return nil, fmt.Errorf("alert encode failed: %w", err)
	}
	if !evaluatePreconditions(pb.Preconditions, map[string]interface{}{"alert": alertMap}) {
		return nil, ErrPreconditionsNotMet
	}

	execID := uuid.NewString()
	e.audit("execution_started", map[string]interface{}{"id": execID, "playbook_id": pb.ID})

	// 4. Sequential step loop.
	success, steps := e.runSteps(ctx, pb.Steps)

	// 5. Rollback only when the forward pass did not complete.
	rolledBack := false
	if !success {
		rollbackList := pb.Rollback
		if len(rollbackList) == 0 {
			rollbackList = reversed(pb.Steps)
		}
		steps = append(steps, e.runRollback(ctx, rollbackList)...)
		rolledBack = true
	}

	result := &models.ExecutionResult{
		ID:         execID,
		PlaybookID: pb.ID,
		Success:    success,
		Steps:      steps,
		RolledBack: rolledBack,
	}

	// 6. Persist and close out.
	if err := e.execLog.Save(result); err != nil {
		e.log.Errorw("execution persist failed", "id", execID, "error", err)
	}
	e.audit("execution_completed", map[string]interface{}{
		"id": execID, "playbook_id": pb.ID, "success": success,
	})

	return result, nil
}

func (e *Executor) runSteps(ctx context.Context, steps []playbook.Step) (bool, []models.StepResult) {
	var results []models.StepResult

	for _, step := range steps {
		if e.registry.Privileged(step.Action) && !e.privilegeAllowed(step.Action) {
			results = append(results, models.StepResult{
				Step: step.Name, Action: step.Action,
				Status: models.StepSkipped, Reason: "not_allowed_or_not_admin",
			})
			e.audit("step_skipped", map[string]interface{}{
				"step": step.Name, "action": step.Action, "reason": "not_allowed_or_not_admin",
			})
			continue
		}

		fn, err := e.registry.Get(step.Action)
		if err == nil {
			var output map[string]interface{}
			output, err = fn(ctx, step.Params)
			if err == nil {
				results = append(results, models.StepResult{
					Step: step.Name, Action: step.Action,
					Status: models.StepOK, Output: output,
				})
				e.audit("step_executed", map[string]interface{}{
					"step": step.Name, "action": step.Action, "output": output,
				})
				continue
			}
		}

		results = append(results, models.StepResult{
			Step: step.Name, Action: step.Action,
			Status: models.StepError, Error: err.Error(),
		})
		e.audit("step_error", map[string]interface{}{
			"step": step.Name, "action": step.Action, "error": err.Error(),
		})

		if step.OnError == playbook.OnErrorContinue {
			continue
		}
		return false, results
	}

	return true, results
}

func (e *Executor) runRollback(ctx context.Context, steps []playbook.Step) []models.StepResult {
	var results []models.StepResult

	for _, step := range steps {
		rb := e.registry.Rollback(step.Action)
		if rb == nil {
			results = append(results, models.StepResult{
				Step: step.Name, Action: step.Action,
				Status: models.StepSkipped, Reason: "no_rollback", Rollback: true,
			})
			continue
		}

		output, err := rb(ctx, step.Params)
		if err != nil {
			// Recorded, never cascades.
			results = append(results, models.StepResult{
				Step: step.Name, Action: step.Action,
				Status: models.StepError, Error: err.Error(), Rollback: true,
			})
			e.audit("rollback_error", map[string]interface{}{
				"step": step.Name, "action": step.Action, "error": err.Error(),
			})
			continue
		}

		results = append(results, models.StepResult{
			Step: step.Name, Action: step.Action,
			Status: models.StepOK, Output: output, Rollback: true,
		})
		e.audit("rollback_step", map[string]interface{}{
			"step": step.Name, "action": step.Action, "output": output,
		})
	}

	return results
}

func (e *Executor) privilegeAllowed(action string) bool {
	if action == "isolate_host" && !e.cfg.AllowIsolateHost {
		return false
	}
	if e.cfg.IsPrivileged != nil && !e.cfg.IsPrivileged() {
		return false
	}
	return true
}

func alertAsMap(alert *models.Alert) (map[string]interface{}, error) {
	raw, err := json.Marshal(alert)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func reversed(steps []playbook.Step) []playbook.Step {
	out := make([]playbook.Step, len(steps))
	for i, step := range steps {
		out[len(steps)-1-i] = step
	}
	return out
}
