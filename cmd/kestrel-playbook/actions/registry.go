package actions

import (
	"context"
	"fmt"
)

// Func is a playbook action: params in, structured output (or a
// human-readable error) out. Implementations are idempotent where the
// underlying operation allows.
type Func func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)

// Registry maps action names to their implementations and optional
// rollbacks.
type Registry struct {
	actions    map[string]Func
	rollbacks  map[string]Func
	privileged map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]Func),
		rollbacks:  make(map[string]Func),
		privileged: make(map[string]bool),
	}
}

// Register adds an action. rollback may be nil. privileged actions are
// skipped by the executor when the runtime lacks permission.
func (r *Registry) Register(name string, action Func, rollback Func, privileged bool) {
	r.actions[name] = action
	if rollback != nil {
		r.rollbacks[name] = rollback
	}
	r.privileged[name] = privileged
}

// Get returns the action implementation.
func (r *Registry) Get(name string) (Func, error) {
	fn, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("action not registered: %s", name)
	}
	return fn, nil
}

// Rollback returns the action's rollback, or nil when it has none.
func (r *Registry) Rollback(name string) Func {
	return r.rollbacks[name]
}

// Privileged reports whether the action needs elevated host permissions.
func (r *Registry) Privileged(name string) bool {
	return r.privileged[name]
}
