package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"kestrel-go/pkg/models"
)

// ExecutionLog stores execution results as one JSON file per execution id,
// or in memory when persistence is disabled.
type ExecutionLog struct {
	dir     string
	persist bool

	mu    sync.RWMutex
	inmem map[string]*models.ExecutionResult
}

func NewExecutionLog(dir string, persist bool) (*ExecutionLog, error) {
	if persist {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("executions dir: %w", err)
		}
	}
	return &ExecutionLog{
		dir:     dir,
		persist: persist,
		inmem:   make(map[string]*models.ExecutionResult),
	}, nil
}

// Save persists a result keyed by its id.
func (l *ExecutionLog) Save(result *models.ExecutionResult) error {
	if !l.persist {
		l.mu.Lock()
		l.inmem[result.ID] = result
		l.mu.Unlock()
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("execution marshal failed: %w", err)
	}
	path := filepath.Join(l.dir, result.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("execution write failed: %w", err)
	}
	return nil
}

// Get returns a stored result, or nil when unknown.
func (l *ExecutionLog) Get(id string) (*models.ExecutionResult, error) {
	if !l.persist {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.inmem[id], nil
	}

	data, err := os.ReadFile(filepath.Join(l.dir, id+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result models.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("execution decode failed: %w", err)
	}
	return &result, nil
}

// List returns all stored execution ids, sorted.
func (l *ExecutionLog) List() ([]string, error) {
	if !l.persist {
		l.mu.RLock()
		defer l.mu.RUnlock()
		ids := make([]string, 0, len(l.inmem))
		for id := range l.inmem {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
