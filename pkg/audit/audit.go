package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer appends one JSON line per event to an audit file. Writes are
// serialized; throughput here is low (one line per executor transition).
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates the audit file's directory if needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Writer{path: path}, nil
}

// Record appends an audit line with a UTC timestamp. Audit failures are
// returned but callers treat them as non-fatal.
func (w *Writer) Record(event string, payload map[string]interface{}) error {
	rec := make(map[string]interface{}, len(payload)+2)
	rec["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	rec["event"] = event
	for k, v := range payload {
		rec[k] = v
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}
