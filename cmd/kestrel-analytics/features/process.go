package features

import (
	"context"
	"fmt"
	"strings"

	"kestrel-go/pkg/models"
)

// ProcessExtractor builds process features, including the stateful
// per-process-name start frequency counter.
type ProcessExtractor struct {
	counters Counters
}

func (x *ProcessExtractor) Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error) {
	p := evt.Payload
	e := &evt.Enrichment

	name := getString(p, "process_name")
	if name == "" {
		name = "unknown"
	}
	freq, err := x.counters.IncrCounter(ctx, evt.AgentID, fmt.Sprintf("proc:%s", name))
	if err != nil {
		return nil, fmt.Errorf("proc counter incr failed: %w", err)
	}

	positives := vtPositives(e)

	_, hasPPID := p["parent_process_id"]

	return map[string]interface{}{
		"process_name":         name,
		"command_line_len":     len(getString(p, "command_line")),
		"is_system_parent":     hasPPID && getFloat(p, "parent_process_id") == 0,
		"vt_positives":         positives,
		"hash_known_malicious": positives > 10,
		"yara_hits_count":      len(e.YaraHits),
		"threat_score":         e.ThreatScore,
		"proc_freq_per_hour":   freq,
		"is_suspicious_path":   strings.Contains(strings.ToLower(getString(p, "executable_path")), "temp"),
	}, nil
}
