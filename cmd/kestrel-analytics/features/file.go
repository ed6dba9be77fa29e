package features

import (
	"context"
	"fmt"
	"strings"

	"kestrel-go/pkg/models"
)

// FileExtractor builds file features, including the stateful temp-file
// creation counter.
type FileExtractor struct {
	counters Counters
}

var scriptExtensions = map[string]bool{
	".ps1": true, ".vbs": true, ".js": true, ".bat": true, ".cmd": true,
}

func (x *FileExtractor) Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error) {
	p := evt.Payload
	e := &evt.Enrichment

	filePath := strings.ToLower(getString(p, "file_path"))
	fileName := strings.ToLower(getString(p, "file_name"))
	fileExt := getString(p, "file_type")

	tempCount, err := x.counters.IncrCounter(ctx, evt.AgentID, "file:temp_create")
	if err != nil {
		return nil, fmt.Errorf("temp counter incr failed: %w", err)
	}

	isTempDir := false
	for _, marker := range []string{"temp", "tmp", "appdata/local/temp"} {
		if strings.Contains(filePath, marker) {
			isTempDir = true
			break
		}
	}

	return map[string]interface{}{
		"file_name":      fileName,
		"file_ext":       fileExt,
		"file_size":      getFloat(p, "file_size"),
		"is_temp_dir":    isTempDir,
		"is_script":      scriptExtensions[fileExt],
		"yara_hits":      len(e.YaraHits),
		"otx_pulses":     otxPulses(e),
		"vt_positives":   vtPositives(e),
		"threat_score":   e.ThreatScore,
		"temp_file_freq": tempCount,
	}, nil
}
