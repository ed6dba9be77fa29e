package enrichers

import (
	"context"
	"math"

	"kestrel-go/cmd/kestrel-enrichment/intel"
	"kestrel-go/cmd/kestrel-enrichment/yara"
	"kestrel-go/pkg/models"
)

// ProcessEnricher scores process telemetry: YARA over the command line and
// executable path, VT on the image hash, and a system-parent heuristic.
type ProcessEnricher struct {
	intel intel.Provider
	yara  *yara.Scanner
}

func (e *ProcessEnricher) Enrich(ctx context.Context, evt *models.RawEvent) *models.Enrichment {
	enr := models.NewEnrichment()
	p := evt.Payload

	if e.yara != nil {
		target := getString(p, "command_line") + " " + getString(p, "executable_path")
		if hits := e.yara.Match(target); len(hits) > 0 {
			enr.YaraHits = hits
			enr.AddScore(25)
		}
	}

	if hash := getString(p, "hash"); hash != "" && e.intel != nil {
		vt := e.intel.VTFile(ctx, hash)
		enr.Reputation.VT = vt
		if vt.Positives > 0 {
			enr.AddScore(math.Min(float64(vt.Positives)*6, 60))
		}
	}

	if hasKey(p, "parent_process_id") && getFloat(p, "parent_process_id") == 0 {
		enr.AddScore(10)
		enr.Tag("system_parent")
	}

	return enr
}
