package enrichers

import (
	"context"
	"math"

	"kestrel-go/cmd/kestrel-enrichment/intel"
	"kestrel-go/cmd/kestrel-enrichment/yara"
	"kestrel-go/pkg/models"
)

// FileEnricher scores file telemetry: YARA over the name and path, VT on
// the content hash, OTX pulses on the same hash.
type FileEnricher struct {
	intel intel.Provider
	yara  *yara.Scanner
}

func (e *FileEnricher) Enrich(ctx context.Context, evt *models.RawEvent) *models.Enrichment {
	enr := models.NewEnrichment()
	p := evt.Payload

	if e.yara != nil {
		target := getString(p, "file_name") + " " + getString(p, "file_path")
		if hits := e.yara.Match(target); len(hits) > 0 {
			enr.YaraHits = hits
			enr.AddScore(30)
		}
	}

	hash := getString(p, "file_hash")
	if len(hash) > 10 && e.intel != nil {
		vt := e.intel.VTFile(ctx, hash)
		enr.Reputation.VT = vt
		if vt.Positives > 0 {
			enr.AddScore(math.Min(float64(vt.Positives)*5, 50))
			enr.Tag("vt_malicious")
		}

		otx := e.intel.OTXFile(ctx, hash)
		enr.Reputation.OTX = otx
		if otx.Pulses > 0 {
			enr.AddScore(math.Min(float64(otx.Pulses)*3, 30))
			enr.Tag("otx_pulses")
		}
	}

	return enr
}
