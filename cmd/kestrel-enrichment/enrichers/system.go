package enrichers

import (
	"context"
	"math"

	"kestrel-go/pkg/models"
)

// SystemEnricher scores resource pressure. No external lookups; the tags
// land in ioc_matches like every other enricher's.
type SystemEnricher struct{}

func (e *SystemEnricher) Enrich(ctx context.Context, evt *models.RawEvent) *models.Enrichment {
	enr := models.NewEnrichment()
	p := evt.Payload

	cpu := getFloat(p, "cpu_usage")
	if cpu > 80 {
		enr.AddScore(math.Min((cpu-80)*2, 30))
		enr.Tag("high_cpu")
	}

	mem := memUsedPct(p)
	if mem > 90 {
		enr.AddScore(math.Min((mem-90)*3, 30))
		enr.Tag("high_memory")
	}

	return enr
}

// memUsedPct prefers a precomputed percentage and falls back to deriving it
// from total/available bytes.
func memUsedPct(p map[string]interface{}) float64 {
	if hasKey(p, "memory_used_pct") {
		return getFloat(p, "memory_used_pct")
	}
	total := getFloat(p, "total_memory")
	if total <= 0 {
		return 0
	}
	used := total - getFloat(p, "available_memory")
	return used / total * 100
}
