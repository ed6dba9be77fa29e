package features

import (
	"context"
	"math"

	"kestrel-go/pkg/models"
)

// SystemExtractor builds resource-pressure features. Stateless.
type SystemExtractor struct{}

func (x *SystemExtractor) Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error) {
	p := evt.Payload
	e := &evt.Enrichment

	memPct := memUsedPct(p)

	return map[string]interface{}{
		"cpu_usage":       getFloat(p, "cpu_usage"),
		"memory_used_pct": memPct,
		"disk_usage":      getFloat(p, "disk_usage"),
		"uptime":          getFloat(p, "uptime"),
		"high_cpu":        getFloat(p, "cpu_usage") > 80,
		"high_memory":     memPct > 90,
		"threat_score":    e.ThreatScore,
	}, nil
}

func memUsedPct(p map[string]interface{}) float64 {
	if _, ok := p["memory_used_pct"]; ok {
		return getFloat(p, "memory_used_pct")
	}
	total := getFloat(p, "total_memory")
	if total <= 0 {
		return 0
	}
	used := total - getFloat(p, "available_memory")
	return math.Round(used/total*100*100) / 100
}
