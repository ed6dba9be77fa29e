package enrichers

import (
	"context"
	"math"

	"kestrel-go/cmd/kestrel-enrichment/geoip"
	"kestrel-go/cmd/kestrel-enrichment/intel"
	"kestrel-go/pkg/models"
)

// NetworkEnricher scores network telemetry: GeoIP and OTX on non-local
// remote addresses.
type NetworkEnricher struct {
	intel intel.Provider
	geo   *geoip.Provider
}

func isLocalAddr(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "0.0.0.0", "":
		return true
	}
	return false
}

func (e *NetworkEnricher) Enrich(ctx context.Context, evt *models.RawEvent) *models.Enrichment {
	enr := models.NewEnrichment()
	p := evt.Payload

	remoteIP := getString(p, "remote_ip")
	if isLocalAddr(remoteIP) {
		return enr
	}

	if e.geo != nil {
		if loc := e.geo.Lookup(ctx, remoteIP); loc != nil {
			enr.GeoIP = *loc
		}
	}

	if e.intel != nil {
		otx := e.intel.OTXIP(ctx, remoteIP)
		enr.Reputation.OTX = otx
		if otx.Pulses > 0 {
			enr.AddScore(math.Min(float64(otx.Pulses)*5, 40))
			enr.Tag("otx_ip_malicious")
		}
	}

	return enr
}
