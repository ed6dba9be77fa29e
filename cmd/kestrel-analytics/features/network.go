package features

import (
	"context"
	"strings"

	"kestrel-go/pkg/models"
)

// NetworkExtractor builds network features. Stateless.
type NetworkExtractor struct{}

func (x *NetworkExtractor) Extract(ctx context.Context, evt *models.EnrichedEvent) (map[string]interface{}, error) {
	p := evt.Payload
	e := &evt.Enrichment

	remoteIP := getString(p, "remote_ip")

	return map[string]interface{}{
		"remote_ip":      remoteIP,
		"local_ip":       getString(p, "local_ip"),
		"remote_port":    getFloat(p, "remote_port"),
		"bytes_sent":     getFloat(p, "bytes_sent"),
		"bytes_received": getFloat(p, "bytes_received"),
		"protocol":       getString(p, "protocol"),
		"is_loopback":    remoteIP == "127.0.0.1" || remoteIP == "::1" || remoteIP == "0.0.0.0",
		"is_private_ip":  strings.HasPrefix(remoteIP, "192.168.") || strings.HasPrefix(remoteIP, "10."),
		"otx_pulses":     otxPulses(e),
		"geoip_country":  e.GeoIP.Country,
		"threat_score":   e.ThreatScore,
	}, nil
}
