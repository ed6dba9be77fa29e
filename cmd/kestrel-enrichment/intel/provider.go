package intel

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
)

// Provider is the threat-intel lookup surface used by the enrichers.
// Implementations must consult the shared cache before any network call and
// degrade to zero-value results on final failure (the pipeline never drops
// an event over intel availability).
type Provider interface {
	VTFile(ctx context.Context, hash string) *models.VTResult
	OTXFile(ctx context.Context, hash string) *models.OTXResult
	OTXIP(ctx context.Context, ip string) *models.OTXResult
}

// CachingProvider wraps the VT and OTX clients with the shared Redis cache
// (24h TTL per indicator).
type CachingProvider struct {
	redis *database.RedisClient
	vt    *VTClient
	otx   *OTXClient
	log   *zap.SugaredLogger
}

func NewCachingProvider(redis *database.RedisClient, vt *VTClient, otx *OTXClient, log *zap.SugaredLogger) *CachingProvider {
	return &CachingProvider{redis: redis, vt: vt, otx: otx, log: log}
}

// VTFile resolves a VirusTotal verdict, cache-first.
func (p *CachingProvider) VTFile(ctx context.Context, hash string) *models.VTResult {
	key := database.VTKey(hash)

	var cached models.VTResult
	if p.cacheGet(ctx, "vt", key, &cached) {
		return &cached
	}

	result, err := p.vt.FileReport(ctx, hash)
	if err != nil {
		// Treat as unknown and continue.
		p.log.Warnw("vt lookup failed", "hash", hash, "error", err)
		return &models.VTResult{}
	}
	p.cacheSet(ctx, key, result)
	return result
}

// OTXFile resolves an OTX file-hash pulse count, cache-first.
func (p *CachingProvider) OTXFile(ctx context.Context, hash string) *models.OTXResult {
	key := database.OTXFileKey(hash)

	var cached models.OTXResult
	if p.cacheGet(ctx, "otx", key, &cached) {
		return &cached
	}

	result, err := p.otx.FileIndicator(ctx, hash)
	if err != nil {
		p.log.Warnw("otx file lookup failed", "hash", hash, "error", err)
		return &models.OTXResult{}
	}
	p.cacheSet(ctx, key, result)
	return result
}

// OTXIP resolves an OTX IPv4 pulse count, cache-first.
func (p *CachingProvider) OTXIP(ctx context.Context, ip string) *models.OTXResult {
	key := database.OTXIPKey(ip)

	var cached models.OTXResult
	if p.cacheGet(ctx, "otx", key, &cached) {
		return &cached
	}

	result, err := p.otx.IPv4Indicator(ctx, ip)
	if err != nil {
		p.log.Warnw("otx ip lookup failed", "ip", ip, "error", err)
		return &models.OTXResult{}
	}
	p.cacheSet(ctx, key, result)
	return result
}

func (p *CachingProvider) cacheGet(ctx context.Context, provider, key string, out interface{}) bool {
	if p.redis == nil {
		return false
	}
	raw, err := p.redis.GetCachedLookup(ctx, key)
	if err != nil || raw == "" {
		metrics.LookupCache.WithLabelValues(provider, "miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		metrics.LookupCache.WithLabelValues(provider, "miss").Inc()
		return false
	}
	metrics.LookupCache.WithLabelValues(provider, "hit").Inc()
	return true
}

func (p *CachingProvider) cacheSet(ctx context.Context, key string, value interface{}) {
	if p.redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := p.redis.CacheLookup(ctx, key, string(raw)); err != nil {
		p.log.Warnw("lookup cache write failed", "key", key, "error", err)
	}
}
