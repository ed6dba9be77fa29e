package geoip

import (
	"context"
	"encoding/json"
	"net"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

// Provider performs city-level GeoIP lookups with a Redis cache in front of
// the on-disk MaxMind database.
type Provider struct {
	db    *geoip2.Reader
	redis *database.RedisClient
	log   *zap.SugaredLogger
}

// NewProvider opens the MaxMind database. A missing DB disables geo
// enrichment without failing startup.
func NewProvider(path string, redis *database.RedisClient, log *zap.SugaredLogger) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		log.Warnw("geoip db not found, geo enrichment disabled", "path", path)
		return &Provider{db: nil, redis: redis, log: log}, nil
	}
	return &Provider{db: db, redis: redis, log: log}, nil
}

// Lookup resolves an IP to a location, or nil when unavailable.
func (p *Provider) Lookup(ctx context.Context, ipStr string) *models.GeoIP {
	if p.db == nil {
		return nil
	}

	if p.redis != nil {
		if raw, err := p.redis.GetCachedLookup(ctx, database.GeoIPKey(ipStr)); err == nil && raw != "" {
			var cached models.GeoIP
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached
			}
		}
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}

	record, err := p.db.City(ip)
	if err != nil {
		return nil
	}

	loc := &models.GeoIP{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}

	if p.redis != nil {
		if raw, err := json.Marshal(loc); err == nil {
			if err := p.redis.CacheLookup(ctx, database.GeoIPKey(ipStr), string(raw)); err != nil {
				p.log.Debugw("geoip cache write failed", "ip", ipStr, "error", err)
			}
		}
	}

	return loc
}

// Available reports whether the MaxMind database is loaded.
func (p *Provider) Available() bool {
	return p.db != nil
}

// Close releases the MaxMind reader.
func (p *Provider) Close() {
	if p.db != nil {
		p.db.Close()
	}
}
