package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kestrel-go/cmd/kestrel-enrichment/config"
	"kestrel-go/cmd/kestrel-enrichment/enrichers"
	"kestrel-go/cmd/kestrel-enrichment/geoip"
	"kestrel-go/cmd/kestrel-enrichment/intel"
	"kestrel-go/cmd/kestrel-enrichment/yara"
	"kestrel-go/pkg/database"
	"kestrel-go/pkg/logging"
	"kestrel-go/pkg/messaging"
	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/ops"
	"kestrel-go/pkg/schema"
	"kestrel-go/pkg/store"
)

const serviceName = "enrichment"

// Enrichment consumes events.raw.#, performs cached intel lookups, scores
// the event and republishes it enriched. Prefetch 1: each message is
// processed to completion before the next delivery.
const prefetch = 1

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional
	}

	cfg := config.LoadConfig()
	log := logging.New(serviceName)
	log.Info("starting enrichment service")

	// Infrastructure
	nc, err := messaging.NewClient(&messaging.NatsConfig{
		URL: cfg.NatsURL, Username: cfg.NatsUser, Password: cfg.NatsPassword,
		ReconnectWait: 2 * time.Second,
	})
	if err != nil {
		log.Fatalw("nats connect failed", "error", err)
	}
	defer nc.Close()

	if err := nc.InitializeStreams(context.Background()); err != nil {
		log.Fatalw("stream init failed", "error", err)
	}

	rdb, err := database.NewRedisClient(&database.RedisConfig{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, UseTLS: cfg.RedisTLS,
	})
	if err != nil {
		log.Warnw("redis unavailable, lookups will go uncached", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	pg, err := database.NewPostgresClient(&database.PostgresConfig{
		Host: cfg.PostgresHost, Port: cfg.PostgresPort,
		Username: cfg.PostgresUser, Password: cfg.PostgresPassword,
		Database: cfg.PostgresDB, SSLMode: "disable",
	})
	if err != nil {
		log.Fatalw("postgres connect failed", "error", err)
	}
	defer pg.Close()

	if err := pg.InitializeSchema(context.Background()); err != nil {
		log.Fatalw("schema init failed", "error", err)
	}

	// Providers
	provider := intel.NewCachingProvider(rdb, intel.NewVTClient(cfg.VTAPIKey), intel.NewOTXClient(cfg.OTXAPIKey), log)

	geo, _ := geoip.NewProvider(cfg.GeoIPDBPath, rdb, log)
	defer geo.Close()

	scanner, err := yara.Load(cfg.YaraRulesPath)
	if err != nil {
		log.Warnw("yara rules unavailable, scanning disabled", "path", cfg.YaraRulesPath, "error", err)
		scanner = nil
	}

	registry := enrichers.NewRegistry(provider, geo, scanner)
	validator := schema.NewValidator()
	enrichmentStore := store.NewEnrichmentStore(pg)

	// Consume raw events
	handler := func(subject string, data []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		evt, err := validator.DecodeRawEvent(data)
		if err != nil {
			log.Errorw("raw event rejected", "subject", subject, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "rejected").Inc()
			return err
		}

		enrichment, err := registry.Enrich(ctx, evt)
		if err != nil {
			log.Errorw("enrich failed", "event_id", evt.EventID, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "failed").Inc()
			return err
		}

		enriched := &models.EnrichedEvent{
			EventID:    evt.EventID,
			AgentID:    evt.AgentID,
			EventType:  evt.EventType,
			Payload:    evt.Payload,
			Enrichment: *enrichment,
			Timestamp:  evt.Timestamp,
		}

		if err := enrichmentStore.Insert(ctx, enriched); err != nil {
			log.Errorw("enrichment persist failed", "event_id", evt.EventID, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "failed").Inc()
			return err
		}

		out, err := json.Marshal(enriched)
		if err != nil {
			return err
		}
		subject = messaging.EnrichedEventSubject(evt.AgentID, evt.EventType)
		if _, err := nc.PublishSync(ctx, subject, out); err != nil {
			log.Errorw("enriched publish failed", "event_id", evt.EventID, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "failed").Inc()
			return err
		}

		metrics.EventsConsumed.WithLabelValues(serviceName, "ok").Inc()
		metrics.EventsEnriched.WithLabelValues(evt.EventType).Inc()
		return nil
	}

	cc, err := nc.QueueSubscribe(context.Background(), messaging.StreamEvents,
		messaging.SubjectEventsRaw, messaging.ConsumerEnrichment, prefetch, handler)
	if err != nil {
		log.Fatalw("subscribe failed", "error", err)
	}
	defer cc.Stop()

	// Ops endpoint
	app := ops.NewApp(serviceName, func() map[string]bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		components := map[string]bool{
			"nats":     nc.Connection().IsConnected(),
			"postgres": pg.Ping(ctx) == nil,
			"geoip":    geo.Available(),
		}
		if rdb != nil {
			components["redis"] = rdb.Ping(ctx) == nil
		}
		return components
	})
	go func() {
		if err := app.Listen(cfg.OpsAddr); err != nil {
			log.Warnw("ops server stopped", "error", err)
		}
	}()

	log.Infow("consuming raw events", "subject", messaging.SubjectEventsRaw)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")
}
