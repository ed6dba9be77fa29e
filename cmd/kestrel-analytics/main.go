package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kestrel-go/cmd/kestrel-analytics/alerting"
	"kestrel-go/cmd/kestrel-analytics/config"
	"kestrel-go/cmd/kestrel-analytics/detect"
	"kestrel-go/cmd/kestrel-analytics/features"
	"kestrel-go/cmd/kestrel-analytics/sink"
	"kestrel-go/pkg/database"
	"kestrel-go/pkg/logging"
	"kestrel-go/pkg/messaging"
	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/ops"
	"kestrel-go/pkg/schema"
	"kestrel-go/pkg/store"
)

const serviceName = "analytics"

// Analytics runs up to 10 concurrent extraction/scoring handlers.
const prefetch = 10

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional
	}

	cfg := config.LoadConfig()
	log := logging.New(serviceName)
	log.Info("starting analytics service")

	// Infrastructure
	nc, err := messaging.NewClient(&messaging.NatsConfig{
		URL: cfg.NatsURL, Username: cfg.NatsUser, Password: cfg.NatsPassword,
		ReconnectWait: 2 * time.Second,
	})
	if err != nil {
		log.Fatalw("nats connect failed", "error", err)
	}
	defer nc.Close()

	rdb, err := database.NewRedisClient(&database.RedisConfig{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, UseTLS: cfg.RedisTLS,
	})
	if err != nil {
		log.Fatalw("redis connect failed", "error", err)
	}
	defer rdb.Close()

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

	// ClickHouse archival is optional: alerting works without it.
	var eventSink *sink.ClickHouseSink
	ch, err := database.NewClickHouseClient(&database.ClickHouseConfig{
		Host: cfg.ClickHouseHost, Port: cfg.ClickHousePort,
		Database: cfg.ClickHouseDB, Username: cfg.ClickHouseUser, Password: cfg.ClickHousePassword,
	})
	if err != nil {
		log.Warnw("clickhouse unavailable, archival disabled", "error", err)
	} else {
		if err := ch.InitializeSchema(context.Background()); err != nil {
			log.Warnw("clickhouse schema init failed", "error", err)
		}
		eventSink = sink.NewClickHouseSink(ch, cfg.BatchSize, time.Duration(cfg.FlushInterval)*time.Second, log)
		defer eventSink.Close()
	}

	// Pipeline components
	extractors := features.NewRegistry(rdb)

	rule, err := detect.NewRuleDetector()
	if err != nil {
		log.Fatalw("rule detector init failed", "error", err)
	}
	ensemble := detect.NewEnsemble(detect.DefaultWeights,
		rule,
		detect.NewAnomalyDetector(cfg.ModelDir, log),
		detect.NewBehavioralDetector(),
	)

	alerter := alerting.NewAlerter(store.NewAlertStore(pg), nc, log)
	validator := schema.NewValidator()

	handler := func(subject string, data []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		evt, err := validator.DecodeEnrichedEvent(data)
		if err != nil {
			log.Errorw("enriched event rejected", "subject", subject, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "rejected").Inc()
			return err
		}

		if eventSink != nil {
			eventSink.Write(evt)
		}

		feats, err := extractors.Extract(ctx, evt)
		if err != nil {
			log.Errorw("feature extraction failed", "event_id", evt.EventID, "error", err)
			metrics.EventsConsumed.WithLabelValues(serviceName, "failed").Inc()
			return err
		}

		score, reasons := ensemble.Detect(feats, evt.AgentID, evt.EventType)
		metrics.EnsembleScore.WithLabelValues(evt.EventType).Observe(score)

		if severity, ok := models.SeverityForScore(score); ok {
			if _, err := alerter.Raise(ctx, evt, score, severity, feats, reasons); err != nil {
				log.Errorw("alert raise failed", "event_id", evt.EventID, "error", err)
				metrics.EventsConsumed.WithLabelValues(serviceName, "failed").Inc()
				return err
			}
		}

		metrics.EventsConsumed.WithLabelValues(serviceName, "ok").Inc()
		return nil
	}

	cc, err := nc.QueueSubscribe(context.Background(), messaging.StreamEvents,
		messaging.SubjectEventsEnriched, messaging.ConsumerAnalytics, prefetch, handler)
	if err != nil {
		log.Fatalw("subscribe failed", "error", err)
	}
	defer cc.Stop()

	app := ops.NewApp(serviceName, func() map[string]bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		components := map[string]bool{
			"nats":     nc.Connection().IsConnected(),
			"redis":    rdb.Ping(ctx) == nil,
			"postgres": pg.Ping(ctx) == nil,
		}
		if eventSink != nil {
			components["clickhouse"] = ch.Ping(ctx) == nil
		}
		return components
	})
	go func() {
		if err := app.Listen(cfg.OpsAddr); err != nil {
			log.Warnw("ops server stopped", "error", err)
		}
	}()

	log.Infow("consuming enriched events", "subject", messaging.SubjectEventsEnriched)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")
}
