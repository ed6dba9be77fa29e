package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kestrel-go/cmd/kestrel-playbook/actions"
	"kestrel-go/cmd/kestrel-playbook/config"
	"kestrel-go/cmd/kestrel-playbook/engine"
	"kestrel-go/cmd/kestrel-playbook/playbook"
	"kestrel-go/pkg/audit"
	"kestrel-go/pkg/database"
	"kestrel-go/pkg/logging"
	"kestrel-go/pkg/messaging"
	"kestrel-go/pkg/metrics"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/ops"
	"kestrel-go/pkg/schema"
	"kestrel-go/pkg/store"
)

const serviceName = "playbook"

const prefetch = 10

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional
	}

	configPath := flag.String("config", "./config/config.yaml", "path to config.yaml")
	flag.Parse()

	log := logging.New(serviceName)
	log.Info("starting playbook engine")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	// Action catalog and parser: nothing executes without passing these.
	catalog, err := playbook.LoadCatalog(cfg.Data.ActionsCatalog)
	if err != nil {
		log.Fatalw("action catalog load failed", "path", cfg.Data.ActionsCatalog, "error", err)
	}
	parser := playbook.NewParser(catalog)

	// KV store for cooldown and lock; execution degrades without it.
	rdb, err := database.NewRedisClient(&database.RedisConfig{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, UseTLS: cfg.Redis.TLS,
	})
	if err != nil {
		log.Warnw("redis unavailable, cooldown and locks disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	auditor, err := audit.NewWriter(cfg.Data.AuditFile)
	if err != nil {
		log.Fatalw("audit writer init failed", "error", err)
	}

	execLog, err := store.NewExecutionLog(cfg.Data.Executions, cfg.Execution.Persist)
	if err != nil {
		log.Fatalw("execution log init failed", "error", err)
	}

	registry := actions.NewRegistry()
	actions.NewHostActions(actions.ExecRunner{}, cfg.Execution.QuarantineDir).RegisterAll(registry)

	executor := engine.NewExecutor(rdb, registry, execLog, auditor, engine.ExecutorConfig{
		CooldownEnabled:  cfg.Redis.CooldownEnabled,
		CooldownTTL:      time.Duration(cfg.Redis.CooldownTTL) * time.Second,
		LockTTL:          time.Duration(cfg.Redis.LockTTL) * time.Second,
		AllowIsolateHost: cfg.Execution.AllowIsolateHost,
		IsPrivileged:     func() bool { return os.Geteuid() == 0 },
	}, log)

	resolver := engine.NewResolver(cfg.Data.PlaybooksStatic, cfg.Data.PlaybooksGenerated,
		parser, engine.DeterministicPlanner{}, log)

	validator := schema.NewValidator()

	handleAlert := func(alert *models.Alert) error {
		auditor.Record("alert_received", map[string]interface{}{
			"alert_id": alert.ID, "agent_id": alert.AgentID, "severity": string(alert.Severity),
		})

		pb, err := resolver.Resolve(alert)
		if err != nil {
			log.Errorw("playbook resolve failed", "alert_id", alert.ID, "error", err)
			metrics.Executions.WithLabelValues("failed").Inc()
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := executor.Execute(ctx, pb, alert)
		switch {
		case errors.Is(err, engine.ErrUnderCooldown),
			errors.Is(err, engine.ErrExecutionInProgress),
			errors.Is(err, engine.ErrPreconditionsNotMet):
			// Handled, just refused; the message is acked.
			log.Infow("execution refused", "alert_id", alert.ID, "reason", err.Error())
			metrics.Executions.WithLabelValues("refused").Inc()
			return nil
		case err != nil:
			log.Errorw("execution failed", "alert_id", alert.ID, "error", err)
			metrics.Executions.WithLabelValues("failed").Inc()
			return err
		}

		outcome := "success"
		if !result.Success {
			outcome = "failed"
			if result.RolledBack {
				outcome = "rolled_back"
			}
		}
		metrics.Executions.WithLabelValues(outcome).Inc()
		log.Infow("execution finished", "alert_id", alert.ID, "execution_id", result.ID,
			"success", result.Success, "rolled_back", result.RolledBack)
		return nil
	}

	// Batch mode: process a JSON/JSONL alert file once.
	if cfg.Messaging.FileInput != "" {
		if err := ingestFile(cfg.Messaging.FileInput, handleAlert, log); err != nil {
			log.Errorw("file ingestion failed", "path", cfg.Messaging.FileInput, "error", err)
		}
	}

	// Bus mode.
	var nc *messaging.Client
	if cfg.Messaging.Enabled {
		nc, err = messaging.NewClient(&messaging.NatsConfig{
			URL: cfg.Messaging.URL, Username: cfg.Messaging.User, Password: cfg.Messaging.Password,
			ReconnectWait: 2 * time.Second,
		})
		if err != nil {
			log.Fatalw("nats connect failed", "error", err)
		}
		defer nc.Close()

		handler := func(subject string, data []byte) error {
			alert, err := validator.DecodeAlert(data)
			if err != nil {
				log.Errorw("alert rejected", "subject", subject, "error", err)
				metrics.EventsConsumed.WithLabelValues(serviceName, "rejected").Inc()
				return err
			}
			metrics.EventsConsumed.WithLabelValues(serviceName, "ok").Inc()
			return handleAlert(alert)
		}

		subject := cfg.Messaging.RoutingKey
		if subject == "" {
			subject = messaging.SubjectAlerts
		}
		cc, err := nc.QueueSubscribe(context.Background(), messaging.StreamAlerts,
			subject, messaging.ConsumerPlaybook, prefetch, handler)
		if err != nil {
			log.Fatalw("subscribe failed", "error", err)
		}
		defer cc.Stop()

		log.Infow("consuming alerts", "subject", subject)
	} else {
		log.Info("bus consumer disabled via config")
	}

	// Ops endpoint with read-only execution access.
	app := ops.NewApp(serviceName, func() map[string]bool {
		components := map[string]bool{}
		if nc != nil {
			components["nats"] = nc.Connection().IsConnected()
		}
		if rdb != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			components["redis"] = rdb.Ping(ctx) == nil
		}
		return components
	})
	registerExecutionRoutes(app, execLog)
	go func() {
		if err := app.Listen(cfg.OpsAddr); err != nil {
			log.Warnw("ops server stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")
}

func registerExecutionRoutes(app *fiber.App, execLog *store.ExecutionLog) {
	app.Get("/executions", func(c *fiber.Ctx) error {
		ids, err := execLog.List()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"executions": ids})
	})
	app.Get("/executions/:id", func(c *fiber.Ctx) error {
		result, err := execLog.Get(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if result == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.JSON(result)
	})
}

// ingestFile processes a JSON array or JSONL alert file once.
func ingestFile(path string, handle func(*models.Alert) error, log *zap.SugaredLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Try a JSON array first; fall back to line-delimited.
	var alerts []models.Alert
	dec := json.NewDecoder(f)
	if err := dec.Decode(&alerts); err == nil {
		for i := range alerts {
			if err := handle(&alerts[i]); err != nil {
				log.Errorw("file alert handling failed", "alert_id", alerts[i].ID, "error", err)
			}
		}
		return nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var alert models.Alert
		if err := json.Unmarshal(line, &alert); err != nil {
			log.Errorw("file alert decode failed", "error", err)
			continue
		}
		if err := handle(&alert); err != nil {
			log.Errorw("file alert handling failed", "alert_id", alert.ID, "error", err)
		}
	}
	return scanner.Err()
}
