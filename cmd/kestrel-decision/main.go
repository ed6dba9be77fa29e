package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"kestrel-go/cmd/kestrel-decision/config"
	"kestrel-go/cmd/kestrel-decision/engine"
	"kestrel-go/pkg/database"
	"kestrel-go/pkg/logging"
	"kestrel-go/pkg/ops"
	"kestrel-go/pkg/store"
)

const serviceName = "decision"

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional
	}

	cfg := config.LoadConfig()
	log := logging.New(serviceName)
	log.Info("starting decision engine")

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

	eng := engine.New(store.NewAlertStore(pg), store.NewDecisionStore(pg), cfg.BatchSize, log)

	// Ops endpoint with a manual trigger alongside the poll loop.
	app := ops.NewApp(serviceName, func() map[string]bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return map[string]bool{"postgres": pg.Ping(ctx) == nil}
	})
	app.Post("/run", func(c *fiber.Ctx) error {
		created, err := eng.RunOnce(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"created": created})
	})
	go func() {
		if err := app.Listen(cfg.OpsAddr); err != nil {
			log.Warnw("ops server stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(time.Duration(cfg.ScanInterval) * time.Second)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("polling for undecided alerts", "interval_s", cfg.ScanInterval)

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := eng.RunOnce(ctx); err != nil {
				log.Errorw("decision pass failed", "error", err)
			}
			cancel()
		case <-sigChan:
			log.Info("shutting down")
			return
		}
	}
}
