package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig holds the relational store connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string // disable, require, verify-ca, verify-full
}

// PostgresClient manages the PostgreSQL connection pool.
type PostgresClient struct {
	db     *sql.DB
	config *PostgresConfig
}

// NewPostgresClient creates a new PostgreSQL client and verifies connectivity.
func NewPostgresClient(config *PostgresConfig) (*PostgresClient, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		config.Port,
		config.Username,
		config.Password,
		config.Database,
		config.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresClient{db: db, config: config}, nil
}

// NewPostgresClientFromDB wraps an existing handle. Used by stores in
// tests and by callers that manage their own pool.
func NewPostgresClientFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db, config: &PostgresConfig{}}
}

// GetDB returns the underlying *sql.DB.
func (p *PostgresClient) GetDB() *sql.DB {
	return p.db
}

// Ping checks connection health.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool.
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Query runs a query and returns the rows.
func (p *PostgresClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row query.
func (p *PostgresClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Exec runs a DML statement.
func (p *PostgresClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (p *PostgresClient) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, nil)
}

// InitializeSchema creates the back-plane tables.
func (p *PostgresClient) InitializeSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL,
		agent_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		score NUMERIC NOT NULL,
		severity TEXT NOT NULL,
		source TEXT NOT NULL,
		details JSON,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrichments (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		event_id UUID NOT NULL,
		agent_id TEXT NOT NULL,
		ioc_matches JSON,
		reputation JSON,
		yara_hits JSON,
		geoip JSON,
		threat_score NUMERIC NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id UUID PRIMARY KEY,
		alert_id VARCHAR(64) UNIQUE NOT NULL,
		agent_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		score FLOAT NOT NULL,
		recommended_action TEXT NOT NULL,
		priority FLOAT NOT NULL,
		rationale JSON,
		status TEXT DEFAULT 'pending',
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
	CREATE INDEX IF NOT EXISTS idx_alerts_agent ON alerts(agent_id);
	CREATE INDEX IF NOT EXISTS idx_enrichments_event ON enrichments(event_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);
	`

	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Health returns database health for the ops endpoint.
func (p *PostgresClient) Health(ctx context.Context) (map[string]string, error) {
	var version string
	err := p.db.QueryRowContext(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return nil, err
	}

	stats := p.db.Stats()

	return map[string]string{
		"status":           "healthy",
		"version":          version,
		"open_connections": fmt.Sprintf("%d", stats.OpenConnections),
		"in_use":           fmt.Sprintf("%d", stats.InUse),
		"idle":             fmt.Sprintf("%d", stats.Idle),
	}, nil
}
