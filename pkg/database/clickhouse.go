package database

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"kestrel-go/pkg/models"
)

// ClickHouseConfig holds the archival store connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	UseTLS   bool
	Debug    bool
}

// ClickHouseClient manages the ClickHouse connection pool. The analytics
// service uses it to archive every enriched event for dashboard queries.
type ClickHouseClient struct {
	conn   driver.Conn
	config *ClickHouseConfig
}

// NewClickHouseClient creates a new ClickHouse client and verifies connectivity.
func NewClickHouseClient(config *ClickHouseConfig) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", config.Host, config.Port)},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Debug: config.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:      time.Second * 10,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}

	if config.UseTLS {
		options.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	return &ClickHouseClient{conn: conn, config: config}, nil
}

// Conn returns the active connection.
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// Ping checks connection health.
func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection.
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// InsertEnrichedEvents writes a batch of enriched events.
func (c *ClickHouseClient) InsertEnrichedEvents(ctx context.Context, events []*models.EnrichedEvent) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO enriched_events")
	if err != nil {
		return fmt.Errorf("prepare batch failed: %w", err)
	}

	for _, event := range events {
		if event == nil {
			continue
		}
		payload, _ := json.Marshal(event.Payload)
		enrichment, _ := json.Marshal(event.Enrichment)

		err := batch.Append(
			event.EventID,
			event.AgentID,
			event.EventType,
			string(payload),
			string(enrichment),
			event.Enrichment.ThreatScore,
			event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("batch append failed: %w", err)
		}
	}

	return batch.Send()
}

// Query runs a general-purpose query.
func (c *ClickHouseClient) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	return c.conn.Query(ctx, query, args...)
}

// Exec runs a DML statement.
func (c *ClickHouseClient) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.Exec(ctx, query, args...)
}

// InitializeSchema creates the archival table.
func (c *ClickHouseClient) InitializeSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS enriched_events (
		event_id String,
		agent_id String,
		event_type String,
		payload String,
		enrichment String,
		threat_score Float64,
		event_time String,
		ingested_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(ingested_at)
	ORDER BY (ingested_at, agent_id, event_type)
	TTL toDateTime(ingested_at) + INTERVAL 90 DAY
	SETTINGS index_granularity = 8192
	`

	if err := c.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create enriched_events table: %w", err)
	}

	return nil
}
