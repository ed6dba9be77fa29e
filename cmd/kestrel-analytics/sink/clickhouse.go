package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
)

// ClickHouseSink batches enriched events into the archival store. Archival
// is best-effort; a slow or down ClickHouse never blocks alerting.
type ClickHouseSink struct {
	client        *database.ClickHouseClient
	log           *zap.SugaredLogger
	batchSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []*models.EnrichedEvent
	done   chan struct{}
}

func NewClickHouseSink(client *database.ClickHouseClient, batchSize int, flushInterval time.Duration, log *zap.SugaredLogger) *ClickHouseSink {
	s := &ClickHouseSink{
		client:        client,
		log:           log,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]*models.EnrichedEvent, 0, batchSize),
		done:          make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Write adds an event to the buffer, flushing when the batch fills.
func (s *ClickHouseSink) Write(evt *models.EnrichedEvent) {
	s.mu.Lock()
	s.buffer = append(s.buffer, evt)
	shouldFlush := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		s.Flush()
	}
}

// Flush writes the current batch.
func (s *ClickHouseSink) Flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]*models.EnrichedEvent, 0, s.batchSize)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.client.InsertEnrichedEvents(ctx, batch); err != nil {
		s.log.Warnw("clickhouse insert failed, batch dropped", "size", len(batch), "error", err)
	}
}

func (s *ClickHouseSink) flushLoop() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Close flushes and stops the background loop.
func (s *ClickHouseSink) Close() {
	close(s.done)
}
