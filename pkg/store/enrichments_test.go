package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-go/pkg/models"
)

func TestEnrichmentInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO enrichments").
		WithArgs(sqlmock.AnyArg(), "process", sqlmock.AnyArg(), "agent-001",
			`["system_parent"]`, sqlmock.AnyArg(), `["mimikatz"]`, sqlmock.AnyArg(), 95.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	evt := &models.EnrichedEvent{
		EventID:   "7b0f9a4e-50c1-4a1f-9d8e-2f1a6c3b5d7e",
		AgentID:   "agent-001",
		EventType: "process",
		Payload:   map[string]interface{}{"process_name": "mimikatz.exe"},
		Enrichment: models.Enrichment{
			IOCMatches:  []string{"system_parent"},
			YaraHits:    []string{"mimikatz"},
			ThreatScore: 95,
		},
		Timestamp: "2024-05-01T12:00:00Z",
	}

	s := NewEnrichmentStore(newTestPostgres(db))
	require.NoError(t, s.Insert(context.Background(), evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
