package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-go/pkg/models"
)

func sampleAlert() *models.Alert {
	return &models.Alert{
		ID:        "6a1e2d3c-0f4b-4c5d-8e9f-0a1b2c3d4e5f",
		EventID:   "7b0f9a4e-50c1-4a1f-9d8e-2f1a6c3b5d7e",
		AgentID:   "agent-001",
		EventType: "process",
		Score:     84.5,
		Severity:  models.SeverityCritical,
		Source:    "analytics",
		Details: models.AlertDetails{
			Features: map[string]interface{}{"vt_positives": 67},
			Reasons:  models.AlertReasons{Rule: []string{"rule_1", "rule_2"}, Anomaly: []string{}, Behavioral: []string{}},
			Model:    "ensemble",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestAlertInsertCommitsSingleTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "agent-001", "process",
			84.5, "critical", "analytics", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewAlertStore(newTestPostgres(db))
	require.NoError(t, s.Insert(context.Background(), sampleAlert()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertInsertRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alerts").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	s := NewAlertStore(newTestPostgres(db))
	err = s.Insert(context.Background(), sampleAlert())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentWithoutDecision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "event_id", "agent_id", "event_type", "score",
		"severity", "source", "details", "created_at",
	}).AddRow(
		"alert-1", "event-1", "agent-001", "network", 91.2,
		"critical", "analytics",
		`{"features":{"remote_ip":"185.156.47.22"},"reasons":{"rule":["rule_1"],"anomaly":[],"behavioral":[]},"model":"ensemble"}`,
		time.Now().UTC(),
	)

	mock.ExpectQuery("LEFT JOIN decisions").WithArgs(200).WillReturnRows(rows)

	s := NewAlertStore(newTestPostgres(db))
	alerts, err := s.RecentWithoutDecision(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "185.156.47.22", alerts[0].Details.Features["remote_ip"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
