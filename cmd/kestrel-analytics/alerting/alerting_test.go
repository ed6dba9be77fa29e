package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/models"
	"kestrel-go/pkg/store"
)

type fakeBus struct {
	published []string
	err       error
}

func (f *fakeBus) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, subject)
	return &jetstream.PubAck{}, nil
}

func enrichedEvent() *models.EnrichedEvent {
	return &models.EnrichedEvent{
		EventID:   "7b0f9a4e-50c1-4a1f-9d8e-2f1a6c3b5d7e",
		AgentID:   "agent-001",
		EventType: "process",
		Payload:   map[string]interface{}{"process_name": "mimikatz.exe"},
		Timestamp: "2024-05-01T12:00:00Z",
	}
}

func TestRaisePublishesAfterStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bus := &fakeBus{}
	a := NewAlerter(store.NewAlertStore(database.NewPostgresClientFromDB(db)), bus, zap.NewNop().Sugar())

	alert, err := a.Raise(context.Background(), enrichedEvent(), 84.5, models.SeverityCritical,
		map[string]interface{}{"vt_positives": 67}, models.AlertReasons{Rule: []string{"rule_2"}})
	require.NoError(t, err)

	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, "analytics", alert.Source)
	assert.Equal(t, []string{"alerts.critical"}, bus.published)
}

func TestRaiseStoreFailureBlocksPublish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alerts").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	bus := &fakeBus{}
	a := NewAlerter(store.NewAlertStore(database.NewPostgresClientFromDB(db)), bus, zap.NewNop().Sugar())

	_, err = a.Raise(context.Background(), enrichedEvent(), 84.5, models.SeverityCritical, nil, models.AlertReasons{})
	assert.Error(t, err)
	assert.Empty(t, bus.published, "a failed write must not publish")
}

func TestRaisePublishFailureKeepsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bus := &fakeBus{err: errors.New("bus down")}
	a := NewAlerter(store.NewAlertStore(database.NewPostgresClientFromDB(db)), bus, zap.NewNop().Sugar())

	alert, err := a.Raise(context.Background(), enrichedEvent(), 60, models.SeverityMedium, nil, models.AlertReasons{})
	require.NoError(t, err, "publish failure is logged, not surfaced; the poller picks the row up")
	assert.NotEmpty(t, alert.ID)
}
