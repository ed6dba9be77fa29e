package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel-go/pkg/models"
)

func sampleExecution(id string) *models.ExecutionResult {
	return &models.ExecutionResult{
		ID:         id,
		PlaybookID: "pb-process-critical",
		Success:    false,
		RolledBack: true,
		Steps: []models.StepResult{
			{Step: "Quarantine file", Action: "quarantine_file", Status: models.StepOK},
			{Step: "Kill malicious process", Action: "kill_process", Status: models.StepError, Error: "refusing to kill pid -1"},
			{Step: "Quarantine file", Action: "quarantine_file", Status: models.StepOK, Rollback: true},
		},
	}
}

func TestExecutionLogFileRoundTrip(t *testing.T) {
	log, err := NewExecutionLog(t.TempDir(), true)
	require.NoError(t, err)

	want := sampleExecution("exec-1")
	require.NoError(t, log.Save(want))

	got, err := log.Get("exec-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ids, err := log.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1"}, ids)
}

func TestExecutionLogGetUnknown(t *testing.T) {
	log, err := NewExecutionLog(t.TempDir(), true)
	require.NoError(t, err)

	got, err := log.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExecutionLogInMemory(t *testing.T) {
	log, err := NewExecutionLog("", false)
	require.NoError(t, err)

	require.NoError(t, log.Save(sampleExecution("b")))
	require.NoError(t, log.Save(sampleExecution("a")))

	got, err := log.Get("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.RolledBack)

	ids, err := log.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
