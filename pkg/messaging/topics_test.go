package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectBuilders(t *testing.T) {
	assert.Equal(t, "events.raw.agent-001.process", RawEventSubject("agent-001", "process"))
	assert.Equal(t, "events.enriched.agent-001.file", EnrichedEventSubject("agent-001", "file"))
	assert.Equal(t, "alerts.critical", AlertSubject("critical"))
}
