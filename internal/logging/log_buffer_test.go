package logging

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferDropsOldest(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Add(LogEntry{Level: "info", Message: fmt.Sprintf("m%d", i)})
	}

	entries := buf.Entries(nil)
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, "m4", entries[2].Message)
}

func TestLogBufferFiltersByLevel(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Add(LogEntry{Level: "info", Message: "a"})
	buf.Add(LogEntry{Level: "error", Message: "b"})
	buf.Add(LogEntry{Level: "warn", Message: "c"})

	got := buf.Entries([]string{"ERROR", "warn"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "c", got[1].Message)
}

func TestLogBufferCapturesZerologEvents(t *testing.T) {
	buf := NewLogBuffer(10)
	logger := zerolog.New(buf).With().Timestamp().Logger()

	logger.Warn().Str("command", "reboot").Msg("device slow to answer")
	logger.Info().Msg("hello")

	entries := buf.Entries(nil)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "device slow to answer", entries[0].Message)
	assert.Equal(t, "reboot", entries[0].Fields["command"])
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Nil(t, entries[1].Fields)
}

func TestLogBufferKeepsPlainLines(t *testing.T) {
	buf := NewLogBuffer(2)
	_, err := buf.Write([]byte("not json\n"))
	require.NoError(t, err)

	entries := buf.Entries(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "not json", entries[0].Message)
	assert.Equal(t, "info", entries[0].Level)
}

func TestLogBufferClear(t *testing.T) {
	buf := NewLogBuffer(2)
	buf.Add(LogEntry{Message: "x"})
	buf.Clear()
	assert.Empty(t, buf.Entries(nil))
}
