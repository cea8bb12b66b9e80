package fluxkit_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokit/fluxkit"
	"github.com/gokit/fluxkit/internal"
)

func TestGetLogEvent(t *testing.T) {
	t.Run("basic fields", func(t *testing.T) {
		event := fluxkit.LogMsg("My log")
		event.String("name", "thunder")
		event.Int("id", 234)
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"thunder\", \"id\": 234}", event.Message())
	})

	t.Run("escaped fields", func(t *testing.T) {
		event := fluxkit.LogMsg("My log")
		event.String("name", "say \"hi\"")
		assert.Equal(t, "{\"message\": \"My log\", \"name\": \"say \\\"hi\\\"\"}", event.Message())
	})

	t.Run("error fields", func(t *testing.T) {
		event := fluxkit.LogMsg("My log")
		event.Err("error", errors.New("bad"))
		event.Err("cause", nil)
		assert.Equal(t, "{\"message\": \"My log\", \"error\": \"bad\", \"cause\": null}", event.Message())
	})

	t.Run("numbers and bools", func(t *testing.T) {
		event := fluxkit.LogMsg("My log")
		event.Int64("demand", 9223372036854775807)
		event.Bool("eager", true)
		assert.Equal(t, "{\"message\": \"My log\", \"demand\": 9223372036854775807, \"eager\": true}", event.Message())
	})

	t.Run("with handler", func(t *testing.T) {
		event := fluxkit.LogMsg("My log").With(func(event *fluxkit.LogEvent) {
			event.Bool("w", true)
		})
		assert.Equal(t, "{\"message\": \"My log\", \"w\": true}", event.Message())
	})
}

func TestLogEventWrite(t *testing.T) {
	var logs internal.TLog
	fluxkit.LogMsg("scheduler started").String("scheduler", "single").Write(fluxkit.INFO, &logs)

	entries := logs.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, fluxkit.INFO, entries[0].Level)
	require.Equal(t, "{\"message\": \"scheduler started\", \"scheduler\": \"single\"}", entries[0].Message)
}

func TestLogrusLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	logs := &fluxkit.LogrusLogs{Logger: logger}

	levels := map[fluxkit.Level]logrus.Level{
		fluxkit.INFO:  logrus.InfoLevel,
		fluxkit.DEBUG: logrus.DebugLevel,
		fluxkit.WARN:  logrus.WarnLevel,
		fluxkit.ERROR: logrus.ErrorLevel,
		fluxkit.PANIC: logrus.ErrorLevel,
	}

	for level, expected := range levels {
		hook.Reset()
		logs.Emit(level, fluxkit.Message("entry"))

		entry := hook.LastEntry()
		require.NotNil(t, entry, level.String())
		require.Equal(t, expected, entry.Level, level.String())
		require.Equal(t, "entry", entry.Message)
	}
}

func TestLogrusLogsFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logs := &fluxkit.LogrusLogs{Logger: logger}

	fluxkit.LogMsg("scheduler started").
		String("scheduler", "single").
		Int("pending", 2).
		Write(fluxkit.INFO, logs)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "scheduler started", entry.Message)
	require.Equal(t, logrus.Fields{"scheduler": "single", "pending": float64(2)}, entry.Data)

	hook.Reset()
	logs.Emit(fluxkit.INFO, fluxkit.Message("{not json"))

	entry = hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "{not json", entry.Message)
	require.Empty(t, entry.Data)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "INFO", fluxkit.INFO.String())
	assert.Equal(t, "ERROR", fluxkit.ERROR.String())
	assert.Equal(t, "UNKNOWN", fluxkit.Level(0).String())
}

func BenchmarkGetLogEvent(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()

	b.Run("basic fields", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		for i := b.N; i > 0; i-- {
			event := fluxkit.LogMsg("My log")
			event.String("name", "thunder")
			event.Int("id", 234)
			event.Message()
		}
	})

	b.Run("error fields", func(b *testing.B) {
		err := errors.New("bad")
		b.ResetTimer()
		b.ReportAllocs()

		for i := b.N; i > 0; i-- {
			event := fluxkit.LogMsg("My log")
			event.Err("error", err)
			event.Message()
		}
	})
}
