package logger_adapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

type fakeFluent struct {
	posts []fakePost
}

type fakePost struct {
	tag  string
	data port.Fields
}

func (f *fakeFluent) Post(tag string, message interface{}) error {
	f.posts = append(f.posts, fakePost{tag: tag, data: message.(port.Fields)})
	return nil
}

func (f *fakeFluent) Close() error { return nil }

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelDebug, IsJSON: true})

	logger.WithFields(port.Fields{"use_case": "MatchProbe"}).Error("Probe failed", assert.AnError, port.Fields{"probe_id": "A1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Probe failed", line["msg"])
	assert.Equal(t, "MatchProbe", line["use_case"])
	assert.Equal(t, "A1", line["probe_id"])
	assert.Equal(t, assert.AnError.Error(), line["error"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: ParseLevel("warn")})
	logger.Info("hidden", nil)
	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())
	logger.Warn("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestFluentLoggerAdapter(t *testing.T) {
	client := &fakeFluent{}
	adapter, err := NewFluentLoggerAdapter(client, slog.LevelInfo)
	require.NoError(t, err)
	adapter.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	logger := adapter.WithFields(port.Fields{"service": "unification"})
	logger.Debug("dropped", nil)
	logger.Info("Canonical written", port.Fields{"canonical_id": "U1"})

	matchErr := domain.NewError(domain.ErrorKindMissingCoordinates, "merge", "no coordinates").WithField("probe_id", "A1")
	logger.Error("Merge failed", matchErr, nil)

	require.Len(t, client.posts, 2)
	assert.Equal(t, "info", client.posts[0].tag)
	assert.Equal(t, "U1", client.posts[0].data["canonical_id"])
	assert.Equal(t, "unification", client.posts[0].data["service"])
	assert.Equal(t, "2024-05-01T12:00:00Z", client.posts[0].data["timestamp"])

	assert.Equal(t, "error", client.posts[1].tag)
	assert.Equal(t, "missing_coordinates", client.posts[1].data["error_type"])
	assert.Equal(t, "A1", client.posts[1].data["probe_id"])

	_, err = NewFluentLoggerAdapter(nil, nil)
	assert.Error(t, err)
}

type countingLogger struct {
	port.LoggerPort
	infos int
}

func (c *countingLogger) Info(string, port.Fields)               { c.infos++ }
func (c *countingLogger) WithFields(port.Fields) port.LoggerPort { return c }

func TestMultiLogger(t *testing.T) {
	_, err := NewMultiloggerAdapter()
	assert.Error(t, err)
	_, err = NewMultiloggerAdapter(nil)
	assert.Error(t, err, "только nil-приемники")

	a, b := &countingLogger{}, &countingLogger{}
	single, err := NewMultiloggerAdapter(a)
	require.NoError(t, err)
	assert.Same(t, a, single)

	// выключенный fluent передается как nil
	single, err = NewMultiloggerAdapter(a, nil)
	require.NoError(t, err)
	assert.Same(t, a, single)

	multi, err := NewMultiloggerAdapter(a, b)
	require.NoError(t, err)
	multi.WithFields(port.Fields{"k": "v"}).Info("msg", nil)
	assert.Equal(t, 1, a.infos)
	assert.Equal(t, 1, b.infos)
}
