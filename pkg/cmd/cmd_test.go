package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/canvasblocks/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	assert.Equal(t, "file", parsePersistenceProvider("./data"))
	assert.Equal(t, "file", parsePersistenceProvider("file:///tmp/data"))
	assert.Equal(t, "postgres", parsePersistenceProvider("postgres://u:p@localhost/db"))
	assert.Equal(t, "redis", parsePersistenceProvider("redis://localhost:6379/0"))
	assert.Equal(t, "file", parsePersistenceProvider("mongodb://localhost"))
}

func TestNewPersistence_File(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(t.Context(), slog.New(slog.DiscardHandler), "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
	assert.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("", "", logger)
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", "", logger)
	assert.Error(t, err)

	_, err = NewEventBus("nats", "", logger)
	assert.Error(t, err)
}
