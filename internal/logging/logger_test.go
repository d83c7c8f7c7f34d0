package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.log")

	logger, err := New(Config{Level: "debug", File: path})
	require.NoError(t, err)
	logger.Debug("cohort scored", zap.Int("size", 10))
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "cohort scored", entry["message"])
	assert.EqualValues(t, 10, entry["size"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.log")

	logger, err := New(Config{Level: "warn", File: path})
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
