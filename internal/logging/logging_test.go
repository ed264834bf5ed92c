package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/logging"
)

func TestBufferLogger(t *testing.T) {
	var buf bytes.Buffer
	logData, err := logging.New().FromBuffer(&buf).WithLevel("warn").Make()
	require.NoError(t, err)

	logData.Logger.Info().Msg("hidden")
	logData.Logger.Warn().Str("milestone", "m1").Msg("enrichment failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "m1", entry["milestone"])
	assert.Equal(t, "enrichment failed", entry["message"])
	assert.Contains(t, entry, "time")
	assert.NoError(t, logData.Close())
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crono.log")
	logData, err := logging.New().FromPath(path).WithLevel("nonsense").Make()
	require.NoError(t, err)

	logData.Logger.Info().Msg("written")
	require.NoError(t, logData.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"written"`)
}
