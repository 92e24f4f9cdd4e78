package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "revify.log")

	log, closeFn, err := New("info", file)
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Str("session", "s1").Msg("loaded")
	closeFn()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "loaded", entry["message"])
	assert.Equal(t, "s1", entry["session"])
	assert.Contains(t, entry, "time")
}

func TestNewAppends(t *testing.T) {
	file := filepath.Join(t.TempDir(), "revify.log")
	for i := 0; i < 2; i++ {
		log, closeFn, err := New("debug", file)
		require.NoError(t, err)
		log.Info().Msg("run")
		closeFn()
	}
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, closeFn, err := New("chatty", "")
	assert.Error(t, err)
	closeFn()

	_, err = Console("chatty")
	assert.Error(t, err)
}
