package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
locale: de
default_group: B-101
fallback_after: -5s
notifications:
  enabled: true
sources:
  - name: cs3
    url: https://example.com/cs3.ics
    group: CS-3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "B-101", cfg.DefaultGroup)
	assert.Equal(t, time.Duration(0), cfg.FallbackAfter)
	assert.True(t, cfg.Notifications.Enabled)
	assert.False(t, cfg.Notifications.Permission)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "cs3", cfg.Sources[0].ID)
	assert.Equal(t, "CS-3", cfg.Sources[0].Group)
	assert.Equal(t, 400, cfg.Capture.Width)
}

func TestSaveRoundTripKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Locale = "ru"
	cfg.FallbackAfter = 10 * time.Second
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ru", got.Locale)
	assert.Equal(t, 10*time.Second, got.FallbackAfter)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Invalid"}
	assert.Equal(t, time.Local, cfg.Location())
}
