package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tailtrigger/tailtrigger/internal/watcher"
)

func TestLoad_MissingDefaultUsesEnvDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "exec", cfg.Watch.Reader)
	assert.Equal(t, "tail", cfg.Watch.TailBinary)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.PollInterval)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 0, cfg.Watch.Lines)
}

func TestLoad_MissingExplicitFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config")
}

func TestLoad_FileThenEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
watch:
  directory: ~/logs
  file: "app*.log"
  lines: 5
  deduplicate: true
  reader: notify
output:
  format: text
  store: ~/events.db
`), 0o600))
	t.Setenv("TAILTRIGGER_LINES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app*.log", cfg.Watch.File)
	assert.Equal(t, 7, cfg.Watch.Lines)
	assert.True(t, cfg.Watch.Deduplicate)
	assert.Equal(t, "notify", cfg.Watch.Reader)
	assert.Equal(t, "text", cfg.Output.Format)

	wc, err := cfg.WatcherConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), wc.Directory)
	assert.Equal(t, "app*.log", wc.Target)
	assert.Equal(t, 7, wc.SeedLines)
	assert.True(t, wc.Deduplicate)
	assert.Equal(t, watcher.DiagnosticsFatal, wc.Diagnostics)

	store, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "events.db"), store)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown reader", "watch:\n  reader: inotify\n"},
		{"negative lines", "watch:\n  lines: -2\n"},
		{"bad format", "output:\n  format: xml\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestWatcherConfig_LenientAndBlankDirectory(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{File: "x.log", Lenient: true}}
	wc, err := cfg.WatcherConfig()
	require.NoError(t, err)
	assert.Equal(t, "", wc.Directory)
	assert.Equal(t, watcher.DiagnosticsLog, wc.Diagnostics)

	store, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Empty(t, store)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "a/b"), got)

	_, err = expandPath("   ")
	assert.Error(t, err)
}
