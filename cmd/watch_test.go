package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tailtrigger/tailtrigger/internal/config"
)

func newWatchFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "watch"}
	registerWatchFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func baseConfig() *config.Config {
	return &config.Config{
		Watch:  config.WatchConfig{Directory: "/var/log", File: "syslog", Reader: "exec", Lines: 3},
		Output: config.OutputConfig{Format: "json"},
		Log:    config.LogConfig{Level: "info", Format: "text"},
	}
}

func TestApplyWatchFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cfg := baseConfig()
	c := newWatchFlags(t, "--file", "app.log", "-n", "0", "--reader", "notify", "--dedup")
	require.NoError(t, applyWatchFlags(c, cfg))

	assert.Equal(t, "/var/log", cfg.Watch.Directory)
	assert.Equal(t, "app.log", cfg.Watch.File)
	assert.Equal(t, 0, cfg.Watch.Lines)
	assert.Equal(t, "notify", cfg.Watch.Reader)
	assert.True(t, cfg.Watch.Deduplicate)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestApplyWatchFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown reader", []string{"--reader", "inotify"}},
		{"unknown format", []string{"--format", "xml"}},
		{"negative lines", []string{"-n", "-1"}},
		{"negative max", []string{"--max", "-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, applyWatchFlags(newWatchFlags(t, tt.args...), baseConfig()))
		})
	}
}
