package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tailtrigger/tailtrigger/internal/config"
	"github.com/tailtrigger/tailtrigger/internal/logger"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "tailtrigger",
	Short: "Follow a log file and emit every new line as an event.",
	Long: `tailtrigger attaches to a file in a directory, optionally replays its last
lines, and then emits each newly appended line as an event on stdout and,
optionally, into a local sqlite store.

Files that are rotated, truncated or recreated are followed by name.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errSessionFailed) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultConfigPath()+")")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
}

// loadConfig reads the config named by --config, or the default one
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(logger.Config{
		Format: cfg.Log.Format,
		Level:  logger.ParseLevel(cfg.Log.Level),
	})
}

// storePath returns the store flag, the configured store, or the default path
func storePath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if cmd.Flags().Changed("store") {
		cfg.Output.Store, _ = cmd.Flags().GetString("store")
	}
	p, err := cfg.StorePath()
	if err != nil || p != "" {
		return p, err
	}
	return config.DefaultStorePath(), nil
}
