package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tailtrigger/tailtrigger/internal/config"
	"github.com/tailtrigger/tailtrigger/internal/store"
	"github.com/tailtrigger/tailtrigger/internal/trigger"
	"github.com/tailtrigger/tailtrigger/internal/watcher"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

// errSessionFailed makes the process exit non-zero after the failure was reported.
var errSessionFailed = errors.New("watch session failed")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a file and emit its new lines",
	Long: `Follow --file inside --dir and emit each new non-empty line.

With -n, the last N lines already in the file are emitted first. The session
runs until interrupted, until --max lines were emitted, or until it fails.`,
	Example: `  tailtrigger watch --dir /var/log --file syslog -n 10
  tailtrigger watch --dir ./logs --file 'app-*.log' --reader notify --format text`,
	RunE: runWatch,
}

func init() {
	registerWatchFlags(watchCmd)
}

func registerWatchFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("dir", "", "directory containing the file")
	f.String("file", "", "file name or glob inside --dir")
	f.IntP("lines", "n", 0, "replay the last N existing lines first")
	f.Bool("dedup", false, "suppress a line equal to the one before it")
	f.String("reader", watcher.ReaderExec, "follow mechanism: exec, notify, tail or poll")
	f.Bool("lenient", false, "log reader diagnostics instead of failing")
	f.String("format", "json", "output format: json or text")
	f.String("store", "", "also record events in this sqlite file")
	f.Int64("max", 0, "stop after N lines (0 means no limit)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyWatchFlags(cmd, cfg); err != nil {
		return err
	}
	log := newLogger(cfg)

	watchCfg, err := cfg.WatcherConfig()
	if err != nil {
		return fmt.Errorf("failed to resolve watch config: %w", err)
	}
	reader, err := watcher.NewReader(cfg.Watch.Reader, log)
	if err != nil {
		return err
	}
	sink, err := trigger.NewFormatSink(cfg.Output.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts := []trigger.Option{trigger.WithSink(sink), trigger.WithLogger(log)}
	if dbPath, _ := cfg.StorePath(); dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
		s, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer s.Close()
		opts = append(opts, trigger.WithStore(s))
	}

	maxLines, _ := cmd.Flags().GetInt64("max")
	t := trigger.New(trigger.Config{
		Watch:    watchCfg,
		Reader:   cfg.Watch.Reader,
		MaxLines: maxLines,
	}, reader, opts...)

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, err := t.Run(ctx)
	if err != nil {
		if rec != nil && rec.Outcome == models.OutcomeFailed {
			if trigger.IsConfigError(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "invalid watch target:", err)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "watch failed:", err)
			}
			return errSessionFailed
		}
		return err
	}
	return nil
}

// applyWatchFlags overrides config values with the flags that were set
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("dir") {
		cfg.Watch.Directory, _ = f.GetString("dir")
	}
	if f.Changed("file") {
		cfg.Watch.File, _ = f.GetString("file")
	}
	if f.Changed("lines") {
		cfg.Watch.Lines, _ = f.GetInt("lines")
	}
	if f.Changed("dedup") {
		cfg.Watch.Deduplicate, _ = f.GetBool("dedup")
	}
	if f.Changed("reader") {
		cfg.Watch.Reader, _ = f.GetString("reader")
	}
	if f.Changed("lenient") {
		cfg.Watch.Lenient, _ = f.GetBool("lenient")
	}
	if f.Changed("format") {
		cfg.Output.Format, _ = f.GetString("format")
	}
	if f.Changed("store") {
		cfg.Output.Store, _ = f.GetString("store")
	}
	if n, _ := f.GetInt64("max"); n < 0 {
		return fmt.Errorf("--max must not be negative")
	}
	return cfg.Validate()
}
