package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tailtrigger/tailtrigger/internal/config"
	"github.com/tailtrigger/tailtrigger/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default config file and event store",
	Long: `Initialize tailtrigger in your home directory.

This creates:
  ~/.tailtrigger/config.yaml       - Configuration file
  ~/.tailtrigger/data/events.db    - Event store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		configPath, err := expandHome(configPath)
		if err != nil {
			return err
		}
		dbPath := config.DefaultStorePath()

		for _, dir := range []string{filepath.Dir(configPath), filepath.Dir(dbPath)} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		fmt.Fprintln(out, "   ✓ Created directories")

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := os.WriteFile(configPath, []byte(fmt.Sprintf(defaultConfig, dbPath)), 0644); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintln(out, "   ✓ Created", configPath)
		} else {
			fmt.Fprintln(out, "   ✓ Config exists")
		}

		s, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		s.Close()
		fmt.Fprintln(out, "   ✓ Initialized", dbPath)

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  1. Set watch.directory and watch.file in the config")
		fmt.Fprintln(out, "  2. Follow the file:   tailtrigger watch")
		fmt.Fprintln(out, "  3. Browse events:     tailtrigger events")
		return nil
	},
}

func expandHome(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	return path, nil
}

const defaultConfig = `# tailtrigger configuration
# Every key can also be set through TAILTRIGGER_* environment variables.

watch:
  directory: /var/log
  file: syslog
  lines: 0            # replay the last N lines on attach
  deduplicate: false  # drop a line equal to the previous one
  reader: exec        # exec | notify | tail | poll
  lenient: false      # log tail diagnostics instead of failing
  tail_binary: tail
  poll_interval: 250ms

output:
  format: json        # json | text
  store: %s

log:
  level: info
  format: text
`
