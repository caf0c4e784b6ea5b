package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tailtrigger/tailtrigger/internal/watcher"
)

const (
	defaultConfigDir  = "~/.tailtrigger"
	defaultConfigFile = "config.yaml"
	defaultStoreFile  = "data/events.db"
)

// Config is the CLI configuration. Values come from the YAML file when it
// exists, then from TAILTRIGGER_* environment variables; flags override both.
type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

type WatchConfig struct {
	Directory    string        `yaml:"directory" env:"TAILTRIGGER_DIRECTORY"`
	File         string        `yaml:"file" env:"TAILTRIGGER_FILE"`
	Lines        int           `yaml:"lines" env:"TAILTRIGGER_LINES" env-default:"0" validate:"min=0"`
	Deduplicate  bool          `yaml:"deduplicate" env:"TAILTRIGGER_DEDUPLICATE"`
	Reader       string        `yaml:"reader" env:"TAILTRIGGER_READER" env-default:"exec" validate:"oneof=exec notify tail poll"`
	Lenient      bool          `yaml:"lenient" env:"TAILTRIGGER_LENIENT"`
	TailBinary   string        `yaml:"tail_binary" env:"TAILTRIGGER_TAIL_BINARY" env-default:"tail"`
	PollInterval time.Duration `yaml:"poll_interval" env:"TAILTRIGGER_POLL_INTERVAL" env-default:"250ms" validate:"gte=0"`
}

type OutputConfig struct {
	Format string `yaml:"format" env:"TAILTRIGGER_FORMAT" env-default:"json" validate:"oneof=json text"`
	Store  string `yaml:"store" env:"TAILTRIGGER_STORE"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TAILTRIGGER_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"TAILTRIGGER_LOG_FORMAT" env-default:"text" validate:"oneof=json text"`
}

var validate = validator.New()

// Load reads path, or the default config file when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := os.Stat(resolved); err == nil {
		if err := cleanenv.ReadConfig(resolved, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) && !explicit {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints. It does not check the watch target,
// which is the watcher's concern.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WatcherConfig maps the watch section onto a watcher.Config.
func (c *Config) WatcherConfig() (watcher.Config, error) {
	// A blank directory is left for the watcher to reject.
	var dir string
	if strings.TrimSpace(c.Watch.Directory) != "" {
		expanded, err := expandPath(c.Watch.Directory)
		if err != nil {
			return watcher.Config{}, err
		}
		dir = expanded
	}
	policy := watcher.DiagnosticsFatal
	if c.Watch.Lenient {
		policy = watcher.DiagnosticsLog
	}
	return watcher.Config{
		Directory:    dir,
		Target:       c.Watch.File,
		SeedLines:    c.Watch.Lines,
		Deduplicate:  c.Watch.Deduplicate,
		Diagnostics:  policy,
		TailBinary:   c.Watch.TailBinary,
		PollInterval: c.Watch.PollInterval,
	}, nil
}

// StorePath returns the expanded event store path, or "" when storing is off.
func (c *Config) StorePath() (string, error) {
	if strings.TrimSpace(c.Output.Store) == "" {
		return "", nil
	}
	return expandPath(c.Output.Store)
}

// DefaultConfigPath is ~/.tailtrigger/config.yaml.
func DefaultConfigPath() string {
	return defaultConfigDir + "/" + defaultConfigFile
}

// DefaultStorePath is ~/.tailtrigger/data/events.db, expanded.
func DefaultStorePath() string {
	p, err := expandPath(defaultConfigDir + "/" + defaultStoreFile)
	if err != nil {
		return defaultStoreFile
	}
	return p
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
