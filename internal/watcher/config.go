package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTailBinary   = "tail"
	DefaultPollInterval = 250 * time.Millisecond
)

// DiagnosticsPolicy decides what a session does with reader diagnostic output
type DiagnosticsPolicy int

const (
	// DiagnosticsFatal ends the session on the first diagnostic.
	DiagnosticsFatal DiagnosticsPolicy = iota
	// DiagnosticsLog logs diagnostics and keeps the stream running.
	DiagnosticsLog
)

// Config describes one watch session. It is not modified once a session starts.
// Lines have no length limit with any reader; a line is held in memory until
// its "\n" arrives.
type Config struct {
	Directory   string
	Target      string
	SeedLines   int
	Deduplicate bool

	Diagnostics  DiagnosticsPolicy
	TailBinary   string
	PollInterval time.Duration
}

// Path joins Directory and Target with a single separator.
// The result may still contain glob or shell expression characters.
func (c Config) Path() string {
	return c.dirPrefix() + c.target()
}

func (c Config) dirPrefix() string {
	dir := c.Directory
	if !strings.HasSuffix(dir, "/") && !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}
	return dir
}

func (c Config) target() string {
	return strings.TrimLeft(c.Target, `/\`)
}

// Validate rejects configs that cannot describe a followable path.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Directory) == "" {
		return fmt.Errorf("%w: directory is empty", ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("%w: target is empty", ErrConfigInvalid)
	}
	if c.SeedLines < 0 {
		return fmt.Errorf("%w: seed line count %d is negative", ErrConfigInvalid, c.SeedLines)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval %s is negative", ErrConfigInvalid, c.PollInterval)
	}
	info, err := os.Stat(filepath.Clean(c.Directory))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfigInvalid, c.Directory)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.TailBinary == "" {
		c.TailBinary = DefaultTailBinary
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}
