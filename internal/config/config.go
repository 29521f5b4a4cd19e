package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rzbill/detailq/internal/detail"
	pebblestore "github.com/rzbill/detailq/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// WorkFile is the detail working file to consume. Required.
	WorkFile      string `json:"workFile"`
	MaxRecordSize int    `json:"maxRecordSize"`
	BufferSize    int    `json:"bufferSize"`
	// Fsync is "always" or "never".
	Fsync string `json:"fsync"`
	// JournalDir holds the acknowledgment journal; empty uses DefaultDataDir()/journal.
	JournalDir string `json:"journalDir"`
	// JournalFsync is "always", "interval" or "never"; empty follows Fsync.
	JournalFsync string `json:"journalFsync"`
	// JournalFsyncIntervalMs is the group-commit window for JournalFsync=interval.
	JournalFsyncIntervalMs int `json:"journalFsyncIntervalMs"`
	PollMinMs              int `json:"pollMinMs"`
	PollMaxMs              int `json:"pollMaxMs"`
	// Priorities maps a decimal type code to a priority name (low|normal|high|now).
	// Empty uses the built-in table.
	Priorities map[string]string `json:"priorities"`
	Log        LogConfig         `json:"log"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		MaxRecordSize:          detail.DefaultMaxRecordSize,
		BufferSize:             detail.DefaultMaxRecordSize,
		Fsync:                  "always",
		JournalFsyncIntervalMs: 5,
		PollMinMs:              10,
		PollMaxMs:              1000,
		Log:                    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.WorkFile == "" {
		return errors.New("config: workFile is required")
	}
	if c.MaxRecordSize <= 0 {
		return fmt.Errorf("config: maxRecordSize must be positive, got %d", c.MaxRecordSize)
	}
	if c.BufferSize < c.MaxRecordSize {
		return fmt.Errorf("config: bufferSize %d smaller than maxRecordSize %d", c.BufferSize, c.MaxRecordSize)
	}
	if _, err := c.FsyncMode(); err != nil {
		return err
	}
	if _, _, err := c.JournalSync(); err != nil {
		return err
	}
	if c.PollMinMs <= 0 || c.PollMaxMs < c.PollMinMs {
		return fmt.Errorf("config: invalid poll window %d..%dms", c.PollMinMs, c.PollMaxMs)
	}
	if _, err := c.PriorityTable(); err != nil {
		return err
	}
	return nil
}

// FsyncMode maps the Fsync string to a detail.FsyncMode.
func (c Config) FsyncMode() (detail.FsyncMode, error) {
	switch c.Fsync {
	case "", "always":
		return detail.FsyncModeAlways, nil
	case "never":
		return detail.FsyncModeNever, nil
	default:
		return detail.FsyncModeUnspecified, fmt.Errorf("config: invalid fsync %q; use always|never", c.Fsync)
	}
}

// JournalSync returns the journal's WAL durability and group-commit window.
func (c Config) JournalSync() (pebblestore.FsyncMode, time.Duration, error) {
	mode := c.JournalFsync
	if mode == "" {
		mode = c.Fsync
	}
	m, err := pebblestore.ParseFsyncMode(mode)
	if err != nil {
		return pebblestore.FsyncModeUnspecified, 0, fmt.Errorf("config: invalid journalFsync: %w", err)
	}
	if m == pebblestore.FsyncModeInterval && c.JournalFsyncIntervalMs <= 0 {
		return pebblestore.FsyncModeUnspecified, 0, fmt.Errorf("config: journalFsyncIntervalMs must be positive, got %d", c.JournalFsyncIntervalMs)
	}
	return m, time.Duration(c.JournalFsyncIntervalMs) * time.Millisecond, nil
}

// PriorityTable converts Priorities into the classifier table. It returns nil
// when no priorities are configured so the built-in table applies.
func (c Config) PriorityTable() (map[byte]detail.Priority, error) {
	if len(c.Priorities) == 0 {
		return nil, nil
	}
	table := make(map[byte]detail.Priority, len(c.Priorities))
	for code, name := range c.Priorities {
		n, err := strconv.ParseUint(code, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("config: invalid priority code %q: %w", code, err)
		}
		p, err := detail.ParsePriority(name)
		if err != nil {
			return nil, fmt.Errorf("config: code %s: %w", code, err)
		}
		table[byte(n)] = p
	}
	return table, nil
}

// ResolvedJournalDir returns JournalDir or the default location under the data dir.
func (c Config) ResolvedJournalDir() string {
	if c.JournalDir != "" {
		return c.JournalDir
	}
	return filepath.Join(DefaultDataDir(), "journal")
}
