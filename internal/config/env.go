package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// FromEnv overlays DETAILQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DETAILQ_WORK_FILE"); v != "" {
		cfg.WorkFile = v
	}
	if v := os.Getenv("DETAILQ_MAX_RECORD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRecordSize = n
		}
	}
	if v := os.Getenv("DETAILQ_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferSize = n
		}
	}
	if v := os.Getenv("DETAILQ_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("DETAILQ_JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
	if v := os.Getenv("DETAILQ_JOURNAL_FSYNC"); v != "" {
		cfg.JournalFsync = v
	}
	if v := os.Getenv("DETAILQ_JOURNAL_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JournalFsyncIntervalMs = n
		}
	}
	if v := os.Getenv("DETAILQ_POLL_MIN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollMinMs = n
		}
	}
	if v := os.Getenv("DETAILQ_POLL_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollMaxMs = n
		}
	}
	if v := os.Getenv("DETAILQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DETAILQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	// DETAILQ_PRIORITIES=1:high,4:low
	if v := os.Getenv("DETAILQ_PRIORITIES"); v != "" {
		cfg.Priorities = map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			code, name, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok || code == "" {
				continue
			}
			cfg.Priorities[code] = name
		}
	}
}
