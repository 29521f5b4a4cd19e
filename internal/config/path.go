package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns where detailq keeps its journal when nothing is
// configured. DETAILQ_DATA_DIR wins, then XDG_DATA_HOME, then /var/lib when
// writable, then a dotdir in the user's home directory.
func DefaultDataDir() string {
	if v := os.Getenv("DETAILQ_DATA_DIR"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "detailq")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	if isWritableDir("/var/lib") {
		return "/var/lib/detailq"
	}
	return filepath.Join(homeDir, ".detailq")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// isWritableDir tests path by creating and removing a temp file.
func isWritableDir(path string) bool {
	if !isDir(path) {
		return false
	}
	f, err := os.CreateTemp(path, ".detailq-write-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
