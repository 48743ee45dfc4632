package app

import (
	"fmt"
	"strings"
	"time"

	"tasksched/internal/storage"
)

func mapStorageConfig(cfg *Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{Driver: "file", Path: storage.DefaultPath, LockTimeout: storage.DefaultLockTimeout}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	lockTimeout, err := parseDurationOrDefault("storage.lock_timeout", sc.LockTimeout, storage.DefaultLockTimeout)
	if err != nil {
		return storage.Config{}, err
	}

	switch driver {
	case "", "file", "json":
		if path == "" {
			path = storage.DefaultPath
		}
		return storage.Config{Driver: "file", Path: path, LockTimeout: lockTimeout}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 1*time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy, LockTimeout: lockTimeout}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
