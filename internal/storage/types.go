package storage

import (
	"errors"
	"time"
)

var (
	ErrLockTimeout = errors.New("storage lock timeout")
	ErrClosed      = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file" (or "json"): JSON document at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty, "file" is used.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	LockTimeout time.Duration // 0 means DefaultLockTimeout
}

const (
	DefaultPath        = "./tasks.json"
	DefaultLockTimeout = 5 * time.Second
)

// record is the persisted shape shared by both drivers.
// Times are RFC3339 with nanoseconds.
type record struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	Priority      int     `json:"priority"`
	AddedTime     string  `json:"added_time"`
	Status        string  `json:"status"`
	CompletedTime *string `json:"completed_time,omitempty"`
	Error         string  `json:"error,omitempty"`
}
