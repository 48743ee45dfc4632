package config

// Config is the tasksched configuration file.
//
// Both JSON and YAML (.yaml/.yml) are accepted; unknown keys are rejected.
// Every section may be omitted; see Defaults.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persisted task collection.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./tasks.json" }
//
// Driver is "file" (JSON document, default) or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	LockTimeout string `json:"lock_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls task execution.
//
// All durations are Go duration strings (e.g. "500ms", "3s").
//
// Defaults (when fields are omitted/zero):
//   - min_work: "500ms"
//   - max_work: "3s"
//   - chars_per_second: 20
//   - rate_per_sec: 0 (tasks start back to back)
type SchedulerConfig struct {
	MinWork        string  `json:"min_work,omitempty"`
	MaxWork        string  `json:"max_work,omitempty"`
	CharsPerSecond float64 `json:"chars_per_second,omitempty"`
	RatePerSec     float64 `json:"rate_per_sec,omitempty"`
	Burst          int     `json:"burst,omitempty"`
}
