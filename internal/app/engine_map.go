package app

import (
	"tasksched/internal/task/engine"
)

func mapEngineConfig(cfg *Config) (engine.Config, error) {
	if cfg == nil {
		return engine.Config{}, nil
	}
	sc := cfg.Scheduler
	minWork, err := parseDurationField("scheduler.min_work", sc.MinWork)
	if err != nil {
		return engine.Config{}, err
	}
	maxWork, err := parseDurationField("scheduler.max_work", sc.MaxWork)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		MinWork:        minWork,
		MaxWork:        maxWork,
		CharsPerSecond: sc.CharsPerSecond,
		RatePerSec:     sc.RatePerSec,
		Burst:          sc.Burst,
	}, nil
}
