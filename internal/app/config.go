package app

import (
	"errors"
	"fmt"
	"time"
)

// Radio transports a simulation can run on.
const (
	RadioMemory   = "mem"
	RadioSocketIO = "socketio"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TopologyPath string // hcl files

	LogFormat       string
	LogLevel        string
	LogFile         string
	HealthcheckPort int

	// CacheDB is the sqlite file backing the node configuration caches.
	// Empty keeps the caches in memory.
	CacheDB  string
	Radio    string
	RadioURL string
	// TimeUnit overrides the protocol time unit of the topology.
	TimeUnit time.Duration
	// Duration bounds the simulation. Zero runs until the context ends.
	Duration time.Duration
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.TopologyPath == "" {
		return nil, errors.New("TopologyPath is a required configuration field and cannot be empty")
	}
	if cfg.Radio == "" {
		cfg.Radio = RadioMemory
	}
	switch cfg.Radio {
	case RadioMemory:
	case RadioSocketIO:
		if cfg.RadioURL == "" {
			return nil, errors.New("RadioURL is required for the socketio radio")
		}
	default:
		return nil, fmt.Errorf("unknown radio %q", cfg.Radio)
	}
	if cfg.TimeUnit < 0 {
		return nil, fmt.Errorf("TimeUnit must not be negative, got %s", cfg.TimeUnit)
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("Duration must not be negative, got %s", cfg.Duration)
	}
	return &cfg, nil
}
