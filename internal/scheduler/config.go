package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls scheduler cadence and per-job timeouts.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	// LookbackDays is how many past days the materialize job revisits each
	// run, so late-arriving events still land in their day's aggregates.
	LookbackDays int
	EnabledJobs  []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  time.Hour,
		JobTimeout:   10 * time.Minute,
		LookbackDays: 1,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaults.LookbackDays
	}
	return c
}

// ProvideConfig reads scheduler settings from the environment.
func ProvideConfig() Config {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Enabled = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_RUN_INTERVAL")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.RunInterval = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_JOB_TIMEOUT")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.JobTimeout = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_LOOKBACK_DAYS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.LookbackDays = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); value != "" {
		for _, job := range strings.Split(value, ",") {
			job = strings.TrimSpace(job)
			if job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg.withDefaults()
}
