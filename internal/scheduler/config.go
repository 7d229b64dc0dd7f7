package scheduler

import "time"

// Config controls the sweeper cadence.
type Config struct {
	// RunInterval is the pause between full sweeps.
	RunInterval time.Duration
	// JobTimeout bounds a single job execution.
	JobTimeout time.Duration
	// BatchSize caps rows handled per query inside a job.
	BatchSize int
	// LockTTL is how long a redis lock is held before it self-expires.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	return c
}
