package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/convert"
)

// Config holds the dispatch worker settings.
type Config struct {
	// WorkerID identifies this instance in row leases.
	WorkerID string

	PollInterval      time.Duration
	BatchSize         int
	RateLimitPerSec   float64
	Burst             int
	WorkerConcurrency int
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration

	// LeaseDuration is how long a claimed row stays invisible to other workers.
	// The broker lease must be at least as long.
	LeaseDuration time.Duration
	// SendTimeout bounds one channel send. It is capped at half the lease so
	// a send ends before another worker may claim the row.
	SendTimeout time.Duration
	// ReadBlock bounds how long a cycle waits on the broker.
	ReadBlock time.Duration

	// Channel and Locale are passed to the renderer.
	Channel string
	Locale  string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		BatchSize:         50,
		RateLimitPerSec:   20,
		Burst:             20,
		WorkerConcurrency: 4,
		MaxAttempts:       5,
		RetryBaseDelay:    5 * time.Second,
		RetryMaxDelay:     10 * time.Minute,
		LeaseDuration:     time.Minute,
		ReadBlock:         500 * time.Millisecond,
		Channel:           "chat",
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.WorkerID == "" {
		c.WorkerID = "dispatch-" + uuid.NewString()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = d.RateLimitPerSec
	}
	if c.Burst <= 0 {
		c.Burst = max(1, int(c.RateLimitPerSec))
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = d.WorkerConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = max(d.RetryMaxDelay, c.RetryBaseDelay)
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = d.LeaseDuration
	}
	if c.SendTimeout <= 0 || c.SendTimeout > c.LeaseDuration/2 {
		c.SendTimeout = c.LeaseDuration / 2
	}
	if c.ReadBlock < 0 {
		c.ReadBlock = 0
	}
	if c.Channel == "" {
		c.Channel = d.Channel
	}
	return c
}

// Backoff returns min(base * 2^attempts, max).
func (c Config) Backoff(attempts int) time.Duration {
	c = c.normalize()
	shift := convert.IntToUintClamped(attempts)
	if shift >= 32 {
		return c.RetryMaxDelay
	}
	backoff := c.RetryBaseDelay * time.Duration(uint64(1)<<shift)
	if backoff <= 0 || backoff > c.RetryMaxDelay {
		return c.RetryMaxDelay
	}
	return backoff
}
