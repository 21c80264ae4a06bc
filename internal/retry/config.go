package retry

import (
	"errors"
	"time"
)

// Config holds the immutable parameters of a retry policy.
type Config struct {
	// MaxRetries is the number of re-attempts allowed after the first attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// BackoffMultiplier scales the delay for each subsequent attempt.
	BackoffMultiplier float64

	// MaxDelay caps every computed delay, jitter included.
	MaxDelay time.Duration

	// JitterEnabled perturbs delays by up to JitterFactor in either direction.
	JitterEnabled bool

	// JitterFactor is the relative jitter amplitude; 0.1 means ±10%.
	JitterFactor float64
}

// DefaultConfig returns a Config that yields roughly 5s, 10s, 20s ... capped at 60s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         5 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          60 * time.Second,
		JitterEnabled:     true,
		JitterFactor:      0.1,
	}
}

// Config validation errors.
var (
	ErrNegativeRetries   = errors.New("max retries cannot be negative")
	ErrInvalidBaseDelay  = errors.New("base delay must be positive")
	ErrInvalidMultiplier = errors.New("backoff multiplier must be at least 1")
	ErrInvalidMaxDelay   = errors.New("max delay must not be below base delay")
	ErrInvalidJitter     = errors.New("jitter factor must be within [0, 1]")
)

// Validate checks the relationships between fields.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return ErrNegativeRetries
	case c.BaseDelay <= 0:
		return ErrInvalidBaseDelay
	case c.BackoffMultiplier < 1:
		return ErrInvalidMultiplier
	case c.MaxDelay < c.BaseDelay:
		return ErrInvalidMaxDelay
	case c.JitterFactor < 0 || c.JitterFactor > 1:
		return ErrInvalidJitter
	}
	return nil
}
