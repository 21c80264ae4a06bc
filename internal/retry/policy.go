package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy computes backoff delays and retry decisions. It holds no mutable
// state and may be shared by any number of goroutines.
type Policy struct {
	cfg        Config
	classifier Classifier
	random     func() float64
}

// Option customises a Policy.
type Option func(*Policy)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithRandom replaces the jitter source. fn must return values in [0, 1)
// and be safe for concurrent use.
func WithRandom(fn func() float64) Option {
	return func(p *Policy) {
		if fn != nil {
			p.random = fn
		}
	}
}

// NewPolicy creates a Policy from cfg. It returns an error if cfg is invalid.
func NewPolicy(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Policy{
		cfg:        cfg,
		classifier: NewDefaultClassifier(),
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DefaultPolicy returns a Policy built from DefaultConfig.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(DefaultConfig())
	return p
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// MaxRetries returns the retry budget.
func (p *Policy) MaxRetries() int {
	return p.cfg.MaxRetries
}

// DelayForAttempt returns the wait before retry number attempt (zero-based):
// BaseDelay * BackoffMultiplier^attempt, capped at MaxDelay. With jitter
// enabled the capped value is scaled by a uniform factor in
// [1-JitterFactor, 1+JitterFactor] and capped again. Negative attempts are
// treated as zero.
func (p *Policy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	maxDelay := float64(p.cfg.MaxDelay)
	delay := float64(p.cfg.BaseDelay) * math.Pow(p.cfg.BackoffMultiplier, float64(attempt))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > maxDelay {
		delay = maxDelay
	}

	if p.cfg.JitterEnabled && p.cfg.JitterFactor > 0 {
		factor := 1 + p.cfg.JitterFactor*(2*p.random()-1)
		delay *= factor
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return time.Duration(delay)
}

// Classify returns the classifier's verdict for errorText.
func (p *Policy) Classify(errorText string) Classification {
	return p.classifier.Classify(errorText)
}

// ShouldRetry reports whether an error described by errorText is worth
// retrying. Empty or unrecognised text is retryable.
func (p *Policy) ShouldRetry(errorText string) bool {
	return p.Classify(errorText).Retryable()
}

// ShouldRetryError is ShouldRetry for an error value; a nil error is retryable.
func (p *Policy) ShouldRetryError(err error) bool {
	if err == nil {
		return true
	}
	return p.ShouldRetry(err.Error())
}
