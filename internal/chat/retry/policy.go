package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounded exponential reconnect policy.
// Delay for attempt n is min(base*2^n, max), after maxAttempts Next reports false.
// Not safe for concurrent use.
type Policy struct {
	b           backoff.BackOff
	maxAttempts int
	attempt     int
}

// NewPolicy create a Policy, base doubles each attempt and is capped at max
func NewPolicy(maxAttempts int, base, max time.Duration) *Policy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = max
	exp.MaxElapsedTime = 0
	exp.Reset()

	if maxAttempts < 0 {
		maxAttempts = 0
	}

	return &Policy{
		b:           backoff.WithMaxRetries(exp, uint64(maxAttempts)),
		maxAttempts: maxAttempts,
	}
}

// Next delay before the next attempt; false once attempts are exhausted
func (p *Policy) Next() (time.Duration, bool) {
	if p.attempt >= p.maxAttempts {
		return 0, false
	}
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	p.attempt++
	return d, true
}

// Attempt number of delays handed out since the last Reset
func (p *Policy) Attempt() int {
	return p.attempt
}

// Exhausted no attempts left
func (p *Policy) Exhausted() bool {
	return p.attempt >= p.maxAttempts
}

// MaxAttempts configured limit
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Reset back to attempt 0 (successful connect, manual retry)
func (p *Policy) Reset() {
	p.attempt = 0
	p.b.Reset()
}
