package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_DefaultSchedule(t *testing.T) {
	p := NewPolicy(5, time.Second, 30*time.Second)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, i, p.Attempt())
		d, ok := p.Next()
		assert.True(t, ok, "attempt %d", i)
		assert.Equal(t, w, d, "attempt %d", i)
		assert.Equal(t, delay(i, time.Second, 30*time.Second), d)
	}

	// attempt 5 schedules nothing
	d, ok := p.Next()
	assert.False(t, ok)
	assert.Zero(t, d)
	assert.True(t, p.Exhausted())
	assert.Equal(t, 5, p.Attempt())
}

func TestPolicy_CapsAtMax(t *testing.T) {
	p := NewPolicy(8, time.Second, 30*time.Second)

	var got []time.Duration
	for {
		d, ok := p.Next()
		if !ok {
			break
		}
		got = append(got, d)
	}

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestPolicy_Reset(t *testing.T) {
	p := NewPolicy(2, 100*time.Millisecond, time.Second)

	p.Next()
	p.Next()
	_, ok := p.Next()
	assert.False(t, ok)

	p.Reset()
	assert.Equal(t, 0, p.Attempt())
	assert.False(t, p.Exhausted())

	d, ok := p.Next()
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, d)
}

func TestPolicy_ZeroAttempts(t *testing.T) {
	p := NewPolicy(0, time.Second, time.Minute)

	_, ok := p.Next()
	assert.False(t, ok)
	assert.True(t, p.Exhausted())
}

func TestPolicy_MatchesClosedForm(t *testing.T) {
	p := NewPolicy(7, time.Second, 30*time.Second)
	assert.Equal(t, 7, p.MaxAttempts())

	for n, want := range []time.Duration{1000, 2000, 4000, 8000, 16000, 30000, 30000} {
		assert.Equal(t, want*time.Millisecond, delay(n, time.Second, 30*time.Second), "n=%d", n)
		d, ok := p.Next()
		assert.True(t, ok)
		assert.Equal(t, want*time.Millisecond, d, "n=%d", n)
	}
	assert.True(t, p.Exhausted())
}

// delay closed form of the schedule for attempt n
func delay(n int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < n && d < max; i++ {
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
