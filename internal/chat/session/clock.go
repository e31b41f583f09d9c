package session

import "time"

// Timer a scheduled callback that can be canceled
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks, swapped out in tests
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock Clock backed by time.AfterFunc
func SystemClock() Clock {
	return systemClock{}
}
