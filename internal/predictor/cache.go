package predictor

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so the same-day cache can be tested with a
// fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DayCache holds at most one prediction result, keyed by the calendar day it
// was computed on (wall-clock date of computation, not the predicted date).
// A new calendar day invalidates it unconditionally. The mutex makes
// concurrent triggers safe even though the design assumes one in-flight call.
type DayCache struct {
	mu  sync.Mutex
	day string
	res *Resultado
}

func NewDayCache() *DayCache {
	return &DayCache{}
}

// Get returns the cached result when it was computed on the given day.
func (c *DayCache) Get(day string) (*Resultado, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil || c.day != day {
		return nil, false
	}
	return c.res, true
}

// Put stores a result for the given computation day, superseding any
// previous entry.
func (c *DayCache) Put(day string, res *Resultado) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = day
	c.res = res
}
