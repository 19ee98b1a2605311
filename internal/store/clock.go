package store

import (
	"sync"
	"time"
)

// Clock hands out received_at instants. Wall clock, but never decreasing
// within the process, so append order and received_at order always agree.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
