// Package clock provides the wall time and slot source of the engine
package clock

import (
	"sync"
	"time"
)

// Clock is the time source consumed by the processors. Now is a unix
// timestamp in seconds and Slot a monotonic counter derived from it.
type Clock interface {
	Now() int64
	Slot() uint64
}

// SlotClock derives the slot from the wall clock: one slot every
// SlotDuration since Genesis
type SlotClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
	now          func() time.Time
}

// NewSlotClock creates a SlotClock over the system time
func NewSlotClock(genesis time.Time, slotDuration time.Duration) *SlotClock {
	return &SlotClock{
		Genesis:      genesis,
		SlotDuration: slotDuration,
		now:          time.Now,
	}
}

// Now returns the current unix timestamp
func (c *SlotClock) Now() int64 {
	return c.now().Unix()
}

// Slot returns the number of complete slots since Genesis
func (c *SlotClock) Slot() uint64 {
	elapsed := c.now().Sub(c.Genesis)
	if elapsed < 0 || c.SlotDuration <= 0 {
		return 0
	}
	return uint64(elapsed / c.SlotDuration)
}

// Manual is a Clock controlled by the caller, used in tests and replays
type Manual struct {
	rw   sync.RWMutex
	now  int64
	slot uint64
}

// NewManual creates a Manual clock at the given time and slot
func NewManual(now int64, slot uint64) *Manual {
	return &Manual{now: now, slot: slot}
}

// Now implements Clock
func (m *Manual) Now() int64 {
	m.rw.RLock()
	defer m.rw.RUnlock()
	return m.now
}

// Slot implements Clock
func (m *Manual) Slot() uint64 {
	m.rw.RLock()
	defer m.rw.RUnlock()
	return m.slot
}

// Set moves the clock to now and slot
func (m *Manual) Set(now int64, slot uint64) {
	m.rw.Lock()
	m.now, m.slot = now, slot
	m.rw.Unlock()
}

// Advance moves the clock forward by seconds and one slot
func (m *Manual) Advance(seconds int64) {
	m.rw.Lock()
	m.now += seconds
	m.slot++
	m.rw.Unlock()
}
