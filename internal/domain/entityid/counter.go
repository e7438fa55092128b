package entityid

import (
	"math"
	"sync"
	"time"
)

// Clock supplies wall-clock time to the counter.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// CounterState is the persisted part of a Counter.
type CounterState struct {
	LastGeneratedMonths uint16 `json:"last_generated_months"`
	CountInMonth        uint32 `json:"count_in_month"`
}

// MonthsSinceEpoch converts t to whole months since January of EpochYear (UTC).
func MonthsSinceEpoch(t time.Time) (uint16, error) {
	t = t.UTC()
	if t.Year() < EpochYear {
		return 0, ErrClockBeforeEpoch
	}
	months := (t.Year()-EpochYear)*12 + int(t.Month()) - 1
	if months > math.MaxUint16 {
		return 0, ErrYearRange
	}
	return uint16(months), nil
}

// Counter hands out sequence numbers that restart at 1 each month.
// It is safe for concurrent use.
type Counter struct {
	mu    sync.Mutex
	state CounterState
}

// Next returns a fresh version-1 ID for the month containing now.
func (c *Counter) Next(now time.Time) (ID, error) {
	months, err := MonthsSinceEpoch(now)
	if err != nil {
		return ID{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if months > c.state.LastGeneratedMonths {
		c.state = CounterState{LastGeneratedMonths: months}
	}
	if months < c.state.LastGeneratedMonths {
		// Clock went backwards; keep issuing in the newest month seen.
		months = c.state.LastGeneratedMonths
	}
	if c.state.CountInMonth == math.MaxUint32 {
		return ID{}, ErrCounterExhausted
	}
	c.state.CountInMonth++
	return ID{months: months, number: c.state.CountInMonth, version: 1}, nil
}

// Observe advances the counter so that it never issues id again.
// Ids older than the current state are ignored.
func (c *Counter) Observe(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case id.months > c.state.LastGeneratedMonths:
		c.state = CounterState{LastGeneratedMonths: id.months, CountInMonth: id.number}
	case id.months == c.state.LastGeneratedMonths && id.number > c.state.CountInMonth:
		c.state.CountInMonth = id.number
	}
}

// State returns a copy of the current state.
func (c *Counter) State() CounterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Restore replaces the state wholesale, typically from a snapshot.
func (c *Counter) Restore(s CounterState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}
