package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Ticker whose time only moves when told to. Tick callbacks fire
// on Fire, never on their own.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	subs   map[int]func(time.Time)
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start, subs: map[int]func(time.Time){}}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Every(_ time.Duration, fn func(time.Time)) CancelFunc {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Subscriptions reports how many tick callbacks are live.
func (m *Manual) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Fire invokes every live callback once with the current time.
func (m *Manual) Fire() {
	m.mu.Lock()
	now := m.now
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(time.Time), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
}

// AdvanceAndFire moves time forward and delivers one tick.
func (m *Manual) AdvanceAndFire(d time.Duration) {
	m.Advance(d)
	m.Fire()
}
