package clock

import (
	"sync"
	"time"
)

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

// CancelFunc stops a tick subscription. Calling it more than once is a no-op.
type CancelFunc func()

// Ticker schedules a repeating callback.
type Ticker interface {
	Clock
	Every(interval time.Duration, fn func(time.Time)) CancelFunc
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) Every(interval time.Duration, fn func(time.Time)) CancelFunc {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	stopCh := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case tickTime := <-ticker.C:
				fn(tickTime.UTC())
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
	}
}
