package looper

import (
	"sync"
	"time"
)

// Timer fires f every d until the returned stop is called. Stop must be
// safe to call more than once and from inside f.
type Timer interface {
	Every(d time.Duration, f func()) (stop func())
}

// TickerTimer is the Timer backed by time.Ticker.
type TickerTimer struct{}

func (TickerTimer) Every(d time.Duration, f func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
