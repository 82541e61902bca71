package monitor

import "time"

// Clock abstracts the timers the controller waits on.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// Ticker is the subset of time.Ticker the poll loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock uses the time package.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
