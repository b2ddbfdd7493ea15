package escape

import (
	"context"
	"sync"
	"time"
)

// Ticker drives Run.Tick on an interval until stopped, cancelled, or the run ends
type Ticker struct {
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartTicker launches the countdown goroutine. onTick, if set, receives the
// state after every tick that changed it.
func StartTicker(ctx context.Context, run *Run, interval time.Duration, onTick func(State)) *Ticker {
	t := &Ticker{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			case <-ticker.C:
				// a Stop racing with the tick wins
				select {
				case <-t.stopCh:
					return
				default:
				}
				if !run.Tick() {
					return
				}
				if onTick != nil {
					onTick(run.State())
				}
				if run.Finished() {
					return
				}
			}
		}
	}()

	return t
}

// Stop halts the ticker and waits for the goroutine to exit. Safe to call
// more than once and from any goroutine other than onTick.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.done
}

// Done is closed once the goroutine has exited
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}
