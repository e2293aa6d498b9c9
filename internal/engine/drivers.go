package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tbscout/scout/internal/events"
	"github.com/tbscout/scout/internal/window"
)

// minTickInterval bounds how fast the detection driver may fire regardless
// of configuration.
const minTickInterval = 16 * time.Millisecond

// Run starts the detection and coordinate drivers and blocks until ctx is
// cancelled. On return all tracked state has been cleared.
func (e *Engine) Run(ctx context.Context) {
	forceDetect := make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.detectionLoop(ctx, forceDetect)
	}()
	go func() {
		defer wg.Done()
		e.coordinateLoop(ctx, forceDetect)
	}()
	wg.Wait()

	e.clearState()
	e.log.Info("engine stopped")
}

// detectionLoop fires full detection cycles at the configured frequency. A
// tick arriving while a cycle is still running is dropped, never queued.
func (e *Engine) detectionLoop(ctx context.Context, forceDetect <-chan struct{}) {
	interval := frequencyInterval(e.cfg.TargetFrequency)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Infof("detection driver started at %.1f Hz", e.cfg.TargetFrequency)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !e.RunDetectionCycle() {
				e.log.Debug("detection tick skipped, previous cycle still running")
			}
			drainTicker(ticker)

		case <-forceDetect:
			// Movement just stopped; refresh matches without waiting for
			// the next scheduled tick.
			e.RunDetectionCycle()
			drainTicker(ticker)
		}
	}
}

// coordinateLoop polls the tracked window's rectangle, speeding up while the
// window is in motion so the overlay follows drags with low latency.
func (e *Engine) coordinateLoop(ctx context.Context, forceDetect chan<- struct{}) {
	if e.coords == nil {
		return
	}

	base := frequencyInterval(e.cfg.CoordFrequency)
	fast := frequencyInterval(e.cfg.CoordFastFreq)

	timer := time.NewTimer(base)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			change, _ := e.coords.Refresh()
			switch change {
			case window.ChangeFound:
				rect, _ := e.coords.Rect()
				e.publish(events.NewWindowFoundEvent(e.cfg.WindowTitle, rect.Width(), rect.Height()))

			case window.ChangeLost:
				e.publish(events.NewWindowLostEvent(e.cfg.WindowTitle))
				e.tracked.Clear()

			case window.ChangeMoved:
				rect, _ := e.coords.Rect()
				e.publish(events.NewWindowMovedEvent(rect.Left, rect.Top, rect.Width(), rect.Height()))

			case window.ChangeStopped:
				select {
				case forceDetect <- struct{}{}:
				default: // one forced pass is already pending
				}
			}

			if e.coords.IsMoving() {
				timer.Reset(fast)
			} else {
				timer.Reset(base)
			}
		}
	}
}

// frequencyInterval converts polls-per-second to a tick interval, clamped to
// the minimum the drivers support.
func frequencyInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 1
	}
	interval := time.Duration(float64(time.Second) / hz)
	if interval < minTickInterval {
		interval = minTickInterval
	}
	return interval
}

// drainTicker discards any tick that accumulated while a cycle ran, so a
// slow cycle is followed by a full interval of idle time instead of an
// immediate catch-up tick.
func drainTicker(t *time.Ticker) {
	select {
	case <-t.C:
	default:
	}
}
