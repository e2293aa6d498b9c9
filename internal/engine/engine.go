package engine

import (
	"sync/atomic"
	"time"

	"github.com/tbscout/scout/internal/config"
	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/events"
	"github.com/tbscout/scout/internal/logging"
	"github.com/tbscout/scout/internal/templates"
	"github.com/tbscout/scout/internal/tracker"
	"github.com/tbscout/scout/internal/window"
)

// CycleRecorder persists completed detection cycles. Satisfied by
// history.Recorder; nil disables recording.
type CycleRecorder interface {
	RecordCycle(startedAt time.Time, duration time.Duration, frameW, frameH, rawCount int, matches []tracker.TrackedMatch) error
}

// Engine owns one detection pipeline: capture, match, group, track, publish.
// A single Engine instance carries all state; nothing here is global.
type Engine struct {
	cfg      *config.Config
	store    *templates.Store
	matcher  *cv.Matcher
	tracked  *tracker.Tracker
	coords   *window.CoordinateTracker
	source   cv.FrameSource
	bus      events.EventBus
	recorder CycleRecorder
	log      *logging.Logger

	captureStatus *logging.StatusReporter
	busy          atomic.Bool
}

// New assembles an engine from its collaborators. bus and recorder may be
// nil; store, matcher, tracked, coords and source may not.
func New(cfg *config.Config, store *templates.Store, matcher *cv.Matcher, tracked *tracker.Tracker, coords *window.CoordinateTracker, source cv.FrameSource, bus events.EventBus, recorder CycleRecorder, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewLogger("engine")
	}
	return &Engine{
		cfg:           cfg,
		store:         store,
		matcher:       matcher,
		tracked:       tracked,
		coords:        coords,
		source:        source,
		bus:           bus,
		recorder:      recorder,
		log:           log,
		captureStatus: logging.NewStatusReporter(log, "frame capture"),
	}
}

// Snapshot returns the current tracked match set.
func (e *Engine) Snapshot() []tracker.TrackedMatch {
	return e.tracked.Snapshot()
}

// RunDetectionCycle performs one full capture → match → group → track pass.
// Returns false when a previous cycle is still running; overlapping requests
// are skipped, never queued.
func (e *Engine) RunDetectionCycle() bool {
	if !e.busy.CompareAndSwap(false, true) {
		return false
	}
	defer e.busy.Store(false)

	started := time.Now()

	frame, err := e.source.CaptureFrame()
	if err != nil {
		// Transient by contract: tracked state is left untouched so a
		// momentary capture glitch does not blank the overlay.
		if e.captureStatus.Failure(err) {
			e.publish(events.NewCaptureFailedEvent(err))
		}
		return true
	}
	if recovered, failures := e.captureStatus.Success(); recovered {
		e.publish(events.NewCaptureRecoveredEvent(failures))
	}

	gray := cv.ToGray(frame)

	// While the window is in motion the frame content smears; raise the
	// floor so only strong correlations survive.
	floor := 0.0
	if e.coords != nil && e.coords.IsMoving() {
		floor = e.cfg.StrictThreshold
	}

	raw := e.matcher.FindMatches(gray, e.store.All(), e.cfg.ConfidenceThreshold, floor)
	groups := tracker.Group(raw, e.cfg.DistanceThreshold, e.log)
	e.tracked.Merge(groups)

	snapshot := e.tracked.Snapshot()
	bounds := frame.Bounds()
	e.publish(events.NewMatchUpdatedEvent(len(snapshot), len(raw), bounds.Dx(), bounds.Dy()))

	if e.recorder != nil {
		if err := e.recorder.RecordCycle(started, time.Since(started), bounds.Dx(), bounds.Dy(), len(raw), snapshot); err != nil {
			e.log.Error("failed to record detection cycle", err)
		}
	}

	e.log.Debugf("cycle done in %s: %d raw, %d tracked", time.Since(started).Round(time.Millisecond), len(raw), len(snapshot))
	return true
}

// ReloadTemplates re-reads the template directory and announces the result.
func (e *Engine) ReloadTemplates() error {
	count, err := e.store.Reload()
	if err != nil {
		return err
	}
	e.publish(events.NewTemplatesReloadedEvent(count, e.cfg.TemplatesDir))
	return nil
}

// clearState drops all tracked matches and window knowledge, used on stop
// and on window loss.
func (e *Engine) clearState() {
	e.tracked.Clear()
	if e.coords != nil {
		e.coords.Reset()
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
