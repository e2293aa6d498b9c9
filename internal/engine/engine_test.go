package engine

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tbscout/scout/internal/config"
	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/events"
	"github.com/tbscout/scout/internal/templates"
	"github.com/tbscout/scout/internal/tracker"
	"github.com/tbscout/scout/internal/window"
)

// recordingBus collects published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Subscribe(events.EventType, events.EventHandler) events.SubscriptionID {
	return 0
}
func (b *recordingBus) Unsubscribe(events.SubscriptionID) {}
func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}
func (b *recordingBus) PublishAsync(ev events.Event) { b.Publish(ev) }
func (b *recordingBus) Stop()                        {}

func (b *recordingBus) count(t events.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// fakeSource serves a scripted frame, or an error when frame is nil.
type fakeSource struct {
	mu    sync.Mutex
	frame *image.RGBA
	err   error
}

func (s *fakeSource) CaptureFrame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *fakeSource) set(frame *image.RGBA, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.err = err
}

// fakeLocator scripts window presence for CoordinateTracker.
type fakeLocator struct {
	rect window.Rect
}

func (f *fakeLocator) FindWindow(string) (window.Handle, error) { return 1, nil }
func (f *fakeLocator) ClientRect(window.Handle) (window.Rect, error) {
	return f.rect, nil
}
func (f *fakeLocator) DPIScale(window.Handle) float64 { return 1.0 }

// noiseRGBA builds a deterministic frame whose grayscale conversion is exact
// (equal R, G and B channels).
func noiseRGBA(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	s := seed
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s = s*1664525 + 1013904223
			v := uint8(s >> 24)
			i := img.PixOffset(x, y)
			img.Pix[i] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 255
		}
	}
	return img
}

// patchRGBA extracts a sub-rectangle as a standalone image.
func patchRGBA(src *image.RGBA, x, y, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			out.Set(dx, dy, src.At(x+dx, y+dy))
		}
	}
	return out
}

// writeTemplateDir encodes the patch as the single template in a fresh
// directory and returns a loaded store.
func writeTemplateDir(t *testing.T, patch *image.RGBA) *templates.Store {
	t.Helper()
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "target.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, patch); err != nil {
		f.Close()
		t.Fatal(err)
	}
	f.Close()

	store := templates.NewStore(nil)
	if _, err := store.Load(dir); err != nil {
		t.Fatal(err)
	}
	return store
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.WindowTitle = "game"
	cfg.ConfidenceThreshold = 0.8
	cfg.StrictThreshold = 0.85
	cfg.DistanceThreshold = 50
	cfg.MatchPersistence = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, source cv.FrameSource, coords *window.CoordinateTracker, bus events.EventBus) *Engine {
	t.Helper()
	frame := noiseRGBA(120, 120, 42)
	store := writeTemplateDir(t, patchRGBA(frame, 30, 30, 20, 20))
	tracked := tracker.NewTracker(cfg.MatchPersistence, cfg.DistanceThreshold, nil)
	matcher := cv.NewMatcher(cv.DefaultOptions(), nil)
	return New(cfg, store, matcher, tracked, coords, source, bus, nil, nil)
}

func TestDetectionCycleTracksPlantedTemplate(t *testing.T) {
	frame := noiseRGBA(120, 120, 42)
	source := &fakeSource{frame: frame}
	bus := &recordingBus{}

	eng := newTestEngine(t, testConfig(), source, nil, bus)

	if !eng.RunDetectionCycle() {
		t.Fatal("cycle reported as skipped")
	}

	snap := eng.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("%d tracked matches, want 1", len(snap))
	}
	m := snap[0]
	if m.Current.TemplateName != "target" {
		t.Errorf("tracked %q, want %q", m.Current.TemplateName, "target")
	}
	if m.Current.X != 30 || m.Current.Y != 30 {
		t.Errorf("tracked at (%d, %d), want (30, 30)", m.Current.X, m.Current.Y)
	}
	if m.Tier != tracker.TierHigh {
		t.Errorf("tier = %q, want high", m.Tier)
	}

	if bus.count(events.EventTypeMatchUpdated) != 1 {
		t.Errorf("match.updated events = %d, want 1", bus.count(events.EventTypeMatchUpdated))
	}
}

func TestCaptureFailureLeavesStateAndCoalesces(t *testing.T) {
	frame := noiseRGBA(120, 120, 42)
	source := &fakeSource{frame: frame}
	bus := &recordingBus{}

	eng := newTestEngine(t, testConfig(), source, nil, bus)
	eng.RunDetectionCycle()
	if len(eng.Snapshot()) != 1 {
		t.Fatal("setup: planted template not tracked")
	}

	// Capture starts failing. Tracked state survives untouched and the
	// failure streak surfaces as a single event.
	source.set(nil, cv.ErrCaptureUnavailable)
	for i := 0; i < 5; i++ {
		if !eng.RunDetectionCycle() {
			t.Fatalf("cycle %d reported as skipped", i)
		}
	}

	if len(eng.Snapshot()) != 1 {
		t.Errorf("%d tracked after capture failures, want state preserved", len(eng.Snapshot()))
	}
	if got := bus.count(events.EventTypeCaptureFailed); got != 1 {
		t.Errorf("capture.failed events = %d, want 1 for the whole streak", got)
	}

	// Recovery publishes exactly one event.
	source.set(frame, nil)
	eng.RunDetectionCycle()
	eng.RunDetectionCycle()
	if got := bus.count(events.EventTypeCaptureRecovered); got != 1 {
		t.Errorf("capture.recovered events = %d, want 1", got)
	}
}

func TestMovingWindowRaisesThreshold(t *testing.T) {
	frame := noiseRGBA(120, 120, 42)
	patch := patchRGBA(frame, 30, 30, 20, 20)

	// Degrade the planted region so it correlates clearly below the strict
	// threshold but above the configured one.
	degraded := noiseRGBA(120, 120, 42)
	for dy := 0; dy < 20; dy++ {
		for dx := 0; dx < 20; dx += 8 {
			i := degraded.PixOffset(30+dx, 30+dy)
			degraded.Pix[i] = 255 - degraded.Pix[i]
			degraded.Pix[i+1] = 255 - degraded.Pix[i+1]
			degraded.Pix[i+2] = 255 - degraded.Pix[i+2]
		}
	}

	cfg := testConfig()
	cfg.ConfidenceThreshold = 0.2
	cfg.StrictThreshold = 0.99

	loc := &fakeLocator{rect: window.Rect{Left: 0, Top: 0, Right: 120, Bottom: 120}}
	coords := window.NewCoordinateTracker(loc, "game", time.Second, nil)

	source := &fakeSource{frame: degraded}
	store := writeTemplateDir(t, patch)
	tracked := tracker.NewTracker(cfg.MatchPersistence, cfg.DistanceThreshold, nil)
	eng := New(cfg, store, cv.NewMatcher(cv.DefaultOptions(), nil), tracked, coords, source, nil, nil, nil)

	// Stationary window: the degraded copy clears the loose threshold.
	if _, err := coords.Refresh(); err != nil {
		t.Fatal(err)
	}
	eng.RunDetectionCycle()
	if len(eng.Snapshot()) != 1 {
		t.Fatalf("stationary: %d tracked, want 1", len(eng.Snapshot()))
	}

	// Drag the window; strictness kicks in and the weak match is rejected,
	// then ages out of the tracked set.
	loc.rect = window.Rect{Left: 40, Top: 0, Right: 160, Bottom: 120}
	if change, _ := coords.Refresh(); change != window.ChangeMoved {
		t.Fatal("scripted move not observed")
	}
	if !coords.IsMoving() {
		t.Fatal("window not reported as moving")
	}

	eng.RunDetectionCycle()
	eng.RunDetectionCycle()
	if got := len(eng.Snapshot()); got != 0 {
		t.Errorf("moving: %d tracked, want 0 under strict threshold", got)
	}
}

func TestOverlappingCyclesAreSkipped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	source := &blockingSource{started: started, release: release}

	eng := newTestEngine(t, testConfig(), source, nil, &recordingBus{})

	done := make(chan bool)
	go func() { done <- eng.RunDetectionCycle() }()

	<-started // first cycle is mid-capture
	if eng.RunDetectionCycle() {
		t.Error("overlapping cycle ran instead of being skipped")
	}

	close(release)
	if ran := <-done; !ran {
		t.Error("first cycle reported as skipped")
	}
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) CaptureFrame() (*image.RGBA, error) {
	s.started <- struct{}{}
	<-s.release
	return nil, cv.ErrCaptureUnavailable
}

func TestReloadTemplatesPublishesEvent(t *testing.T) {
	frame := noiseRGBA(120, 120, 42)
	bus := &recordingBus{}
	eng := newTestEngine(t, testConfig(), &fakeSource{frame: frame}, nil, bus)

	if err := eng.ReloadTemplates(); err != nil {
		t.Fatalf("ReloadTemplates: %v", err)
	}
	if got := bus.count(events.EventTypeTemplatesReloaded); got != 1 {
		t.Errorf("templates.reloaded events = %d, want 1", got)
	}
}
