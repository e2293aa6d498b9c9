package window

import (
	"math"
	"sync"
	"time"

	"github.com/tbscout/scout/internal/logging"
)

// DefaultMoveCooldown is how long the window must hold still after its last
// observed rectangle change before it counts as stationary again.
const DefaultMoveCooldown = time.Second

// Change describes what a Refresh observed.
type Change int

const (
	ChangeNone Change = iota
	ChangeFound
	ChangeLost
	ChangeMoved
	ChangeStopped
)

func (c Change) String() string {
	switch c {
	case ChangeFound:
		return "found"
	case ChangeLost:
		return "lost"
	case ChangeMoved:
		return "moved"
	case ChangeStopped:
		return "stopped"
	default:
		return "none"
	}
}

// CoordinateTracker follows the tracked window's on-screen position so
// detection coordinates can be mapped between capture space and screen
// space. It re-finds the window after loss and flags movement so the match
// engine can tighten its thresholds while frames are smearing.
type CoordinateTracker struct {
	mu       sync.RWMutex
	locator  Locator
	title    string
	cooldown time.Duration
	log      *logging.Logger

	handle    Handle
	found     bool
	rect      Rect
	dpiScale  float64
	lastMoved time.Time
	moving    bool
}

// NewCoordinateTracker creates a tracker for the first visible window whose
// title contains title.
func NewCoordinateTracker(locator Locator, title string, cooldown time.Duration, log *logging.Logger) *CoordinateTracker {
	if cooldown <= 0 {
		cooldown = DefaultMoveCooldown
	}
	if log == nil {
		log = logging.NewLogger("window")
	}
	return &CoordinateTracker{
		locator:  locator,
		title:    title,
		cooldown: cooldown,
		dpiScale: 1.0,
		log:      log,
	}
}

// Refresh polls the window's current position and reports what changed since
// the previous poll. A lost window is re-found on subsequent calls.
func (t *CoordinateTracker) Refresh() (Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.found {
		h, err := t.locator.FindWindow(t.title)
		if err != nil {
			return ChangeNone, err
		}
		rect, err := t.locator.ClientRect(h)
		if err != nil {
			return ChangeNone, err
		}

		t.handle = h
		t.found = true
		t.rect = rect
		t.dpiScale = t.locator.DPIScale(h)
		t.moving = false
		t.lastMoved = time.Time{}
		t.log.InfoWithContext("window located", map[string]interface{}{
			"title":  t.title,
			"width":  rect.Width(),
			"height": rect.Height(),
			"dpi":    t.dpiScale,
		})
		return ChangeFound, nil
	}

	rect, err := t.locator.ClientRect(t.handle)
	if err != nil {
		t.found = false
		t.moving = false
		t.log.Warnf("window %q lost", t.title)
		return ChangeLost, err
	}

	if rect != t.rect {
		t.rect = rect
		t.lastMoved = time.Now()
		t.moving = true
		return ChangeMoved, nil
	}

	if t.moving && time.Since(t.lastMoved) >= t.cooldown {
		t.moving = false
		return ChangeStopped, nil
	}

	return ChangeNone, nil
}

// IsMoving reports whether the window changed position within the cooldown
// window. Computed from the last observed move so it stays accurate between
// polls.
func (t *CoordinateTracker) IsMoving() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.moving && time.Since(t.lastMoved) < t.cooldown
}

// Found reports whether a window is currently located.
func (t *CoordinateTracker) Found() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.found
}

// Handle returns the located window's handle.
func (t *CoordinateTracker) Handle() (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle, t.found
}

// Rect returns the window's last observed client rectangle in screen
// coordinates.
func (t *CoordinateTracker) Rect() (Rect, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rect, t.found
}

// ClientToScreen maps a capture-space coordinate to screen coordinates,
// dividing out DPI scaling. Returns ok=false when no window is located.
func (t *CoordinateTracker) ClientToScreen(x, y int) (sx, sy int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.found {
		return 0, 0, false
	}
	sx = t.rect.Left + int(math.Round(float64(x)/t.dpiScale))
	sy = t.rect.Top + int(math.Round(float64(y)/t.dpiScale))
	return sx, sy, true
}

// ScreenToClient is the inverse of ClientToScreen. Round trips are accurate
// to within one pixel at fractional DPI scales.
func (t *CoordinateTracker) ScreenToClient(sx, sy int) (x, y int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.found {
		return 0, 0, false
	}
	x = int(math.Round(float64(sx-t.rect.Left) * t.dpiScale))
	y = int(math.Round(float64(sy-t.rect.Top) * t.dpiScale))
	return x, y, true
}

// Reset forgets the located window so the next Refresh performs a fresh
// search.
func (t *CoordinateTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.found = false
	t.handle = 0
	t.moving = false
	t.rect = Rect{}
	t.dpiScale = 1.0
}
