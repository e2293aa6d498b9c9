package window

import "errors"

// ErrWindowNotFound is returned when no top-level window matches the tracked
// title, or when a previously located window has gone away.
var ErrWindowNotFound = errors.New("window not found")

// Handle identifies a located window to the platform layer.
type Handle uintptr

// Rect is a window rectangle in screen coordinates.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area, which happens while a
// window is minimized.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Locator resolves the tracked window on the current platform.
type Locator interface {
	// FindWindow locates a visible top-level window whose title contains
	// titleSubstring (case-insensitive). Returns ErrWindowNotFound when no
	// window matches.
	FindWindow(titleSubstring string) (Handle, error)

	// ClientRect reports the window's client area in screen coordinates.
	// Returns ErrWindowNotFound when the handle is no longer valid.
	ClientRect(h Handle) (Rect, error)

	// DPIScale reports the window's pixels-per-logical-unit ratio, 1.0 when
	// the platform cannot tell.
	DPIScale(h Handle) float64
}
