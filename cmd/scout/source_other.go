//go:build !windows
// +build !windows

package main

import (
	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/window"
)

// newFrameSource grabs the window's current screen region; the only option
// without a native window-capture API.
func newFrameSource(coords *window.CoordinateTracker) cv.FrameSource {
	return cv.NewScreenSource(func() (int, int, int, int, bool) {
		rect, ok := coords.Rect()
		if !ok || rect.Empty() {
			return 0, 0, 0, 0, false
		}
		return rect.Left, rect.Top, rect.Width(), rect.Height(), true
	})
}
