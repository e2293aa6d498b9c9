//go:build windows
// +build windows

package main

import (
	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/window"
)

// newFrameSource captures the window's client area directly through GDI,
// which keeps working when the window is partially covered.
func newFrameSource(coords *window.CoordinateTracker) cv.FrameSource {
	return cv.NewWindowSource(func() (uintptr, bool) {
		h, ok := coords.Handle()
		return uintptr(h), ok
	})
}
