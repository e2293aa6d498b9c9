package cv

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// RegionFunc reports the current screen rectangle of the tracked window's
// client area, or ok=false when the window is not currently located.
type RegionFunc func() (x, y, width, height int, ok bool)

// ScreenSource captures the tracked window by grabbing its screen region.
// It works on every platform the screenshot library supports and needs no
// window handle, only the coordinate tracker's current rectangle.
type ScreenSource struct {
	region RegionFunc
}

// NewScreenSource creates a screen-region frame source.
func NewScreenSource(region RegionFunc) *ScreenSource {
	return &ScreenSource{region: region}
}

// CaptureFrame grabs the window's current screen region.
func (s *ScreenSource) CaptureFrame() (*image.RGBA, error) {
	x, y, w, h, ok := s.region()
	if !ok {
		return nil, ErrCaptureUnavailable
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid capture region %dx%d: %w", w, h, ErrCaptureUnavailable)
	}

	img, err := screenshot.Capture(x, y, w, h)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return img, nil
}
