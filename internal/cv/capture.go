package cv

import (
	"errors"
	"image"
)

// ErrCaptureUnavailable is returned when the tracked window is currently
// uncapturable (not found, minimized, or its rectangle is unknown). It is a
// transient condition; callers skip the tick and retry on the next one.
var ErrCaptureUnavailable = errors.New("capture unavailable")

// FrameSource supplies the most recent bitmap of the tracked window's client
// area. Implementations must not block past a detection tick; a slow capture
// causes that tick to be skipped rather than stalling the driver.
type FrameSource interface {
	CaptureFrame() (*image.RGBA, error)
}
