//go:build !windows
// +build !windows

package window

// stubLocator is the non-Windows placeholder; window tracking by title is
// only implemented for Win32 desktops. Callers still run against a fake
// Locator in tests or a fixed screen region in production.
type stubLocator struct{}

// NewLocator returns the platform window locator.
func NewLocator() Locator {
	return stubLocator{}
}

func (stubLocator) FindWindow(string) (Handle, error) { return 0, ErrWindowNotFound }
func (stubLocator) ClientRect(Handle) (Rect, error)   { return Rect{}, ErrWindowNotFound }
func (stubLocator) DPIScale(Handle) float64           { return 1.0 }
