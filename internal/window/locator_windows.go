//go:build windows
// +build windows

package window

import (
	"strings"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
)

var (
	user32              = syscall.NewLazyDLL("user32.dll")
	procEnumWindows     = user32.NewProc("EnumWindows")
	procGetWindowTextW  = user32.NewProc("GetWindowTextW")
	procIsWindowVisible = user32.NewProc("IsWindowVisible")
)

// Win32Locator resolves windows through the Win32 API.
type Win32Locator struct{}

// NewLocator returns the platform window locator.
func NewLocator() Locator {
	return &Win32Locator{}
}

// FindWindow enumerates visible top-level windows and returns the first one
// whose title contains titleSubstring, case-insensitive.
func (l *Win32Locator) FindWindow(titleSubstring string) (Handle, error) {
	needle := strings.ToLower(titleSubstring)
	var found Handle

	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1 // continue enumeration
		}

		var buf [256]uint16
		n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if n == 0 {
			return 1
		}

		title := strings.ToLower(syscall.UTF16ToString(buf[:n]))
		if strings.Contains(title, needle) {
			found = Handle(hwnd)
			return 0 // stop enumeration
		}
		return 1
	})

	procEnumWindows.Call(cb, 0)
	if found == 0 {
		return 0, ErrWindowNotFound
	}
	return found, nil
}

// ClientRect reports the window's client area translated to screen
// coordinates.
func (l *Win32Locator) ClientRect(h Handle) (Rect, error) {
	hwnd := win.HWND(h)
	if !win.IsWindow(hwnd) {
		return Rect{}, ErrWindowNotFound
	}

	var rc win.RECT
	if !win.GetClientRect(hwnd, &rc) {
		return Rect{}, ErrWindowNotFound
	}

	// GetClientRect is origin-relative; translate the top-left corner into
	// screen space.
	origin := win.POINT{}
	if !win.ClientToScreen(hwnd, &origin) {
		return Rect{}, ErrWindowNotFound
	}

	return Rect{
		Left:   int(origin.X),
		Top:    int(origin.Y),
		Right:  int(origin.X) + int(rc.Right-rc.Left),
		Bottom: int(origin.Y) + int(rc.Bottom-rc.Top),
	}, nil
}

// DPIScale reports the window's DPI scaling factor relative to the 96 DPI
// baseline.
func (l *Win32Locator) DPIScale(h Handle) float64 {
	dpi := win.GetDpiForWindow(win.HWND(h))
	if dpi == 0 {
		return 1.0
	}
	return float64(dpi) / 96.0
}
