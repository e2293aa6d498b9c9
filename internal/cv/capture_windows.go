//go:build windows
// +build windows

package cv

import (
	"fmt"
	"image"
	"syscall"
	"unsafe"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	gdi32                      = syscall.NewLazyDLL("gdi32.dll")
	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procGetClientRect          = user32.NewProc("GetClientRect")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	srcCopy      = 0x00CC0020
	biRGB        = 0
	dibRGBColors = 0
)

type winRect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

// HandleFunc reports the current window handle of the tracked window, or
// ok=false when no window is located.
type HandleFunc func() (hwnd uintptr, ok bool)

// WindowSource captures the tracked window's client area directly through
// GDI BitBlt. The handle is re-resolved every frame because the tracked
// window can be closed and reopened while the engine runs.
type WindowSource struct {
	handle HandleFunc
}

// NewWindowSource creates a direct window-capture frame source.
func NewWindowSource(handle HandleFunc) *WindowSource {
	return &WindowSource{handle: handle}
}

// CaptureFrame captures the window's client area. The client rectangle is
// queried fresh each call since the window resizes continuously.
func (ws *WindowSource) CaptureFrame() (*image.RGBA, error) {
	hwnd, ok := ws.handle()
	if !ok || hwnd == 0 {
		return nil, ErrCaptureUnavailable
	}

	var rect winRect
	ret, _, err := procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))
	if ret == 0 {
		return nil, fmt.Errorf("failed to get client rect: %v: %w", err, ErrCaptureUnavailable)
	}

	width := int(rect.Right - rect.Left)
	height := int(rect.Bottom - rect.Top)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid window dimensions %dx%d: %w", width, height, ErrCaptureUnavailable)
	}

	hdcWindow, _, err := procGetDC.Call(hwnd)
	if hdcWindow == 0 {
		return nil, fmt.Errorf("failed to get window DC: %v", err)
	}
	defer procReleaseDC.Call(hwnd, hdcWindow)

	hdcMem, _, err := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("failed to create compatible DC: %v", err)
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, err := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(width), uintptr(height))
	if hBitmap == 0 {
		return nil, fmt.Errorf("failed to create compatible bitmap: %v", err)
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)

	ret, _, err = procBitBlt.Call(
		hdcMem,
		0, 0,
		uintptr(width), uintptr(height),
		hdcWindow,
		0, 0,
		srcCopy,
	)
	if ret == 0 {
		return nil, fmt.Errorf("BitBlt failed: %v", err)
	}

	var bi bitmapInfo
	bi.BmiHeader.Size = uint32(unsafe.Sizeof(bi.BmiHeader))
	bi.BmiHeader.Width = int32(width)
	bi.BmiHeader.Height = -int32(height) // Negative for top-down bitmap
	bi.BmiHeader.Planes = 1
	bi.BmiHeader.BitCount = 32
	bi.BmiHeader.Compression = biRGB

	buffer := make([]byte, width*height*4)
	ret, _, err = procGetDIBits.Call(
		hdcMem,
		hBitmap,
		0,
		uintptr(height),
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(unsafe.Pointer(&bi)),
		dibRGBColors,
	)
	if ret == 0 {
		return nil, fmt.Errorf("GetDIBits failed: %v", err)
	}

	// Windows hands back BGRA; Go wants RGBA.
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(buffer); i += 4 {
		img.Pix[i] = buffer[i+2]
		img.Pix[i+1] = buffer[i+1]
		img.Pix[i+2] = buffer[i]
		img.Pix[i+3] = buffer[i+3]
	}

	return img, nil
}
