//go:build windows

package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-recorder/src/hotkey"
	"screen-recorder/src/screenshot"
)

const windowClassName = "ScreenRecorderRegionOverlay"

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	gdi32DLL                     = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen                = gdi32DLL.NewProc("CreatePen")
	procRectangle                = gdi32DLL.NewProc("Rectangle")

	registerOnce sync.Once
	registerErr  error

	// The window procedure is a package-level callback, so only one overlay
	// may be open at a time.
	overlayMu sync.Mutex
	active    *overlayWindow
)

// WindowSelector shows a topmost window over the whole virtual desktop,
// painted with a still of the screen. The user drags a rectangle, which
// stays drawn until Enter confirms it; Escape cancels.
type WindowSelector struct {
	// Feedback, when set, receives the same prompts as the on-screen hints.
	Feedback func(string)
}

// NewDefault returns the drawn overlay selector.
func NewDefault(_ hotkey.EventSource, feedback func(string)) Selector {
	return &WindowSelector{Feedback: feedback}
}

type overlayWindow struct {
	hwnd       win.HWND
	origin     screenshot.Point
	background *image.RGBA
	cursor     win.HCURSOR
	gesture    Gesture
	hint       string
	feedback   func(string)

	region    screenshot.Region
	cancelled bool
	done      bool
}

type selection struct {
	region    screenshot.Region
	cancelled bool
	err       error
}

func (s *WindowSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Region{}, false, err
	}
	overlayMu.Lock()
	if active != nil {
		overlayMu.Unlock()
		return screenshot.Region{}, false, errors.New("region selection already in progress")
	}
	ow := &overlayWindow{hint: "Drag to select, ENTER confirm, ESC cancel", feedback: s.Feedback}
	active = ow
	overlayMu.Unlock()
	defer func() {
		overlayMu.Lock()
		active = nil
		overlayMu.Unlock()
	}()

	results := make(chan selection, 1)
	hwnds := make(chan win.HWND, 1)
	go func() {
		// Window messages are delivered to the creating thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		results <- ow.run(hwnds)
	}()

	var hwnd win.HWND
	for {
		select {
		case h := <-hwnds:
			hwnd = h
		case res := <-results:
			return res.region, res.cancelled, res.err
		case <-ctx.Done():
			if hwnd == 0 {
				select {
				case hwnd = <-hwnds:
				case res := <-results:
					return res.region, res.cancelled, res.err
				}
			}
			win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
			res := <-results
			if res.err == nil && !res.cancelled {
				return res.region, false, nil
			}
			return screenshot.Region{}, false, ctx.Err()
		}
	}
}

func (ow *overlayWindow) run(hwnds chan<- win.HWND) selection {
	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	log.Printf("overlay: virtual screen x=%d y=%d w=%d h=%d", vx, vy, vw, vh)
	ow.origin = screenshot.Point{X: int(vx), Y: int(vy)}

	still, err := screenshot.NewScreenGrabber().Grab(screenshot.Region{X: int(vx), Y: int(vy), Width: int(vw), Height: int(vh)})
	if err != nil {
		// A black background still allows selection.
		log.Printf("overlay: background capture failed: %v", err)
	}
	ow.background = still

	ow.cursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))
	if err := registerClass(ow.cursor); err != nil {
		return selection{err: err}
	}

	ow.hwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		syscall.StringToUTF16Ptr(windowClassName),
		syscall.StringToUTF16Ptr("Select Region"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if ow.hwnd == 0 {
		return selection{err: errors.New("failed to create overlay window")}
	}
	hwnds <- ow.hwnd

	win.ShowWindow(ow.hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(syscall.Getpid()))
	win.SetForegroundWindow(ow.hwnd)
	win.BringWindowToTop(ow.hwnd)
	win.SetFocus(ow.hwnd)
	win.UpdateWindow(ow.hwnd)
	ow.say(ow.hint)

	started := time.Now()
	var msg win.MSG
	for !ow.done {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
	win.DestroyWindow(ow.hwnd)
	log.Printf("overlay: closed after %s", time.Since(started).Round(time.Millisecond))

	if !ow.done || ow.cancelled {
		return selection{cancelled: true}
	}
	return selection{region: ow.region}
}

func registerClass(cursor win.HCURSOR) error {
	registerOnce.Do(func() {
		wndClass := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			Style:         win.CS_HREDRAW | win.CS_VREDRAW,
			LpfnWndProc:   syscall.NewCallback(overlayWndProc),
			HInstance:     win.GetModuleHandle(nil),
			HCursor:       cursor,
			LpszClassName: syscall.StringToUTF16Ptr(windowClassName),
		}
		if win.RegisterClassEx(&wndClass) == 0 {
			registerErr = errors.New("failed to register overlay window class")
		}
	})
	return registerErr
}

func (ow *overlayWindow) say(msg string) {
	ow.hint = msg
	log.Printf("overlay: %s", msg)
	if ow.feedback != nil {
		ow.feedback(msg)
	}
}

// point converts client coordinates to desktop coordinates.
func (ow *overlayWindow) point(lParam uintptr) screenshot.Point {
	x := int(int16(win.LOWORD(uint32(lParam))))
	y := int(int16(win.HIWORD(uint32(lParam))))
	return screenshot.Point{X: x + ow.origin.X, Y: y + ow.origin.Y}
}

func (ow *overlayWindow) finish(region screenshot.Region, cancelled bool) {
	ow.region = region
	ow.cancelled = cancelled
	ow.done = true
	win.PostQuitMessage(0)
}

func (ow *overlayWindow) repaint() {
	win.InvalidateRect(ow.hwnd, nil, false)
	win.UpdateWindow(ow.hwnd)
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	overlayMu.Lock()
	ow := active
	overlayMu.Unlock()
	if ow == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		ow.gesture.Press(ow.point(lParam))
		ow.repaint()
		return 0

	case win.WM_MOUSEMOVE:
		if ow.gesture.Pressing() {
			ow.gesture.Drag(ow.point(lParam))
			ow.repaint()
		}
		return 0

	case win.WM_LBUTTONUP:
		if !ow.gesture.Pressing() {
			return 0
		}
		win.ReleaseCapture()
		if err := ow.gesture.Release(ow.point(lParam)); err != nil {
			ow.say(err.Error())
		} else if r, ok := ow.gesture.Pending(); ok {
			ow.say(fmt.Sprintf("Selected %s, ENTER confirm, drag again to redo", r))
		}
		ow.repaint()
		return 0

	case win.WM_KEYDOWN:
		switch wParam {
		case win.VK_ESCAPE:
			ow.finish(screenshot.Region{}, true)
		case win.VK_RETURN:
			r, err := ow.gesture.Confirm()
			if err != nil {
				ow.say(err.Error())
				ow.repaint()
				return 0
			}
			clamped, err := screenshot.ClampToDesktop(r)
			if err != nil {
				ow.say(err.Error())
				ow.repaint()
				return 0
			}
			ow.finish(clamped, false)
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		ow.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if ow.cursor != 0 {
			win.SetCursor(ow.cursor)
		}
		return 1

	case win.WM_NCHITTEST:
		// Treat the whole window as client area so it receives mouse input.
		return uintptr(win.HTCLIENT)

	case win.WM_CLOSE:
		ow.finish(screenshot.Region{}, true)
		return 0

	case win.WM_DESTROY:
		// No PostQuitMessage here: a stray WM_QUIT would end the next
		// selection on this thread immediately.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func (ow *overlayWindow) paint(hdc win.HDC) {
	if ow.background != nil {
		drawBackground(hdc, ow.background)
	}

	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(ow.hint), int32(len(ow.hint)))

	var r screenshot.Region
	switch {
	case ow.gesture.Pressing():
		r = ow.gesture.Current()
	default:
		pending, ok := ow.gesture.Pending()
		if !ok {
			return
		}
		r = pending
	}
	left := int32(r.X - ow.origin.X)
	top := int32(r.Y - ow.origin.Y)
	drawRectangle(hdc, left, top, left+int32(r.Width), top+int32(r.Height))
}

func drawRectangle(hdc win.HDC, left, top, right, bottom int32) {
	redPen, _, _ := procCreatePen.Call(0, 3, 0x0000FF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(redPen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	procRectangle.Call(uintptr(hdc), uintptr(left), uintptr(top), uintptr(right), uintptr(bottom))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(redPen))
}

// drawBackground blits the still as a top-down 32-bit DIB.
func drawBackground(hdc win.HDC, img *image.RGBA) {
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	header := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(width),
		BiHeight:      -int32(height),
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}

	var bits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &header, win.DIB_RGB_COLORS, &bits, 0, 0)
	if hBitmap == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	oldBitmap := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, oldBitmap)

	// 32bpp rows are already DWORD aligned.
	dst := unsafe.Slice((*byte)(bits), width*height*4)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		row := dst[y*width*4 : (y+1)*width*4]
		for x := 0; x < width*4; x += 4 {
			row[x] = src[x+2]
			row[x+1] = src[x+1]
			row[x+2] = src[x]
			row[x+3] = 0xFF
		}
	}

	win.BitBlt(hdc, 0, 0, int32(width), int32(height), memDC, 0, 0, win.SRCCOPY)
}
