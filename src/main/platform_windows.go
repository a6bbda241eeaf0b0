//go:build windows

package main

import (
	"log"
	"syscall"

	"github.com/lxn/win"
)

const processPerMonitorDPIAware = 2

var (
	procSetProcessDpiAwareness = syscall.NewLazyDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	procSetProcessDPIAware     = syscall.NewLazyDLL("user32.dll").NewProc("SetProcessDPIAware")
)

// enableDPIAwareness must run before any window or capture call so that
// selected regions and captured frames share physical pixel coordinates.
func enableDPIAwareness() {
	if procSetProcessDpiAwareness.Find() == nil {
		hr, _, _ := procSetProcessDpiAwareness.Call(processPerMonitorDPIAware)
		if hr == 0 {
			log.Printf("dpi: per-monitor awareness enabled")
			return
		}
		log.Printf("dpi: SetProcessDpiAwareness failed: 0x%x", hr)
	}
	if procSetProcessDPIAware.Find() == nil {
		if ok, _, _ := procSetProcessDPIAware.Call(); ok != 0 {
			log.Printf("dpi: system awareness enabled")
			return
		}
	}
	log.Printf("dpi: awareness unavailable, regions on scaled displays may be offset")
}

func logPlatformMetrics() {
	log.Printf("monitor: windows reports %d monitors, virtual screen x:%d y:%d w:%d h:%d",
		win.GetSystemMetrics(win.SM_CMONITORS),
		win.GetSystemMetrics(win.SM_XVIRTUALSCREEN),
		win.GetSystemMetrics(win.SM_YVIRTUALSCREEN),
		win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN),
		win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN))
}
