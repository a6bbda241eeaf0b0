//go:build windows

package tray

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	MB_YESNO        = 0x00000004
	MB_ICONQUESTION = 0x00000020
	MB_TOPMOST      = 0x00040000
	IDYES           = 6
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procMessageBoxW = user32.NewProc("MessageBoxW")
)

// AskYesNo shows a modal Yes/No message box and reports whether Yes was chosen.
func AskYesNo(title, message string) bool {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	messagePtr, _ := syscall.UTF16PtrFromString(message)

	ret, _, _ := procMessageBoxW.Call(
		0, // hwnd (no parent window)
		uintptr(unsafe.Pointer(messagePtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(MB_YESNO|MB_ICONQUESTION|MB_TOPMOST),
	)
	return ret == IDYES
}

// HasDialogs reports whether AskYesNo shows a real dialog.
const HasDialogs = true
