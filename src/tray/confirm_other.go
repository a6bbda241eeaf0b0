//go:build !windows

package tray

import "log"

// AskYesNo has no dialog here; it logs and declines.
func AskYesNo(title, message string) bool {
	log.Printf("tray: %s: %s (no dialog available, declining)", title, message)
	return false
}

// HasDialogs reports whether AskYesNo shows a real dialog.
const HasDialogs = false
