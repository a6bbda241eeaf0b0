package hotkey

import (
	"log"
	"strconv"
	"strings"

	gohook "github.com/robotn/gohook"
)

// libuiohook virtual keycodes as reported in gohook's Keycode. Unlike
// Rawcode, which carries the platform's native code, they do not vary by OS.
var (
	KeyEnter    = gohook.Keycode["enter"]
	KeyNumEnter = gohook.Keycode["num_enter"]
	KeyEscape   = gohook.Keycode["esc"]
)

// parseHotkey converts a hotkey string like "Ctrl+Alt+r" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

var specialKeys = map[string][]uint16{
	"ctrl":  {0x001D, 0x0E1D},
	"alt":   {0x0038, 0x0E38},
	"shift": {0x002A, 0x0036},
	"cmd":   {0x0E5B, 0x0E5C}, // meta, the Windows key on PC keyboards
	"win":   {0x0E5B, 0x0E5C},
	"super": {0x0E5B, 0x0E5C},

	"space":     {0x0039},
	"enter":     {KeyEnter, KeyNumEnter},
	"return":    {KeyEnter, KeyNumEnter},
	"esc":       {KeyEscape},
	"escape":    {KeyEscape},
	"tab":       {0x000F},
	"backspace": {0x000E},
	"delete":    {0x0E53},
	"del":       {0x0E53},
	"insert":    {0x0E52},
	"ins":       {0x0E52},
	"home":      {0x0E47},
	"end":       {0x0E4F},
	"pageup":    {0x0E49},
	"pgup":      {0x0E49},
	"pagedown":  {0x0E51},
	"pgdn":      {0x0E51},
	"pause":     {0x0E45},
	"left":      {0xE04B},
	"up":        {0xE048},
	"right":     {0xE04D},
	"down":      {0xE050},
}

// libuiohook function key codes are not contiguous.
var functionKeys = [...]uint16{
	0x003B, 0x003C, 0x003D, 0x003E, 0x003F, 0x0040, // F1-F6
	0x0041, 0x0042, 0x0043, 0x0044, 0x0057, 0x0058, // F7-F12
	0x005B, 0x005C, 0x005D, 0x0063, 0x0064, 0x0065, // F13-F18
	0x0066, 0x0067, 0x0068, 0x0069, 0x006A, 0x006B, // F19-F24
}

// keyNameToKeycodes maps a key name to libuiohook keycodes. Modifiers yield
// both left and right variants.
func keyNameToKeycodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		c := keyName[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return []uint16{gohook.Keycode[keyName]}
		}
	}
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= len(functionKeys) {
			return []uint16{functionKeys[n-1]}
		}
	}

	log.Printf("hotkey: unknown key name '%s', cannot map to keycode", keyName)
	return nil
}
