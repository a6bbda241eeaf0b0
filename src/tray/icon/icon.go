package icon

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Bytes returns the tray image: a red record dot. Windows wants an ICO
// container, other platforms take the PNG directly.
func Bytes() []byte {
	iconOnce.Do(func() {
		p := iconPNG()
		if runtime.GOOS == "windows" {
			iconBytes = wrapICO(p, iconSize)
		} else {
			iconBytes = p
		}
	})
	return iconBytes
}

func iconPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	c := float64(iconSize-1) / 2
	r := float64(iconSize)/2 - 3
	red := color.NRGBA{R: 220, G: 30, B: 30, A: 255}
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, red)
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO stores one PNG image in an ICO file (supported since Vista).
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, [3]uint16{0, 1, 1}) // reserved, type=icon, count
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size),
		Height:   uint8(size),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, le, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
