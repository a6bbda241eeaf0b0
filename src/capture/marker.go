package capture

import (
	"image"
	"image/color"
)

const (
	markerRadius    = 15
	markerThickness = 2
)

var markerColor = color.RGBA{R: 255, A: 255}

// drawMarker paints a ring centered at (cx, cy), clipped to the image.
func drawMarker(img *image.RGBA, cx, cy int) {
	outer := markerRadius
	inner := markerRadius - markerThickness
	outer2 := outer * outer
	inner2 := inner * inner
	b := img.Bounds()
	for dy := -outer; dy <= outer; dy++ {
		y := cy + dy
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for dx := -outer; dx <= outer; dx++ {
			x := cx + dx
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			d2 := dx*dx + dy*dy
			if d2 <= outer2 && d2 > inner2 {
				img.SetRGBA(x, y, markerColor)
			}
		}
	}
}
