package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

var (
	red   = color.RGBA{R: 255, G: 59, B: 48, A: 255}
	amber = color.RGBA{R: 255, G: 176, B: 0, A: 255}
)

// icons holds the 44px PNGs per state. The idle icon is a template image,
// so macOS tints it for light and dark menu bars.
var icons = map[State][]byte{
	StateIdle:      renderIcon(44, nil),
	StateRecording: renderIcon(44, &red),
	StateStopping:  renderIcon(44, &amber),
}

// renderIcon draws a ring with an optional filled centre dot.
func renderIcon(size int, dot *color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size) / 2
	outer := c - 1
	inner := outer * 0.72
	dotR := outer * 0.45
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			switch {
			case dot != nil && d <= dotR:
				img.Set(x, y, dot)
			case d <= outer && d >= inner:
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("tray icon: " + err.Error())
	}
	return buf.Bytes()
}
