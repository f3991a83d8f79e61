// Package testutil generates synthetic ticket page images for tests.
package testutil

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextPage renders the given lines of text onto a white page with
// basicfont glyphs, one line per row starting at the top-left margin.
func TextPage(width, height int, lines ...string) *image.Gray {
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  rgba,
		Src:  image.Black,
		Face: face,
	}
	lineHeight := face.Metrics().Height.Ceil() + 8
	y := 20
	for _, line := range lines {
		drawer.Dot = fixed.P(10, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	gray := image.NewGray(rgba.Bounds())
	draw.Draw(gray, gray.Bounds(), rgba, image.Point{}, draw.Src)
	return gray
}

// TextCrop renders one line of text sized to fit it, the shape a line
// segmenter would hand to the recognizer.
func TextCrop(text string) *image.Gray {
	w := font.MeasureString(basicfont.Face7x13, text).Ceil() + 12
	h := basicfont.Face7x13.Metrics().Height.Ceil() + 12
	return TextPage(w, h+10, text)
}

// InkFraction reports the share of pixels darker than mid-gray.
func InkFraction(g *image.Gray) float64 {
	dark := 0
	for _, p := range g.Pix {
		if p < 128 {
			dark++
		}
	}
	if len(g.Pix) == 0 {
		return 0
	}
	return float64(dark) / float64(len(g.Pix))
}
