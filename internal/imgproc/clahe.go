package imgproc

import "image"

// CLAHE applies contrast-limited adaptive histogram equalization with a
// tilesX x tilesY grid. Each tile's histogram is clipped at
// clipLimit*tilePixels/256 with the excess redistributed uniformly, and
// pixels are remapped by bilinear interpolation between the equalization
// LUTs of the four surrounding tiles.
func CLAHE(g *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || tilesX <= 0 || tilesY <= 0 {
		return g
	}

	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := range tilesY {
		for tx := range tilesX {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileLUT(g, x0, y0, x1, y1, clipLimit)
		}
	}

	out := image.NewGray(b)
	for y := range h {
		// Position in tile-center space.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(fy)
		if fy < 0 {
			ty0 = -1
		}
		ty1 := ty0 + 1
		wy := fy - float64(ty0)
		ty0 = clampInt(ty0, 0, tilesY-1)
		ty1 = clampInt(ty1, 0, tilesY-1)

		for x := range w {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(fx)
			if fx < 0 {
				tx0 = -1
			}
			tx1 := tx0 + 1
			wx := fx - float64(tx0)
			tx0 = clampInt(tx0, 0, tilesX-1)
			tx1 = clampInt(tx1, 0, tilesX-1)

			p := g.Pix[y*g.Stride+x]
			v00 := float64(luts[ty0*tilesX+tx0][p])
			v01 := float64(luts[ty0*tilesX+tx1][p])
			v10 := float64(luts[ty1*tilesX+tx0][p])
			v11 := float64(luts[ty1*tilesX+tx1][p])

			top := v00 + wx*(v01-v00)
			bottom := v10 + wx*(v11-v10)
			out.Pix[y*out.Stride+x] = uint8(top + wy*(bottom-top) + 0.5)
		}
	}
	return out
}

func tileLUT(g *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var histogram [256]int
	total := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			histogram[g.Pix[y*g.Stride+x]]++
			total++
		}
	}

	var lut [256]uint8
	if total == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	limit := int(clipLimit * float64(total) / 256.0)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range histogram {
		if c > limit {
			excess += c - limit
			histogram[i] = limit
		}
	}
	// Redistribute clipped mass uniformly.
	share := excess / 256
	rem := excess % 256
	for i := range histogram {
		histogram[i] += share
		if i < rem {
			histogram[i]++
		}
	}

	cdf := 0
	for i, c := range histogram {
		cdf += c
		lut[i] = uint8((cdf*255 + total/2) / total)
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
