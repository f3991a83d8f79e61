// Package enhance prepares cell and line crops for text recognition:
// undersized or near-blank crops are rejected, the rest are scaled to a
// fixed height and contrast-stretched with CLAHE.
package enhance

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/fieldops/ticketscan/internal/imgproc"
)

// Config holds the enhancement parameters.
type Config struct {
	TargetHeight int     // crops are scaled to this height, aspect preserved
	ClipLimit    float64 // CLAHE contrast clip limit
	TileGrid     int     // CLAHE tile grid size per axis
	MinDensity   float64 // minimum dark-pixel fraction for a crop to count as text
	MinDimension int     // crops narrower or shorter than this are rejected
}

// DefaultConfig returns the default enhancement configuration.
func DefaultConfig() Config {
	return Config{
		TargetHeight: 64,
		ClipLimit:    2.0,
		TileGrid:     4,
		MinDensity:   0.015,
		MinDimension: 10,
	}
}

// InkDensity returns the fraction of dark pixels in a grayscale crop.
func InkDensity(g *image.Gray) float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	dark := 0
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, p := range row {
			if p < 128 {
				dark++
			}
		}
	}
	return float64(dark) / float64(b.Dx()*b.Dy())
}

// Cell enhances one crop for recognition: scale to the target height,
// CLAHE, binarize, normalize polarity. A nil result means the crop was
// rejected as too small or effectively blank; callers treat rejected crops
// as empty cells rather than errors.
func Cell(crop *image.Gray, cfg Config) *image.Gray {
	if crop == nil {
		return nil
	}
	b := crop.Bounds()
	if b.Dx() < cfg.MinDimension || b.Dy() < cfg.MinDimension {
		return nil
	}

	// CatmullRom keeps stroke edges when upscaling small crops; Box is
	// enough when shrinking.
	filter := imaging.CatmullRom
	if b.Dy() > cfg.TargetHeight {
		filter = imaging.Box
	}
	scaled := imaging.Resize(crop, 0, cfg.TargetHeight, filter)

	g := imgproc.CLAHE(imgproc.ToGray(scaled), cfg.ClipLimit, cfg.TileGrid, cfg.TileGrid)
	bin := imgproc.Binarize(g, imgproc.OtsuThreshold(g))
	if imgproc.MeanIntensity(bin) < 128 {
		bin = imgproc.Invert(bin)
	}
	// The density gate runs last so it sees the same pixels the model
	// would; blank cells are dropped instead of wasting a model slot.
	if InkDensity(bin) < cfg.MinDensity {
		return nil
	}
	return bin
}
