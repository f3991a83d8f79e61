package imgproc

import (
	"errors"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is returned when a page image cannot be used as pipeline input.
var ErrInvalidImage = errors.New("invalid image")

// blurSigma approximates a 5x5 Gaussian kernel.
const blurSigma = 1.1

// ToGray converts any image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// OtsuThreshold computes the global Otsu threshold of a grayscale image by
// maximizing between-class variance over the intensity histogram.
func OtsuThreshold(g *image.Gray) uint8 {
	const bins = 256
	var histogram [bins]int
	total := 0
	for _, p := range g.Pix {
		histogram[p]++
		total++
	}
	if total == 0 {
		return 0
	}

	var totalSum float64
	for i := range bins {
		totalSum += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	wB := 0
	best := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}

// Binarize thresholds a grayscale image: pixels above thr become white (255),
// the rest black (0).
func Binarize(g *image.Gray, thr uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		if p > thr {
			out.Pix[i] = 255
		}
	}
	return out
}

// MeanIntensity returns the average pixel value of a grayscale image.
func MeanIntensity(g *image.Gray) float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, p := range g.Pix {
		sum += uint64(p)
	}
	return float64(sum) / float64(len(g.Pix))
}

// Invert returns the photometric negative of a grayscale image.
func Invert(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		out.Pix[i] = 255 - p
	}
	return out
}

// Crop copies a rectangular region into a fresh zero-origin image. The
// rectangle is clipped to the source bounds first.
func Crop(src *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(src.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcOff := (r.Min.Y+y)*src.Stride + r.Min.X
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()], src.Pix[srcOff:srcOff+r.Dx()])
	}
	return out
}

// FillRect paints a rectangular region with one value, clipped to bounds.
func FillRect(dst *image.Gray, r image.Rectangle, v uint8) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := dst.Pix[y*dst.Stride+r.Min.X : y*dst.Stride+r.Max.X]
		for i := range row {
			row[i] = v
		}
	}
}

// IsBinary reports whether the image contains only pure black and white pixels.
func IsBinary(g *image.Gray) bool {
	for _, p := range g.Pix {
		if p != 0 && p != 255 {
			return false
		}
	}
	return true
}

// Preprocess normalizes a raw page photograph for segmentation and
// recognition: grayscale, Gaussian blur, Otsu binarization, and polarity
// normalization so that text is dark on a light background.
//
// Blur is skipped for input that is already binary, which makes
// preprocessing a fixed point: feeding the output back in reproduces it
// bit for bit.
func Preprocess(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, ErrInvalidImage
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrInvalidImage
	}

	gray := ToGray(img)
	if !IsBinary(gray) {
		gray = ToGray(imaging.Blur(gray, blurSigma))
	}

	bin := Binarize(gray, OtsuThreshold(gray))
	if MeanIntensity(bin) < 128 {
		bin = Invert(bin)
	}
	return bin, nil
}
