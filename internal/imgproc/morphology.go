package imgproc

import "image"

// Binary morphology on grayscale masks where 255 marks foreground.
// Kernels are rectangular and separable; a 1xN opening keeps only
// horizontal runs at least N pixels long, which is what isolates ruling
// lines while glyph strokes (shorter than the kernel) are erased.

// minLineKernel is the smallest structuring element used for ruling-line
// extraction regardless of page size.
const minLineKernel = 50

func erodeHorizontal(src *image.Gray, k int) *image.Gray {
	if k <= 1 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	half := k / 2
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		// Prefix counts of foreground pixels for O(1) window queries.
		prefix := make([]int, w+1)
		for x, p := range row {
			prefix[x+1] = prefix[x]
			if p == 255 {
				prefix[x+1]++
			}
		}
		for x := range w {
			lo := x - half
			if lo < 0 {
				lo = 0
			}
			hi := x - half + k
			if hi > w {
				hi = w
			}
			// Pixels outside the image count as foreground, so a run
			// touching the border erodes the same way as an interior one.
			if prefix[hi]-prefix[lo] == hi-lo {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

func dilateHorizontal(src *image.Gray, k int) *image.Gray {
	if k <= 1 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	half := k / 2
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		prefix := make([]int, w+1)
		for x, p := range row {
			prefix[x+1] = prefix[x]
			if p == 255 {
				prefix[x+1]++
			}
		}
		for x := range w {
			lo := x - half
			if lo < 0 {
				lo = 0
			}
			hi := x - half + k
			if hi > w {
				hi = w
			}
			if prefix[hi]-prefix[lo] > 0 {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

func transpose(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, h, w))
	for y := range h {
		for x := range w {
			out.Pix[x*out.Stride+y] = src.Pix[y*src.Stride+x]
		}
	}
	return out
}

func erodeVertical(src *image.Gray, k int) *image.Gray {
	return transpose(erodeHorizontal(transpose(src), k))
}

func dilateVertical(src *image.Gray, k int) *image.Gray {
	return transpose(dilateHorizontal(transpose(src), k))
}

// OpenHorizontal applies a 1xk morphological opening, repeated iterations
// times (all erosions first, then all dilations).
func OpenHorizontal(src *image.Gray, k, iterations int) *image.Gray {
	out := src
	for range iterations {
		out = erodeHorizontal(out, k)
	}
	for range iterations {
		out = dilateHorizontal(out, k)
	}
	return out
}

// OpenVertical applies a kx1 morphological opening, repeated iterations times.
func OpenVertical(src *image.Gray, k, iterations int) *image.Gray {
	out := src
	for range iterations {
		out = erodeVertical(out, k)
	}
	for range iterations {
		out = dilateVertical(out, k)
	}
	return out
}

// DilateRect dilates with a kxk rectangular kernel (separable max filter).
func DilateRect(src *image.Gray, k, iterations int) *image.Gray {
	out := src
	for range iterations {
		out = dilateVertical(dilateHorizontal(out, k), k)
	}
	return out
}

// Or returns the union of two foreground masks.
func Or(a, b *image.Gray) *image.Gray {
	out := image.NewGray(a.Bounds())
	for i := range a.Pix {
		if a.Pix[i] == 255 || b.Pix[i] == 255 {
			out.Pix[i] = 255
		}
	}
	return out
}

// AndNot keeps foreground pixels of a that are not set in mask.
func AndNot(a, mask *image.Gray) *image.Gray {
	out := image.NewGray(a.Bounds())
	for i := range a.Pix {
		if a.Pix[i] == 255 && mask.Pix[i] != 255 {
			out.Pix[i] = 255
		}
	}
	return out
}

// lineKernel returns the structuring-element length for a page dimension.
func lineKernel(dim, divisor int) int {
	k := dim / divisor
	if k < minLineKernel {
		k = minLineKernel
	}
	return k
}

// LineMask extracts the ruling-line mask of an inverted binary image using
// 1xhLen and vLenx1 openings, each followed by a small dilation to close
// single-pixel gaps in the detected lines.
func LineMask(inv *image.Gray, hLen, vLen int) *image.Gray {
	hor := DilateRect(OpenHorizontal(inv, hLen, 2), 3, 1)
	ver := DilateRect(OpenVertical(inv, vLen, 2), 3, 1)
	return Or(hor, ver)
}

// RemoveLines erases straight ruling lines from a binarized page while
// keeping glyph strokes intact. Input and output are dark-text-on-light
// binary images.
func RemoveLines(bin *image.Gray) *image.Gray {
	b := bin.Bounds()
	inv := Invert(bin)
	mask := LineMask(inv, lineKernel(b.Dx(), 30), lineKernel(b.Dy(), 30))
	return Invert(AndNot(inv, mask))
}
