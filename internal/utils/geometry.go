package utils

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// CenterY returns the vertical center of the box.
func (b Box) CenterY() float64 { return (b.MinY + b.MaxY) / 2 }

// Contains reports whether other lies fully within b.
func (b Box) Contains(other Box) bool {
	return other.MinX >= b.MinX && other.MinY >= b.MinY &&
		other.MaxX <= b.MaxX && other.MaxY <= b.MaxY
}

// Union returns the smallest box covering both b and other.
func (b Box) Union(other Box) Box {
	return Box{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Pad grows the box by p on every side, clamped to [0,w]x[0,h].
func (b Box) Pad(p, w, h float64) Box {
	return Box{
		MinX: math.Max(0, b.MinX-p),
		MinY: math.Max(0, b.MinY-p),
		MaxX: math.Min(w, b.MaxX+p),
		MaxY: math.Min(h, b.MaxY+p),
	}
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

// YOverlapRatio returns the vertical overlap between two boxes relative to
// the shorter box's height. A result of 0 means no overlap, 1 means the
// shorter box's vertical span is fully covered.
func YOverlapRatio(a, b Box) float64 {
	top := math.Max(a.MinY, b.MinY)
	bottom := math.Min(a.MaxY, b.MaxY)
	overlap := bottom - top
	if overlap <= 0 {
		return 0
	}
	minHeight := math.Min(a.Height(), b.Height())
	if minHeight <= 0 {
		return 0
	}
	return overlap / minHeight
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
