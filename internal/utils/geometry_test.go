package utils

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBoxOrdersCoordinates(t *testing.T) {
	b := NewBox(10, 20, 5, 2)
	assert.Equal(t, Box{MinX: 5, MinY: 2, MaxX: 10, MaxY: 20}, b)
}

func TestBoxContains(t *testing.T) {
	outer := NewBox(0, 0, 100, 100)
	assert.True(t, outer.Contains(NewBox(10, 10, 90, 90)))
	assert.True(t, outer.Contains(outer))
	assert.False(t, outer.Contains(NewBox(10, 10, 110, 90)))
}

func TestBoxUnion(t *testing.T) {
	u := NewBox(0, 0, 10, 10).Union(NewBox(5, 5, 20, 8))
	assert.Equal(t, NewBox(0, 0, 20, 10), u)
}

func TestBoxPadClamps(t *testing.T) {
	b := NewBox(5, 5, 95, 95).Pad(10, 100, 100)
	assert.Equal(t, NewBox(0, 0, 100, 100), b)
}

func TestBoxToRectClamped(t *testing.T) {
	bounds := image.Rect(0, 0, 50, 50)
	r := NewBox(-5, 10.2, 200, 40.8).ToRect(bounds)
	assert.Equal(t, image.Rect(0, 10, 50, 41), r)
}

func TestYOverlapRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", NewBox(0, 0, 10, 10), NewBox(0, 0, 10, 10), 1.0},
		{"disjoint", NewBox(0, 0, 10, 10), NewBox(0, 20, 10, 30), 0.0},
		{"touching", NewBox(0, 0, 10, 10), NewBox(0, 10, 10, 20), 0.0},
		{"half of shorter", NewBox(0, 0, 10, 20), NewBox(0, 15, 10, 25), 0.5},
		{"sixty percent", NewBox(0, 0, 10, 10), NewBox(0, 4, 10, 14), 0.6},
		{"forty percent", NewBox(0, 0, 10, 10), NewBox(0, 6, 10, 16), 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, YOverlapRatio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, YOverlapRatio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestYOverlapRatioDegenerate(t *testing.T) {
	flat := NewBox(0, 5, 10, 5)
	assert.Equal(t, 0.0, YOverlapRatio(flat, NewBox(0, 0, 10, 10)))
}
