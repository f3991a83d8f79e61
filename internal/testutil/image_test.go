package testutil

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPageRendersInk(t *testing.T) {
	page := TextPage(200, 100, "Ticket #: 42")

	require.Equal(t, image.Rect(0, 0, 200, 100), page.Bounds())
	assert.Greater(t, InkFraction(page), 0.0)

	// Text starts near the top; the bottom half stays blank.
	bottom := page.SubImage(image.Rect(0, 50, 200, 100)).(*image.Gray)
	assert.Zero(t, InkFraction(bottom))
}

func TestTextPageMultipleLines(t *testing.T) {
	one := InkFraction(TextPage(200, 100, "line one"))
	two := InkFraction(TextPage(200, 100, "line one", "line two"))

	assert.Greater(t, two, one)
}

func TestTextCropFitsText(t *testing.T) {
	crop := TextCrop("HELLO")

	assert.Greater(t, crop.Bounds().Dx(), 5*7)
	assert.Greater(t, InkFraction(crop), 0.01)
}

func TestInkFractionBlank(t *testing.T) {
	blank := TextPage(50, 50)
	assert.Zero(t, InkFraction(blank))
}
