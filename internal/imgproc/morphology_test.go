package imgproc

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mask(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

func setRun(g *image.Gray, y, x0, x1 int) {
	for x := x0; x < x1; x++ {
		g.Pix[y*g.Stride+x] = 255
	}
}

func TestOpenHorizontalKeepsLongRunsOnly(t *testing.T) {
	m := mask(200, 10)
	setRun(m, 2, 10, 190) // long run, survives a 50px opening
	setRun(m, 5, 20, 45)  // short run, erased

	out := OpenHorizontal(m, 50, 1)

	assert.EqualValues(t, 255, out.Pix[2*out.Stride+100])
	assert.EqualValues(t, 0, out.Pix[5*out.Stride+30])
}

func TestOpenHorizontalRestoresRunExtent(t *testing.T) {
	m := mask(200, 4)
	setRun(m, 1, 0, 200)

	out := OpenHorizontal(m, 50, 2)
	for x := range 200 {
		assert.EqualValues(t, 255, out.Pix[1*out.Stride+x], "x=%d", x)
	}
}

func TestOpenVerticalKeepsTallRunsOnly(t *testing.T) {
	m := mask(10, 200)
	for y := 10; y < 190; y++ {
		m.Pix[y*m.Stride+3] = 255
	}
	for y := 20; y < 40; y++ {
		m.Pix[y*m.Stride+7] = 255
	}

	out := OpenVertical(m, 50, 1)

	assert.EqualValues(t, 255, out.Pix[100*out.Stride+3])
	assert.EqualValues(t, 0, out.Pix[30*out.Stride+7])
}

func TestOrAndNot(t *testing.T) {
	a := mask(4, 1)
	b := mask(4, 1)
	a.Pix[0], a.Pix[1] = 255, 255
	b.Pix[1], b.Pix[2] = 255, 255

	union := Or(a, b)
	assert.Equal(t, []uint8{255, 255, 255, 0}, union.Pix)

	diff := AndNot(a, b)
	assert.Equal(t, []uint8{255, 0, 0, 0}, diff.Pix)
}

func TestLineKernelFloor(t *testing.T) {
	assert.Equal(t, 50, lineKernel(300, 30))
	assert.Equal(t, 100, lineKernel(3000, 30))
}
