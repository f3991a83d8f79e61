package imgproc

import (
	"container/list"
	"image"

	"github.com/fieldops/ticketscan/internal/utils"
)

// Component is a connected foreground region of a binary mask.
type Component struct {
	Box  utils.Box
	Area int // foreground pixel count
}

// Components finds 8-connected foreground components (255 pixels) in a mask
// and returns their bounding boxes. Components with fewer than minArea
// pixels are discarded as noise.
func Components(mask *image.Gray, minArea int) []Component {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	visited := make([]bool, w*h)
	var comps []Component

	for y := range h {
		for x := range w {
			idx := y*w + x
			if visited[idx] || mask.Pix[y*mask.Stride+x] != 255 {
				continue
			}
			c := componentBFS(mask, visited, w, h, x, y)
			if c.Area >= minArea {
				comps = append(comps, c)
			}
		}
	}
	return comps
}

func componentBFS(mask *image.Gray, visited []bool, w, h, startX, startY int) Component {
	minX, minY, maxX, maxY := startX, startY, startX, startY
	area := 0

	q := list.New()
	q.PushBack(startY*w + startX)
	visited[startY*w+startX] = true

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w

		area++
		if cx < minX {
			minX = cx
		}
		if cy < minY {
			minY = cy
		}
		if cx > maxX {
			maxX = cx
		}
		if cy > maxY {
			maxY = cy
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := cx+dx, cy+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if visited[ni] || mask.Pix[ny*mask.Stride+nx] != 255 {
					continue
				}
				visited[ni] = true
				q.PushBack(ni)
			}
		}
	}

	return Component{
		Box:  utils.NewBox(float64(minX), float64(minY), float64(maxX+1), float64(maxY+1)),
		Area: area,
	}
}
