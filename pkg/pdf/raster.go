package pdf

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

type fillRule int

const (
	nonZero fillRule = iota
	evenOdd
)

// canvas is the device surface pages are painted onto.
type canvas struct {
	img    *image.RGBA
	bounds image.Rectangle
	z      *vector.Rasterizer
}

func newCanvas(width, height int) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return &canvas{img: img, bounds: img.Bounds(), z: &vector.Rasterizer{}}
}

// polyBounds returns the pixel rectangle covering the polylines, clipped to
// the canvas.
func (c *canvas) polyBounds(polys []polyline) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pl := range polys {
		for _, p := range pl.pts {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if minX > maxX || math.IsNaN(minX+minY+maxX+maxY) {
		return image.Rectangle{}
	}
	// Clamp before converting so huge coordinates cannot overflow.
	lo := func(v float64) int { return int(math.Floor(math.Max(v, -1))) }
	hi := func(v float64, limit int) int { return int(math.Ceil(math.Min(v, float64(limit+1)))) }
	r := image.Rect(lo(minX), lo(minY), hi(maxX, c.bounds.Max.X), hi(maxY, c.bounds.Max.Y))
	return r.Intersect(c.bounds)
}

// coverage rasterizes closed polygons into an anti-aliased mask over the
// returned rectangle. A nil mask means nothing is covered.
func (c *canvas) coverage(polys []polyline, rule fillRule) (*image.Alpha, image.Rectangle) {
	r := c.polyBounds(polys)
	if r.Empty() {
		return nil, r
	}
	mask := image.NewAlpha(r)
	if rule == evenOdd {
		scanlineFill(mask, polys)
		return mask, r
	}

	clipR := rectF{float64(r.Min.X) - 1, float64(r.Min.Y) - 1, float64(r.Max.X) + 1, float64(r.Max.Y) + 1}
	c.z.Reset(r.Dx(), r.Dy())
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	drawn := false
	for _, pl := range polys {
		pts := clipPolygon(pl.pts, clipR)
		if len(pts) < 3 {
			continue
		}
		c.z.MoveTo(float32(pts[0].X-ox), float32(pts[0].Y-oy))
		for _, p := range pts[1:] {
			c.z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		c.z.ClosePath()
		drawn = true
	}
	if !drawn {
		return nil, r
	}
	c.z.Draw(mask, r, image.Opaque, image.Point{})
	return mask, r
}

type rectF struct{ minX, minY, maxX, maxY float64 }

// clipPolygon clips a closed polygon against an axis-aligned rectangle
// (Sutherland-Hodgman). The winding number inside the rectangle is
// preserved, which is all a coverage mask needs.
func clipPolygon(pts []Point, r rectF) []Point {
	inside := true
	for _, p := range pts {
		if p.X < r.minX || p.X > r.maxX || p.Y < r.minY || p.Y > r.maxY {
			inside = false
			break
		}
	}
	if inside {
		return pts
	}
	type edge struct {
		in    func(Point) bool
		cross func(a, b Point) Point
	}
	edges := [4]edge{
		{func(p Point) bool { return p.X >= r.minX }, func(a, b Point) Point {
			t := (r.minX - a.X) / (b.X - a.X)
			return Point{r.minX, a.Y + t*(b.Y-a.Y)}
		}},
		{func(p Point) bool { return p.X <= r.maxX }, func(a, b Point) Point {
			t := (r.maxX - a.X) / (b.X - a.X)
			return Point{r.maxX, a.Y + t*(b.Y-a.Y)}
		}},
		{func(p Point) bool { return p.Y >= r.minY }, func(a, b Point) Point {
			t := (r.minY - a.Y) / (b.Y - a.Y)
			return Point{a.X + t*(b.X-a.X), r.minY}
		}},
		{func(p Point) bool { return p.Y <= r.maxY }, func(a, b Point) Point {
			t := (r.maxY - a.Y) / (b.Y - a.Y)
			return Point{a.X + t*(b.X-a.X), r.maxY}
		}},
	}
	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			break
		}
		in := out
		out = make([]Point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.in(cur):
				if !e.in(prev) {
					out = append(out, e.cross(prev, cur))
				}
				out = append(out, cur)
			case e.in(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

// scanlineSamples is the number of sub-scanlines per pixel row used by the
// even-odd filler.
const scanlineSamples = 5

// scanlineFill accumulates even-odd coverage of the polygons into mask.
// Each pixel row is sampled at several sub-scanlines; horizontal coverage
// of span ends is exact.
func scanlineFill(mask *image.Alpha, polys []polyline) {
	r := mask.Bounds()
	acc := make([]float64, r.Dx()+1)
	var xs []float64

	for y := r.Min.Y; y < r.Max.Y; y++ {
		clear(acc)
		hit := false
		for s := 0; s < scanlineSamples; s++ {
			sy := float64(y) + (float64(s)+0.5)/scanlineSamples
			xs = xs[:0]
			for _, pl := range polys {
				n := len(pl.pts)
				if n < 2 {
					continue
				}
				for i := 0; i < n; i++ {
					p1, p2 := pl.pts[i], pl.pts[(i+1)%n]
					if (p1.Y <= sy && p2.Y > sy) || (p2.Y <= sy && p1.Y > sy) {
						t := (sy - p1.Y) / (p2.Y - p1.Y)
						xs = append(xs, p1.X+t*(p2.X-p1.X))
					}
				}
			}
			if len(xs) < 2 {
				continue
			}
			sort.Float64s(xs)
			for i := 0; i+1 < len(xs); i += 2 {
				addSpan(acc, xs[i]-float64(r.Min.X), xs[i+1]-float64(r.Min.X))
				hit = true
			}
		}
		if !hit {
			continue
		}
		row := mask.Pix[mask.PixOffset(r.Min.X, y):]
		for x := 0; x < r.Dx(); x++ {
			v := acc[x] / scanlineSamples
			if v > 1 {
				v = 1
			}
			row[x] = uint8(v*255 + 0.5)
		}
	}
}

// addSpan adds coverage of [x0, x1) to a row accumulator indexed from 0.
func addSpan(acc []float64, x0, x1 float64) {
	w := float64(len(acc) - 1)
	x0 = math.Max(0, math.Min(x0, w))
	x1 = math.Max(0, math.Min(x1, w))
	if x1 <= x0 {
		return
	}
	i0, i1 := int(x0), int(x1)
	if i0 == i1 {
		acc[i0] += x1 - x0
		return
	}
	acc[i0] += float64(i0+1) - x0
	for i := i0 + 1; i < i1; i++ {
		acc[i]++
	}
	if i1 < len(acc) {
		acc[i1] += x1 - float64(i1)
	}
}

// applyClip multiplies mask by the clip mask over r.
func applyClip(mask *image.Alpha, r image.Rectangle, clip *image.Alpha) {
	if clip == nil {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		m := mask.Pix[mask.PixOffset(r.Min.X, y):]
		c := clip.Pix[clip.PixOffset(r.Min.X, y):]
		for x := 0; x < r.Dx(); x++ {
			m[x] = uint8((uint32(m[x])*uint32(c[x]) + 127) / 255)
		}
	}
}

// paint composites a solid color through mask.
func (c *canvas) paint(mask *image.Alpha, r image.Rectangle, rgb [3]float64, alpha float64, clip *image.Alpha) {
	if mask == nil || alpha <= 0 {
		return
	}
	applyClip(mask, r, clip)
	src := image.NewUniform(color.NRGBA{
		R: unitToByte(rgb[0]),
		G: unitToByte(rgb[1]),
		B: unitToByte(rgb[2]),
		A: unitToByte(alpha),
	})
	draw.DrawMask(c.img, r, src, image.Point{}, mask, r.Min, draw.Over)
}

// fill paints the interior of a path.
func (c *canvas) fill(p *Path, rule fillRule, rgb [3]float64, alpha float64, clip *image.Alpha) {
	mask, r := c.coverage(p.flatten(), rule)
	c.paint(mask, r, rgb, alpha, clip)
}

// clipMask intersects the current clip with a path's interior, returning a
// new full-canvas mask. prev is never modified.
func (c *canvas) clipMask(p *Path, rule fillRule, prev *image.Alpha) *image.Alpha {
	out := image.NewAlpha(c.bounds)
	mask, r := c.coverage(p.flatten(), rule)
	if mask == nil {
		return out
	}
	applyClip(mask, r, prev)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(out.Pix[out.PixOffset(r.Min.X, y):out.PixOffset(r.Max.X, y)], mask.Pix[mask.PixOffset(r.Min.X, y):])
	}
	return out
}

func unitToByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// covers reports whether a device-space path contains the whole canvas.
// Only axis-aligned rectangles are recognised.
func (c *canvas) covers(p *Path) bool {
	polys := p.flatten()
	if len(polys) != 1 || len(polys[0].pts) < 4 || len(polys[0].pts) > 5 {
		return false
	}
	pts := polys[0].pts[:4]
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, q := range pts {
		minX, maxX = math.Min(minX, q.X), math.Max(maxX, q.X)
		minY, maxY = math.Min(minY, q.Y), math.Max(maxY, q.Y)
	}
	for _, q := range pts {
		if (q.X != minX && q.X != maxX) || (q.Y != minY && q.Y != maxY) {
			return false
		}
	}
	return minX <= float64(c.bounds.Min.X) && minY <= float64(c.bounds.Min.Y) &&
		maxX >= float64(c.bounds.Max.X) && maxY >= float64(c.bounds.Max.Y)
}

// composite draws src over the canvas within r, scaled by alpha and the
// clip mask.
func (c *canvas) composite(src image.Image, r image.Rectangle, alpha float64, clip *image.Alpha) {
	if alpha <= 0 {
		return
	}
	var mask image.Image
	switch {
	case clip != nil && alpha < 1:
		m := image.NewAlpha(r)
		a := uint32(unitToByte(alpha))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst := m.Pix[m.PixOffset(r.Min.X, y):]
			cl := clip.Pix[clip.PixOffset(r.Min.X, y):]
			for x := 0; x < r.Dx(); x++ {
				dst[x] = uint8((uint32(cl[x])*a + 127) / 255)
			}
		}
		mask = m
	case clip != nil:
		mask = clip
	case alpha < 1:
		mask = image.NewUniform(color.Alpha{A: unitToByte(alpha)})
	}
	draw.DrawMask(c.img, r, src, r.Min, mask, r.Min, draw.Over)
}
