package pdf

import "math"

// Line cap and join styles as numbered by the J and j operators.
const (
	capButt   = 0
	capRound  = 1
	capSquare = 2

	joinMiter = 0
	joinRound = 1
	joinBevel = 2
)

// strokeStyle holds stroke parameters in device units.
type strokeStyle struct {
	width      float64
	cap        int
	join       int
	miterLimit float64
	dash       []float64
	dashPhase  float64
}

// strokeOutline converts polylines to closed polygons covering the stroke.
// Every polygon is emitted with the same orientation so that a nonzero fill
// of the result is their union.
func strokeOutline(polys []polyline, st strokeStyle) []polyline {
	if len(st.dash) > 0 {
		polys = dashPolylines(polys, st.dash, st.dashPhase)
	}
	hw := st.width / 2
	var out []polyline
	emit := func(pts ...Point) {
		out = append(out, polyline{pts: orient(pts), closed: true})
	}

	for _, pl := range polys {
		pts := dedupe(pl.pts)
		if len(pts) == 1 || (pl.closed && len(pts) == 2 && pts[0] == pts[1]) {
			// A zero-length subpath draws only its caps.
			p := pts[0]
			switch st.cap {
			case capRound:
				emit(circle(p, hw)...)
			case capSquare:
				emit(Point{p.X - hw, p.Y - hw}, Point{p.X + hw, p.Y - hw}, Point{p.X + hw, p.Y + hw}, Point{p.X - hw, p.Y + hw})
			}
			continue
		}
		closed := pl.closed && len(pts) > 2
		if closed && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}

		if !closed && st.cap == capSquare {
			pts = append([]Point(nil), pts...)
			pts[0] = extend(pts[1], pts[0], hw)
			n := len(pts)
			pts[n-1] = extend(pts[n-2], pts[n-1], hw)
		}

		for i := 0; i+1 < len(pts); i++ {
			a, b := pts[i], pts[i+1]
			n := normal(a, b, hw)
			emit(Point{a.X + n.X, a.Y + n.Y}, Point{b.X + n.X, b.Y + n.Y}, Point{b.X - n.X, b.Y - n.Y}, Point{a.X - n.X, a.Y - n.Y})
		}

		// Joins at interior vertices, plus the closing vertex.
		for i := 1; i+1 < len(pts); i++ {
			emitJoin(emit, pts[i-1], pts[i], pts[i+1], hw, st)
		}
		if closed && len(pts) > 2 {
			emitJoin(emit, pts[len(pts)-2], pts[0], pts[1], hw, st)
		}

		if !closed && st.cap == capRound {
			emit(circle(pts[0], hw)...)
			emit(circle(pts[len(pts)-1], hw)...)
		}
	}
	return out
}

func emitJoin(emit func(...Point), a, p, b Point, hw float64, st strokeStyle) {
	if st.join == joinRound {
		emit(circle(p, hw)...)
		return
	}
	n1 := normal(a, p, hw)
	n2 := normal(p, b, hw)
	d1 := Point{p.X - a.X, p.Y - a.Y}
	d2 := Point{b.X - p.X, b.Y - p.Y}
	cross := d1.X*d2.Y - d1.Y*d2.X
	if cross == 0 {
		return
	}
	// The join is on the side opposite the turn.
	s := 1.0
	if cross > 0 {
		s = -1
	}
	o1 := Point{p.X + s*n1.X, p.Y + s*n1.Y}
	o2 := Point{p.X + s*n2.X, p.Y + s*n2.Y}

	if st.join == joinMiter {
		u := Point{(n1.X + n2.X) / 2, (n1.Y + n2.Y) / 2}
		ul := math.Hypot(u.X, u.Y)
		if ul > 0 && hw/ul <= st.miterLimit {
			k := s * hw * hw / (ul * ul)
			tip := Point{p.X + u.X*k, p.Y + u.Y*k}
			emit(p, o1, tip, o2)
			return
		}
	}
	emit(p, o1, o2)
}

// normal returns the left normal of a→b scaled to length hw.
func normal(a, b Point, hw float64) Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return Point{}
	}
	return Point{-dy / l * hw, dx / l * hw}
}

// extend moves p away from from by d along their direction.
func extend(from, p Point, d float64) Point {
	dx, dy := p.X-from.X, p.Y-from.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return p
	}
	return Point{p.X + dx/l*d, p.Y + dy/l*d}
}

func dedupe(pts []Point) []Point {
	out := pts[:1:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

func circle(c Point, r float64) []Point {
	n := int(math.Ceil(2 * math.Pi * r / 1.5))
	if n < 8 {
		n = 8
	}
	if n > 128 {
		n = 128
	}
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	return pts
}

// orient returns pts in counter-clockwise order (positive shoelace area in
// a y-down space reads clockwise on screen; only consistency matters).
func orient(pts []Point) []Point {
	var area float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// dashPolylines splits polylines into the "on" intervals of a dash
// pattern. Each subpath restarts the pattern at the phase.
func dashPolylines(polys []polyline, dash []float64, phase float64) []polyline {
	var total float64
	for _, d := range dash {
		if d < 0 {
			return polys
		}
		total += d
	}
	if total <= 0 {
		return polys
	}

	var out []polyline
	for _, pl := range polys {
		pts := pl.pts
		if pl.closed && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
			pts = append(append([]Point(nil), pts...), pts[0])
		}
		if len(pts) < 2 {
			out = append(out, pl)
			continue
		}

		idx := 0
		left := math.Mod(phase, total)
		if left < 0 {
			left += total
		}
		for left >= dash[idx] {
			left -= dash[idx]
			idx = (idx + 1) % len(dash)
		}
		left = dash[idx] - left
		on := idx%2 == 0

		var cur []Point
		if on {
			cur = []Point{pts[0]}
		}
		for i := 0; i+1 < len(pts); i++ {
			a, b := pts[i], pts[i+1]
			segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
			pos := 0.0
			for segLen-pos > left {
				pos += left
				t := pos / segLen
				p := Point{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
				if on {
					cur = append(cur, p)
					out = append(out, polyline{pts: cur})
					cur = nil
				} else {
					cur = []Point{p}
				}
				on = !on
				idx = (idx + 1) % len(dash)
				left = dash[idx]
			}
			left -= segLen - pos
			if on {
				cur = append(cur, b)
			}
		}
		if on && len(cur) > 1 {
			out = append(out, polyline{pts: cur})
		}
	}
	return out
}
