package pdf

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Matrix represents a 2D transformation matrix [A B C D E F] mapping
// (x, y) to (A*x + C*y + E, B*x + D*y + F).
type Matrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns the identity matrix
func IdentityMatrix() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Translation returns a matrix translating by (tx, ty).
func Translation(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Multiply returns the matrix applying m first, then n.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Transform applies the matrix to a point (returns x, y coordinates)
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// TransformPoint applies the matrix to a Point and returns a new Point
func (m Matrix) TransformPoint(p Point) Point {
	x, y := m.Transform(p.X, p.Y)
	return Point{X: x, Y: y}
}

// Determinant returns AD - BC.
func (m Matrix) Determinant() float64 {
	return m.A*m.D - m.B*m.C
}

// Invert returns the inverse matrix, or false for a singular one.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Matrix{}, false
	}
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}, true
}

// expansion is the mean linear scale factor of the matrix.
func (m Matrix) expansion() float64 {
	return math.Sqrt(math.Abs(m.Determinant()))
}

func matrixFromArray(a Array) (Matrix, bool) {
	if len(a) != 6 {
		return Matrix{}, false
	}
	v, err := numbers(a)
	if err != nil {
		return Matrix{}, false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

type segKind uint8

const (
	segMove segKind = iota
	segLine
	segCubic
	segClose
)

type pathSeg struct {
	kind segKind
	pts  [3]Point
}

// Path is a sequence of subpaths made of lines and cubic Béziers.
type Path struct {
	segs  []pathSeg
	start Point
	cur   Point
	open  bool
}

// Empty reports whether the path has no segments.
func (p *Path) Empty() bool {
	return len(p.segs) == 0
}

// Current returns the current point.
func (p *Path) Current() (Point, bool) {
	return p.cur, len(p.segs) > 0
}

// Reset clears the path.
func (p *Path) Reset() {
	p.segs = p.segs[:0]
	p.open = false
}

// MoveTo starts a new subpath.
func (p *Path) MoveTo(pt Point) {
	if n := len(p.segs); n > 0 && p.segs[n-1].kind == segMove {
		p.segs[n-1].pts[0] = pt
	} else {
		p.segs = append(p.segs, pathSeg{kind: segMove, pts: [3]Point{pt}})
	}
	p.start, p.cur, p.open = pt, pt, true
}

// reopen starts an implicit subpath at the current point after a close.
func (p *Path) reopen() bool {
	if len(p.segs) == 0 {
		return false
	}
	if !p.open {
		p.MoveTo(p.cur)
	}
	return true
}

// LineTo appends a straight segment.
func (p *Path) LineTo(pt Point) {
	if !p.reopen() {
		p.MoveTo(pt)
		return
	}
	p.segs = append(p.segs, pathSeg{kind: segLine, pts: [3]Point{pt}})
	p.cur = pt
}

// CubeTo appends a cubic Bézier segment.
func (p *Path) CubeTo(c1, c2, pt Point) {
	if !p.reopen() {
		p.MoveTo(c1)
	}
	p.segs = append(p.segs, pathSeg{kind: segCubic, pts: [3]Point{c1, c2, pt}})
	p.cur = pt
}

// QuadTo appends a quadratic Bézier, stored as the equivalent cubic.
func (p *Path) QuadTo(c, pt Point) {
	p0 := p.cur
	c1 := Point{p0.X + 2.0/3.0*(c.X-p0.X), p0.Y + 2.0/3.0*(c.Y-p0.Y)}
	c2 := Point{pt.X + 2.0/3.0*(c.X-pt.X), pt.Y + 2.0/3.0*(c.Y-pt.Y)}
	p.CubeTo(c1, c2, pt)
}

// Close closes the current subpath.
func (p *Path) Close() {
	if !p.open {
		return
	}
	p.segs = append(p.segs, pathSeg{kind: segClose})
	p.cur = p.start
	p.open = false
}

// Transform returns a copy of the path mapped through m.
func (p *Path) Transform(m Matrix) *Path {
	out := &Path{segs: make([]pathSeg, len(p.segs)), open: p.open}
	for i, s := range p.segs {
		out.segs[i].kind = s.kind
		for j := range s.pts {
			out.segs[i].pts[j] = m.TransformPoint(s.pts[j])
		}
	}
	out.start = m.TransformPoint(p.start)
	out.cur = m.TransformPoint(p.cur)
	return out
}

// polyline is one flattened subpath.
type polyline struct {
	pts    []Point
	closed bool
}

// flattenTolerance is the maximum distance, in device pixels, between a
// curve and its polygonal approximation.
const flattenTolerance = 0.2

// flatten converts the path to polylines.
func (p *Path) flatten() []polyline {
	var out []polyline
	var cur *polyline
	for _, s := range p.segs {
		switch s.kind {
		case segMove:
			out = append(out, polyline{pts: []Point{s.pts[0]}})
			cur = &out[len(out)-1]
		case segLine:
			cur.pts = append(cur.pts, s.pts[0])
		case segCubic:
			p0 := cur.pts[len(cur.pts)-1]
			cur.pts = flattenCubic(cur.pts, p0, s.pts[0], s.pts[1], s.pts[2])
		case segClose:
			cur.closed = true
		}
	}
	return out
}

// flattenCubic appends points approximating the cubic to dst, excluding p0.
func flattenCubic(dst []Point, p0, p1, p2, p3 Point) []Point {
	ddx := math.Max(math.Abs(p0.X-2*p1.X+p2.X), math.Abs(p1.X-2*p2.X+p3.X))
	ddy := math.Max(math.Abs(p0.Y-2*p1.Y+p2.Y), math.Abs(p1.Y-2*p2.Y+p3.Y))
	dd := 6 * math.Hypot(ddx, ddy)
	n := int(math.Ceil(math.Sqrt(dd / (8 * flattenTolerance))))
	if n < 1 || math.IsNaN(dd) {
		n = 1
	}
	if n > 256 {
		n = 256
	}
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		mt := 1 - t
		a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
		dst = append(dst, Point{
			X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
			Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
		})
	}
	return dst
}

// appendPath adds the subpaths of q to p.
func (p *Path) appendPath(q *Path) {
	if q.Empty() {
		return
	}
	p.segs = append(p.segs, q.segs...)
	p.start, p.cur, p.open = q.start, q.cur, q.open
}
