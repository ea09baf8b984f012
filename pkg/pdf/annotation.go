// Package pdf provides PDF annotation support
package pdf

import "math"

// Annotation flags (PDF 32000-1, 12.5.3).
const (
	AnnotFlagInvisible = 1 << 0
	AnnotFlagHidden    = 1 << 1
	AnnotFlagPrint     = 1 << 2
	AnnotFlagNoView    = 1 << 5
)

// Annotation is an annotation together with its normal appearance.
type Annotation struct {
	Subtype Name
	Rect    Rectangle
	Flags   int64

	// Appearance is the normal appearance stream selected by the
	// appearance state, if any.
	Appearance *Stream
}

// Printable reports whether the annotation is drawn when the page is
// printed.
func (a *Annotation) Printable() bool {
	return a.Flags&AnnotFlagPrint != 0 && a.Flags&AnnotFlagHidden == 0 && a.Subtype != "Popup"
}

// Annotations returns the page's annotations in Annots order. Entries that
// are not dictionaries or have no usable Rect are left out.
func (p *Page) Annotations() []Annotation {
	if p.err != nil {
		return nil
	}
	d := p.doc
	annots, ok := d.Resolve(p.Dictionary.Get("Annots")).(Array)
	if !ok {
		return nil
	}
	var out []Annotation
	for _, obj := range annots {
		dict, ok := d.Resolve(obj).(Dictionary)
		if !ok {
			continue
		}
		rect, ok := d.rectangle(dict.Get("Rect"))
		if !ok {
			continue
		}
		a := Annotation{Rect: rect}
		a.Subtype, _ = d.Resolve(dict.Get("Subtype")).(Name)
		if f, err := AsNumber(d.Resolve(dict.Get("F"))); err == nil {
			a.Flags = int64(f)
		}
		a.Appearance = d.normalAppearance(dict)
		out = append(out, a)
	}
	return out
}

// normalAppearance picks /AP /N, indexed by /AS when N is a state
// dictionary.
func (d *Document) normalAppearance(annot Dictionary) *Stream {
	ap, ok := d.Resolve(annot.Get("AP")).(Dictionary)
	if !ok {
		return nil
	}
	switch n := d.Resolve(ap.Get("N")).(type) {
	case Stream:
		return &n
	case Dictionary:
		state, ok := d.Resolve(annot.Get("AS")).(Name)
		if !ok {
			return nil
		}
		if s, ok := d.Resolve(n.Get(string(state))).(Stream); ok {
			return &s
		}
	}
	return nil
}

// appearanceMatrix maps the form's transformed bounding box onto rect.
func (d *Document) appearanceMatrix(form Stream, rect Rectangle) (Matrix, bool) {
	bbox, ok := d.rectangle(form.Dictionary.Get("BBox"))
	if !ok {
		return Matrix{}, false
	}
	m := IdentityMatrix()
	if a, ok := d.Resolve(form.Dictionary.Get("Matrix")).(Array); ok {
		if fm, ok := matrixFromArray(a); ok {
			m = fm
		}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range []Point{{bbox.LLX, bbox.LLY}, {bbox.URX, bbox.LLY}, {bbox.URX, bbox.URY}, {bbox.LLX, bbox.URY}} {
		p := m.TransformPoint(c)
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if maxX-minX <= 0 || maxY-minY <= 0 {
		return Matrix{}, false
	}
	sx := rect.Width() / (maxX - minX)
	sy := rect.Height() / (maxY - minY)
	return Matrix{sx, 0, 0, sy, rect.LLX - minX*sx, rect.LLY - minY*sy}, true
}

// annotations draws the appearance streams of printable annotations over
// the page content.
func (in *interpreter) annotations(page *Page, base Matrix) {
	for _, a := range page.Annotations() {
		if !a.Printable() || a.Appearance == nil {
			continue
		}
		m, ok := in.r.doc.appearanceMatrix(*a.Appearance, a.Rect)
		if !ok {
			continue
		}
		in.gs = newGraphicsState(base)
		in.stack = in.stack[:0]
		in.path.Reset()
		in.form(*a.Appearance, page.Resources, m, 0)
	}
}
