// Package pdf provides PDF rendering capabilities
package pdf

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DefaultScale is the number of device pixels per PDF unit.
const DefaultScale = 2

// maxPagePixels bounds the canvas of one page.
const maxPagePixels = 1 << 28

// maxFormDepth bounds the nesting of form XObjects.
const maxFormDepth = 16

// RenderOptions contains options for rendering PDF pages
type RenderOptions struct {
	Scale  float64  // Device pixels per PDF unit (default 2)
	Fonts  *FontSet // Faces for fonts that are not embedded (default DefaultFontSet)
	Logger *slog.Logger

	// NoAnnotations skips the appearance streams of printable annotations.
	NoAnnotations bool

	// Lenient renders pages whose content cannot be drawn completely,
	// leaving the missing parts blank. By default such pages fail with an
	// *UnsupportedContentError.
	Lenient bool
}

// PageRenderer renders PDF pages to pixmaps. It is not safe for
// concurrent use.
type PageRenderer struct {
	doc     *Document
	options RenderOptions
	fonts   map[Reference]*pdfFont
}

// NewPageRenderer creates a new page renderer
func NewPageRenderer(doc *Document, options RenderOptions) *PageRenderer {
	if options.Scale <= 0 {
		options.Scale = DefaultScale
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &PageRenderer{
		doc:     doc,
		options: options,
		fonts:   make(map[Reference]*pdfFont),
	}
}

// PixelSize returns the size in pixels of a rendered box.
func (r *PageRenderer) PixelSize(box Rectangle) (int, int) {
	s := r.options.Scale
	return int(math.Ceil(box.Width() * s)), int(math.Ceil(box.Height() * s))
}

// RenderPage renders the unrotated media box of the page at a zero-based
// index onto white. Rendering the same unmodified page twice yields the
// same pixels.
func (r *PageRenderer) RenderPage(index int) (*Pixmap, error) {
	page, err := r.doc.Page(index)
	if err != nil {
		return nil, err
	}
	if err := page.Err(); err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	if r.options.Fonts == nil {
		fs, err := DefaultFontSet()
		if err != nil {
			return nil, err
		}
		r.options.Fonts = fs
	}

	box := page.MediaBox
	width, height := r.PixelSize(box)
	if width <= 0 || height <= 0 || width*height > maxPagePixels {
		return nil, fmt.Errorf("page %d: canvas size %dx%d", index, width, height)
	}
	data, err := page.Contents()
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	ops, err := NewContentStreamParser(data).ParseOperations()
	if err != nil {
		return nil, fmt.Errorf("page %d: content stream: %w", index, err)
	}

	s := r.options.Scale
	base := Matrix{s, 0, 0, -s, -box.LLX * s, box.URY * s}
	in := &interpreter{
		r:       r,
		c:       newCanvas(width, height),
		log:     r.options.Logger.With("page", index),
		skipped: make(map[string]bool),
		gs:      newGraphicsState(base),
	}
	in.run(ops, page.Resources, 0)
	if !r.options.NoAnnotations {
		in.annotations(page, base)
	}
	if len(in.lost) > 0 && !r.options.Lenient {
		return nil, &UnsupportedContentError{Page: index, Constructs: in.lost}
	}
	return PixmapFromImage(in.c.img), nil
}

// interpreter executes content streams onto a canvas.
type interpreter struct {
	r       *PageRenderer
	c       *canvas
	log     *slog.Logger
	skipped map[string]bool
	lost    []string

	gs    graphicsState
	stack []graphicsState

	path        Path
	clipPending bool
	clipRule    fillRule

	// Text object state, reset by BT.
	tm, tlm      Matrix
	textClip     *Path
	textClipUsed bool
}

// skip logs an unsupported construct once per page.
func (in *interpreter) skip(what string, args ...any) {
	if in.skipped[what] {
		return
	}
	in.skipped[what] = true
	in.log.Debug("skipping unsupported construct", append([]any{"construct", what}, args...)...)
}

// lose records a construct that would have left ink on the page but cannot
// be drawn.
func (in *interpreter) lose(what string, args ...any) {
	key := "lost " + what
	if in.skipped[key] {
		return
	}
	in.skipped[key] = true
	in.lost = append(in.lost, what)
	in.log.Warn("content cannot be rendered", append([]any{"construct", what}, args...)...)
}

// run executes operations. q/Q nesting is confined to ops: unbalanced
// saves are restored on return.
func (in *interpreter) run(ops []Operation, res Dictionary, depth int) {
	base := len(in.stack)
	for _, op := range ops {
		in.exec(op, res, depth, base)
	}
	if len(in.stack) > base {
		in.gs = in.stack[base]
		in.stack = in.stack[:base]
	}
}

// operandNumbers returns the last n operands as numbers.
func operandNumbers(ops []Object, n int) ([]float64, bool) {
	if len(ops) < n {
		return nil, false
	}
	v, err := numbers(Array(ops[len(ops)-n:]))
	return v, err == nil
}

func lastName(ops []Object) (Name, bool) {
	if len(ops) == 0 {
		return "", false
	}
	n, ok := ops[len(ops)-1].(Name)
	return n, ok
}

func (in *interpreter) exec(op Operation, res Dictionary, depth, base int) {
	ops := op.Operands
	num := func(n int) ([]float64, bool) { return operandNumbers(ops, n) }
	pt := func(v []float64, i int) Point { return Point{v[i], v[i+1]} }

	switch op.Operator {
	// Graphics state
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > base {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if v, ok := num(6); ok {
			in.gs.ctm = Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(in.gs.ctm)
		}
	case "w":
		if v, ok := num(1); ok {
			in.gs.lineWidth = v[0]
		}
	case "J":
		if v, ok := num(1); ok && v[0] >= 0 && v[0] <= 2 {
			in.gs.lineCap = int(v[0])
		}
	case "j":
		if v, ok := num(1); ok && v[0] >= 0 && v[0] <= 2 {
			in.gs.lineJoin = int(v[0])
		}
	case "M":
		if v, ok := num(1); ok {
			in.gs.miterLimit = v[0]
		}
	case "d":
		if len(ops) >= 2 {
			a, ok := ops[len(ops)-2].(Array)
			phase, err := AsNumber(ops[len(ops)-1])
			if ok && err == nil {
				in.gs.setDash(a, phase)
			}
		}
	case "gs":
		if name, ok := lastName(ops); ok {
			in.extGState(name, res)
		}

	// Path construction
	case "m":
		if v, ok := num(2); ok {
			in.path.MoveTo(pt(v, 0))
		}
	case "l":
		if v, ok := num(2); ok {
			in.path.LineTo(pt(v, 0))
		}
	case "c":
		if v, ok := num(6); ok {
			in.path.CubeTo(pt(v, 0), pt(v, 2), pt(v, 4))
		}
	case "v":
		if v, ok := num(4); ok {
			cur, _ := in.path.Current()
			in.path.CubeTo(cur, pt(v, 0), pt(v, 2))
		}
	case "y":
		if v, ok := num(4); ok {
			in.path.CubeTo(pt(v, 0), pt(v, 2), pt(v, 2))
		}
	case "h":
		in.path.Close()
	case "re":
		if v, ok := num(4); ok {
			x, y, w, h := v[0], v[1], v[2], v[3]
			in.path.MoveTo(Point{x, y})
			in.path.LineTo(Point{x + w, y})
			in.path.LineTo(Point{x + w, y + h})
			in.path.LineTo(Point{x, y + h})
			in.path.Close()
		}

	// Path painting
	case "S":
		in.paintPath(false, false, true, nonZero)
	case "s":
		in.paintPath(true, false, true, nonZero)
	case "f", "F":
		in.paintPath(false, true, false, nonZero)
	case "f*":
		in.paintPath(false, true, false, evenOdd)
	case "B":
		in.paintPath(false, true, true, nonZero)
	case "B*":
		in.paintPath(false, true, true, evenOdd)
	case "b":
		in.paintPath(true, true, true, nonZero)
	case "b*":
		in.paintPath(true, true, true, evenOdd)
	case "n":
		in.paintPath(false, false, false, nonZero)
	case "W":
		in.clipPending, in.clipRule = true, nonZero
	case "W*":
		in.clipPending, in.clipRule = true, evenOdd

	// Color
	case "g":
		if v, ok := num(1); ok {
			in.setDeviceColor(deviceGray, v, true)
		}
	case "G":
		if v, ok := num(1); ok {
			in.setDeviceColor(deviceGray, v, false)
		}
	case "rg":
		if v, ok := num(3); ok {
			in.setDeviceColor(deviceRGB, v, true)
		}
	case "RG":
		if v, ok := num(3); ok {
			in.setDeviceColor(deviceRGB, v, false)
		}
	case "k":
		if v, ok := num(4); ok {
			in.setDeviceColor(deviceCMYK, v, true)
		}
	case "K":
		if v, ok := num(4); ok {
			in.setDeviceColor(deviceCMYK, v, false)
		}
	case "cs":
		in.setColorSpace(ops, res, true)
	case "CS":
		in.setColorSpace(ops, res, false)
	case "sc", "scn":
		in.setColor(ops, true)
	case "SC", "SCN":
		in.setColor(ops, false)

	// XObjects, images and shadings
	case "Do":
		if name, ok := lastName(ops); ok {
			in.xobject(name, res, depth)
		}
	case "BI":
		if len(ops) == 1 {
			if s, ok := ops[0].(Stream); ok {
				in.image(s, res)
			}
		}
	case "sh":
		in.lose("shading")

	// Text
	case "BT":
		in.tm, in.tlm = IdentityMatrix(), IdentityMatrix()
		in.textClip, in.textClipUsed = nil, false
	case "ET":
		if in.textClipUsed {
			clip := in.textClip
			if clip == nil {
				clip = &Path{}
			}
			in.gs.clip = in.c.clipMask(clip, nonZero, in.gs.clip)
		}
		in.textClip, in.textClipUsed = nil, false
	case "Tf", "Tc", "Tw", "Tz", "TL", "Ts", "Tr", "Td", "TD", "Tm", "T*", "Tj", "TJ", "'", "\"":
		in.text(op.Operator, ops, res)

	case "ri", "i", "d0", "d1", "BX", "EX", "MP", "DP", "BMC", "BDC", "EMC":
	default:
		in.skip("operator " + op.Operator)
	}
}

// paintPath paints the current path and then ends it, applying a pending
// clip.
func (in *interpreter) paintPath(closePath, fill, stroke bool, rule fillRule) {
	if closePath {
		in.path.Close()
	}
	dev := in.path.Transform(in.gs.ctm)
	if fill {
		in.fillPath(dev, rule)
	}
	if stroke {
		in.strokePath(dev)
	}
	if in.clipPending {
		in.gs.clip = in.c.clipMask(dev, in.clipRule, in.gs.clip)
		in.clipPending = false
	}
	in.path.Reset()
}

// fillPath fills a device-space path with the fill color.
func (in *interpreter) fillPath(dev *Path, rule fillRule) {
	if in.gs.fillCS.none || dev.Empty() {
		return
	}
	if in.gs.fillPattern {
		in.lose("pattern fill")
		return
	}
	in.c.fill(dev, rule, in.gs.fillRGB(), in.gs.fillAlpha, in.gs.clip)
}

// strokePath strokes a device-space path with the stroke color.
func (in *interpreter) strokePath(dev *Path) {
	if in.gs.strokeCS.none || dev.Empty() {
		return
	}
	if in.gs.strokePattern {
		in.lose("pattern stroke")
		return
	}
	outline := strokeOutline(dev.flatten(), in.gs.strokeStyle())
	mask, r := in.c.coverage(outline, nonZero)
	in.c.paint(mask, r, in.gs.strokeRGB(), in.gs.strokeAlpha, in.gs.clip)
}

func (in *interpreter) setDeviceColor(cs *colorSpace, v []float64, fill bool) {
	if fill {
		in.gs.fillCS, in.gs.fill, in.gs.fillPattern = cs, v, false
	} else {
		in.gs.strokeCS, in.gs.stroke, in.gs.strokePattern = cs, v, false
	}
}

func (in *interpreter) setColorSpace(ops []Object, res Dictionary, fill bool) {
	if len(ops) == 0 {
		return
	}
	cs, err := in.r.doc.resolveColorSpace(ops[len(ops)-1], res, 0)
	if err != nil {
		in.skip("color space", "error", err)
		return
	}
	if fill {
		in.gs.fillCS, in.gs.fill, in.gs.fillPattern = cs, cs.initial(), cs.family == csPattern
	} else {
		in.gs.strokeCS, in.gs.stroke, in.gs.strokePattern = cs, cs.initial(), cs.family == csPattern
	}
}

// setColor handles sc and scn. Components replace the color slice, which
// saved states may share.
func (in *interpreter) setColor(ops []Object, fill bool) {
	cs := in.gs.strokeCS
	if fill {
		cs = in.gs.fillCS
	}
	if cs.family == csPattern {
		return
	}
	v := make([]float64, 0, len(ops))
	for _, o := range ops {
		if f, err := AsNumber(o); err == nil {
			v = append(v, f)
		}
	}
	if len(v) == 0 {
		return
	}
	if fill {
		in.gs.fill = v
	} else {
		in.gs.stroke = v
	}
}

// resource returns the unresolved entry name of a resource category.
func (in *interpreter) resource(res Dictionary, category string, name Name) (Object, bool) {
	cat, ok := in.r.doc.Resolve(res.Get(category)).(Dictionary)
	if !ok {
		return nil, false
	}
	obj := cat.Get(string(name))
	return obj, obj != nil
}

func (in *interpreter) extGState(name Name, res Dictionary) {
	obj, ok := in.resource(res, "ExtGState", name)
	if !ok {
		return
	}
	d := in.r.doc
	egs, ok := d.Resolve(obj).(Dictionary)
	if !ok {
		return
	}
	num := func(key string) (float64, bool) {
		v, err := AsNumber(d.Resolve(egs.Get(key)))
		return v, err == nil
	}
	if v, ok := num("LW"); ok {
		in.gs.lineWidth = v
	}
	if v, ok := num("LC"); ok && v >= 0 && v <= 2 {
		in.gs.lineCap = int(v)
	}
	if v, ok := num("LJ"); ok && v >= 0 && v <= 2 {
		in.gs.lineJoin = int(v)
	}
	if v, ok := num("ML"); ok {
		in.gs.miterLimit = v
	}
	if v, ok := num("CA"); ok {
		in.gs.strokeAlpha = clamp01(v)
	}
	if v, ok := num("ca"); ok {
		in.gs.fillAlpha = clamp01(v)
	}
	if dash, ok := d.Resolve(egs.Get("D")).(Array); ok && len(dash) == 2 {
		a, ok := d.Resolve(dash[0]).(Array)
		phase, err := AsNumber(d.Resolve(dash[1]))
		if ok && err == nil {
			in.gs.setDash(a, phase)
		}
	}
	if f, ok := d.Resolve(egs.Get("Font")).(Array); ok && len(f) == 2 {
		if size, err := AsNumber(d.Resolve(f[1])); err == nil {
			in.gs.text.font = in.font(f[0])
			in.gs.text.size = size
		}
	}
	if sm := d.Resolve(egs.Get("SMask")); sm != nil {
		if n, ok := sm.(Name); !ok || n != "None" {
			in.skip("soft mask")
		}
	}
}

// font loads a font resource, caching indirect fonts across pages.
func (in *interpreter) font(obj Object) *pdfFont {
	ref, isRef := obj.(Reference)
	if isRef {
		if f, ok := in.r.fonts[ref]; ok {
			return f
		}
	}
	var f *pdfFont
	if dict, ok := in.r.doc.Resolve(obj).(Dictionary); ok {
		var err error
		if f, err = in.r.doc.loadFont(dict, in.r.options.Fonts); err != nil {
			in.log.Debug("font load failed", "error", err)
			f = nil
		}
	}
	if isRef {
		in.r.fonts[ref] = f
	}
	return f
}

func (in *interpreter) xobject(name Name, res Dictionary, depth int) {
	obj, ok := in.resource(res, "XObject", name)
	if !ok {
		in.log.Debug("missing XObject", "name", name)
		return
	}
	s, ok := in.r.doc.Resolve(obj).(Stream)
	if !ok {
		return
	}
	switch subtype, _ := s.Dictionary.GetName("Subtype"); subtype {
	case "Image":
		in.image(s, res)
	case "Form":
		in.form(s, res, IdentityMatrix(), depth)
	default:
		in.skip("XObject " + string(subtype))
	}
}

// form runs a form XObject. extra is applied between the form matrix and
// the CTM.
func (in *interpreter) form(s Stream, res Dictionary, extra Matrix, depth int) {
	if depth >= maxFormDepth {
		in.lose("deeply nested form")
		return
	}
	d := in.r.doc
	data, err := s.Decode()
	if err != nil {
		in.lose("undecodable form", "error", err)
		return
	}
	ops, err := NewContentStreamParser(data).ParseOperations()
	if err != nil {
		in.lose("malformed form content", "error", err)
	}

	savedGS, savedTM, savedTLM := in.gs, in.tm, in.tlm
	savedClip, savedClipUsed := in.textClip, in.textClipUsed
	defer func() {
		in.gs, in.tm, in.tlm = savedGS, savedTM, savedTLM
		in.textClip, in.textClipUsed = savedClip, savedClipUsed
	}()

	m := IdentityMatrix()
	if a, ok := d.Resolve(s.Dictionary.Get("Matrix")).(Array); ok {
		if fm, ok := matrixFromArray(a); ok {
			m = fm
		}
	}
	in.gs.ctm = m.Multiply(extra).Multiply(in.gs.ctm)
	if bbox, ok := d.rectangle(s.Dictionary.Get("BBox")); ok {
		in.clipRect(bbox)
	}
	if fr, ok := d.Resolve(s.Dictionary.Get("Resources")).(Dictionary); ok {
		res = fr
	}
	in.path.Reset()
	in.run(ops, res, depth+1)
	in.path.Reset()
}

// clipRect intersects the clip with a user-space rectangle. A rectangle
// covering the whole canvas leaves the clip as it is.
func (in *interpreter) clipRect(box Rectangle) {
	var p Path
	p.MoveTo(Point{box.LLX, box.LLY})
	p.LineTo(Point{box.URX, box.LLY})
	p.LineTo(Point{box.URX, box.URY})
	p.LineTo(Point{box.LLX, box.URY})
	p.Close()
	dev := p.Transform(in.gs.ctm)
	if in.c.covers(dev) {
		return
	}
	in.gs.clip = in.c.clipMask(dev, nonZero, in.gs.clip)
}

func (in *interpreter) image(s Stream, res Dictionary) {
	if math.Abs(in.gs.ctm.Determinant()) < 1e-9 {
		return
	}
	si, err := in.r.doc.decodeImage(s, res)
	if err != nil {
		if errors.Is(err, errJPX) {
			in.lose("JPXDecode image")
		} else {
			in.lose("undecodable image", "error", err)
		}
		return
	}
	in.drawImage(si)
}

// drawImage maps the image onto the unit square of user space.
func (in *interpreter) drawImage(si *sampledImage) {
	m := in.gs.ctm
	b := si.bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	r := in.c.polyBounds([]polyline{{pts: []Point{
		m.TransformPoint(Point{0, 0}), m.TransformPoint(Point{1, 0}),
		m.TransformPoint(Point{1, 1}), m.TransformPoint(Point{0, 1}),
	}}})
	if r.Empty() {
		return
	}
	// Image row 0 is the top edge, at v = 1.
	s2d := f64.Aff3{m.A / w, -m.C / h, m.C + m.E, m.B / w, -m.D / h, m.D + m.F}

	var scaler draw.Interpolator = draw.BiLinear
	upscale := math.Hypot(m.A, m.B) > w && math.Hypot(m.C, m.D) > h
	if upscale && !si.interpolate {
		scaler = draw.NearestNeighbor
	}

	if si.stencil != nil {
		if in.gs.fillCS.none {
			return
		}
		if in.gs.fillPattern {
			in.lose("pattern fill")
			return
		}
		mask := image.NewAlpha(r)
		scaler.Transform(mask, s2d, si.stencil, b, draw.Src, nil)
		in.c.paint(mask, r, in.gs.fillRGB(), in.gs.fillAlpha, in.gs.clip)
		return
	}
	tmp := image.NewNRGBA(r)
	scaler.Transform(tmp, s2d, si.rgba, b, draw.Src, nil)
	in.c.composite(tmp, r, in.gs.fillAlpha, in.gs.clip)
}
