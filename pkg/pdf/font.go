package pdf

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// FontSet holds the faces used for fonts that are not embedded or whose
// program cannot be used. The Go fonts are compiled in, so rendering never
// depends on the fonts installed on the host.
type FontSet struct {
	sans [4]*truetype.Font // regular, bold, italic, bold italic
	mono [4]*truetype.Font

	// extra faces are searched, in order, for characters the chosen face
	// lacks, such as CJK ideographs.
	extra []*truetype.Font
}

// LoadFontSet parses the fallback faces.
func LoadFontSet() (*FontSet, error) {
	fs := &FontSet{}
	for i, ttf := range [][]byte{goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF} {
		f, err := truetype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("fallback font %d: %w", i, err)
		}
		fs.sans[i] = f
	}
	for i, ttf := range [][]byte{gomono.TTF, gomonobold.TTF, gomonoitalic.TTF, gomonobolditalic.TTF} {
		f, err := truetype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("fallback mono font %d: %w", i, err)
		}
		fs.mono[i] = f
	}
	return fs, nil
}

// AddFace adds a TrueType face searched for characters the Go fonts do
// not cover.
func (fs *FontSet) AddFace(ttf []byte) error {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("fallback face: %w", err)
	}
	fs.extra = append(fs.extra, f)
	return nil
}

var defaultFonts struct {
	once sync.Once
	set  *FontSet
	err  error
}

// DefaultFontSet returns a process-wide FontSet, loading it on first use.
func DefaultFontSet() (*FontSet, error) {
	defaultFonts.once.Do(func() {
		defaultFonts.set, defaultFonts.err = LoadFontSet()
	})
	return defaultFonts.set, defaultFonts.err
}

// Font descriptor flags.
const (
	flagFixedPitch = 1 << 0
	flagSymbolic   = 1 << 2
	flagItalic     = 1 << 6
	flagForceBold  = 1 << 18
)

// pick chooses a fallback face from the font name and descriptor flags.
func (fs *FontSet) pick(baseFont string, flags int64) *truetype.Font {
	if i := strings.IndexByte(baseFont, '+'); i == 6 {
		baseFont = baseFont[i+1:]
	}
	name := strings.ToLower(baseFont)
	style := 0
	if flags&flagForceBold != 0 || strings.Contains(name, "bold") || strings.Contains(name, "black") ||
		strings.Contains(name, "heavy") || strings.Contains(name, "semibold") || strings.Contains(name, "demi") {
		style |= 1
	}
	if flags&flagItalic != 0 || strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		style |= 2
	}
	if flags&flagFixedPitch != 0 || strings.Contains(name, "courier") || strings.Contains(name, "mono") {
		return fs.mono[style]
	}
	return fs.sans[style]
}

// pdfFont is a font resource prepared for rendering.
type pdfFont struct {
	name      string
	face      *truetype.Font
	fonts     *FontSet
	embedded  bool
	symbolic  bool
	composite bool
	type3     bool

	// Simple fonts
	enc          *simpleEncoding
	firstChar    int
	widths       []float64
	missingWidth float64
	macGlyphs    *[256]uint16
	t3Scale      float64

	// Composite fonts
	encoding *cmap // nil for Identity
	ucs2     bool  // codes are UTF-16 code units (Uni*-UCS2-*, Uni*-UTF16-*)
	cidToGID []byte
	cidW     map[uint32]float64
	dw       float64

	toUnicode *cmap

	mu       sync.Mutex
	outlines map[outlineKey]*Path
	buf      truetype.GlyphBuf
}

type outlineKey struct {
	face *truetype.Font
	gid  truetype.Index
}

// glyph is one shown character.
type glyph struct {
	face *truetype.Font
	gid  truetype.Index

	missing bool    // printable, but no available face has it
	width   float64 // advance in text space for a font size of 1
	space   bool    // single-byte code 32, subject to word spacing
	hscale  float64 // horizontal stretch applied to the outline
}

// loadFont builds a pdfFont from a font dictionary.
func (d *Document) loadFont(dict Dictionary, fonts *FontSet) (*pdfFont, error) {
	subtype, _ := dict.GetName("Subtype")
	base, _ := d.Resolve(dict.Get("BaseFont")).(Name)
	f := &pdfFont{name: string(base), fonts: fonts, outlines: make(map[outlineKey]*Path)}

	if tu, ok := d.Resolve(dict.Get("ToUnicode")).(Stream); ok {
		if data, err := tu.Decode(); err == nil {
			if cm, err := parseCMap(data); err == nil {
				f.toUnicode = cm
			}
		}
	}

	switch subtype {
	case "Type0":
		return f, d.loadCompositeFont(f, dict, fonts)
	case "Type3":
		f.type3 = true
		f.t3Scale = 0.001
		if m, ok := d.Resolve(dict.Get("FontMatrix")).(Array); ok {
			if fm, ok := matrixFromArray(m); ok {
				f.t3Scale = fm.A
			}
		}
		d.loadSimpleMetrics(f, dict, nil)
		return f, nil
	}

	desc, _ := d.Resolve(dict.Get("FontDescriptor")).(Dictionary)
	flags, _ := desc.GetInt("Flags")
	f.symbolic = flags&flagSymbolic != 0

	if ff, ok := d.Resolve(desc.Get("FontFile2")).(Stream); ok {
		f.useProgram(ff)
	} else if ff, ok := d.Resolve(desc.Get("FontFile3")).(Stream); ok {
		// OpenType with TrueType outlines; CFF programs fall back.
		if st, _ := ff.Dictionary.GetName("Subtype"); st == "OpenType" {
			f.useProgram(ff)
		}
	}
	if f.face == nil {
		f.face = fonts.pick(f.name, flags)
	}

	f.enc = f.simpleEncoding(d, dict, subtype)
	d.loadSimpleMetrics(f, dict, desc)
	return f, nil
}

// useProgram parses an embedded TrueType program.
func (f *pdfFont) useProgram(s Stream) {
	data, err := s.Decode()
	if err != nil {
		return
	}
	face, err := truetype.Parse(data)
	if err != nil {
		patched, perr := withMinimalCmap(data)
		if perr != nil {
			return
		}
		if face, err = truetype.Parse(patched); err != nil {
			return
		}
	}
	f.face = face
	f.embedded = true
	f.macGlyphs = macRomanGlyphs(data)
}

func (f *pdfFont) simpleEncoding(d *Document, dict Dictionary, subtype Name) *simpleEncoding {
	var enc *simpleEncoding
	var diffs Array
	switch e := d.Resolve(dict.Get("Encoding")).(type) {
	case Name:
		enc = baseEncoding(e)
	case Dictionary:
		if b, ok := d.Resolve(e.Get("BaseEncoding")).(Name); ok {
			enc = baseEncoding(b)
		}
		diffs, _ = d.Resolve(e.Get("Differences")).(Array)
	}
	if enc == nil {
		if f.symbolic && (f.embedded || diffs == nil) {
			// Symbolic fonts use their built-in encoding.
			if diffs == nil {
				return nil
			}
			enc = &simpleEncoding{}
		} else if subtype == "TrueType" {
			enc = baseEncoding("WinAnsiEncoding")
		} else {
			enc = standardEncoding()
		}
	}
	if diffs != nil {
		applyDifferences(enc, diffs)
	}
	return enc
}

func (d *Document) loadSimpleMetrics(f *pdfFont, dict, desc Dictionary) {
	fc, _ := dict.GetInt("FirstChar")
	f.firstChar = int(fc)
	if w, ok := d.Resolve(dict.Get("Widths")).(Array); ok {
		f.widths = make([]float64, len(w))
		for i, v := range w {
			f.widths[i], _ = AsNumber(d.Resolve(v))
		}
	}
	if desc != nil {
		f.missingWidth, _ = AsNumber(d.Resolve(desc.Get("MissingWidth")))
	}
}

func (d *Document) loadCompositeFont(f *pdfFont, dict Dictionary, fonts *FontSet) error {
	f.composite = true
	f.dw = 1000

	// Predefined CMaps other than Identity and the Unicode ones are not
	// bundled; their codes are read as two-byte CIDs too.
	if n, ok := d.Resolve(dict.Get("Encoding")).(Name); ok {
		f.ucs2 = isUnicodeCMap(string(n))
	} else if e, ok := d.Resolve(dict.Get("Encoding")).(Stream); ok {
		data, err := e.Decode()
		if err != nil {
			return fmt.Errorf("font %s: encoding CMap: %w", f.name, err)
		}
		cm, err := parseCMap(data)
		if err != nil {
			return fmt.Errorf("font %s: encoding CMap: %w", f.name, err)
		}
		if len(cm.ranges) > 0 {
			f.encoding = cm
		}
	}

	descendants, ok := d.Resolve(dict.Get("DescendantFonts")).(Array)
	if !ok || len(descendants) == 0 {
		return fmt.Errorf("font %s: %w", f.name, &TypeError{Want: ObjArray, Got: TypeOf(d.Resolve(dict.Get("DescendantFonts")))})
	}
	cid, err := AsDict(d.Resolve(descendants[0]))
	if err != nil {
		return fmt.Errorf("font %s: descendant: %w", f.name, err)
	}

	if v, err := AsNumber(d.Resolve(cid.Get("DW"))); err == nil {
		f.dw = v
	}
	if w, ok := d.Resolve(cid.Get("W")).(Array); ok {
		f.cidW = d.parseCIDWidths(w)
	}

	desc, _ := d.Resolve(cid.Get("FontDescriptor")).(Dictionary)
	flags, _ := desc.GetInt("Flags")
	if ff, ok := d.Resolve(desc.Get("FontFile2")).(Stream); ok {
		f.useProgram(ff)
		if m, ok := d.Resolve(cid.Get("CIDToGIDMap")).(Stream); ok {
			if data, err := m.Decode(); err == nil {
				f.cidToGID = data
			}
		}
	}
	if f.face == nil {
		f.face = fonts.pick(f.name, flags)
	}
	return nil
}

// parseCIDWidths reads a W array: c [w1 w2 ...] or c1 c2 w.
func (d *Document) parseCIDWidths(w Array) map[uint32]float64 {
	out := make(map[uint32]float64)
	for i := 0; i < len(w); {
		first, err := AsNumber(d.Resolve(w[i]))
		if err != nil || i+1 >= len(w) {
			break
		}
		if list, ok := d.Resolve(w[i+1]).(Array); ok {
			for j, v := range list {
				if n, err := AsNumber(d.Resolve(v)); err == nil {
					out[uint32(first)+uint32(j)] = n
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last, err1 := AsNumber(d.Resolve(w[i+1]))
		width, err2 := AsNumber(d.Resolve(w[i+2]))
		if err1 != nil || err2 != nil {
			break
		}
		for c := uint32(first); c <= uint32(last) && c-uint32(first) < 1<<16; c++ {
			out[c] = width
		}
		i += 3
	}
	return out
}

// unicode returns the text of a code for fallback glyph lookup.
func (f *pdfFont) unicode(code uint32, n int) rune {
	if f.toUnicode != nil {
		if r := f.toUnicode.text(code, n); len(r) > 0 {
			return r[0]
		}
	}
	if f.ucs2 && n == 2 && (code < 0xD800 || code > 0xDFFF) {
		return rune(code)
	}
	if !f.composite && f.enc != nil && code < 256 {
		return f.enc[code]
	}
	return 0
}

// glyphs decodes a shown string.
func (f *pdfFont) glyphs(s []byte) []glyph {
	var out []glyph
	for len(s) > 0 {
		var code uint32
		n := 1
		switch {
		case !f.composite:
			code = uint32(s[0])
		case f.encoding != nil:
			code, n = f.encoding.nextCode(s)
		default:
			if len(s) >= 2 {
				code, n = uint32(s[0])<<8|uint32(s[1]), 2
			} else {
				code = uint32(s[0])
			}
		}
		s = s[n:]
		if f.composite {
			out = append(out, f.compositeGlyph(code, n))
		} else {
			out = append(out, f.simpleGlyph(code))
		}
	}
	return out
}

func (f *pdfFont) simpleGlyph(code uint32) glyph {
	g := glyph{space: code == 32, hscale: 1}
	w, haveWidth := 0.0, false
	if i := int(code) - f.firstChar; i >= 0 && i < len(f.widths) {
		w, haveWidth = f.widths[i], true
	}
	if f.type3 {
		g.width = w * f.t3Scale
		return g
	}

	if f.embedded {
		g.face, g.gid = f.face, f.simpleGID(code)
	} else {
		r := f.unicode(code, 1)
		if r == 0 {
			r = rune(code)
		}
		g.face, g.gid = f.substitute(r)
		g.missing = g.gid == 0 && !blankRune(r)
	}
	switch {
	case haveWidth:
		g.width = w / 1000
	case f.missingWidth > 0:
		g.width = f.missingWidth / 1000
	default:
		g.width = f.advance(g.face, g.gid)
	}
	if !f.embedded && haveWidth && g.gid != 0 {
		g.hscale = fitScale(g.width, f.advance(g.face, g.gid))
	}
	return g
}

// simpleGID maps a code to a glyph of the embedded program.
func (f *pdfFont) simpleGID(code uint32) truetype.Index {
	if !f.symbolic && f.enc != nil {
		if r := f.enc[code]; r != 0 {
			if gid := f.face.Index(r); gid != 0 {
				return gid
			}
		}
	}
	if gid := f.face.Index(rune(0xF000 + code)); gid != 0 {
		return gid
	}
	if gid := f.face.Index(rune(code)); gid != 0 {
		return gid
	}
	if f.macGlyphs != nil {
		return truetype.Index(f.macGlyphs[code&0xFF])
	}
	return 0
}

func (f *pdfFont) compositeGlyph(code uint32, n int) glyph {
	g := glyph{space: code == 32 && n == 1, hscale: 1}
	cid := code
	if f.encoding != nil {
		if c, ok := f.encoding.cid(code, n); ok {
			cid = c
		} else {
			cid = 0
		}
	}

	// W is keyed by CID, which a Unicode CMap does not reveal.
	w, haveWidth := f.cidW[cid]
	if !haveWidth || f.ucs2 {
		w = f.dw
	}
	g.width = w / 1000

	g.face = f.face
	switch {
	case f.embedded && f.cidToGID != nil:
		if i := int(cid) * 2; i+1 < len(f.cidToGID) {
			g.gid = truetype.Index(uint16(f.cidToGID[i])<<8 | uint16(f.cidToGID[i+1]))
		}
	case f.embedded:
		g.gid = truetype.Index(cid)
	default:
		r := f.unicode(code, n)
		g.face, g.gid = f.substitute(r)
		g.missing = g.gid == 0 && (r == 0 || !blankRune(r))
		if g.gid != 0 {
			g.hscale = fitScale(g.width, f.advance(g.face, g.gid))
		}
	}
	return g
}

// substitute finds a glyph for r in the fallback face, then in the extra
// faces of the font set.
func (f *pdfFont) substitute(r rune) (*truetype.Font, truetype.Index) {
	if r == 0 {
		return f.face, 0
	}
	if gid := f.face.Index(r); gid != 0 {
		return f.face, gid
	}
	if f.fonts != nil {
		for _, face := range f.fonts.extra {
			if gid := face.Index(r); gid != 0 {
				return face, gid
			}
		}
	}
	return f.face, 0
}

// blankRune reports whether r leaves no ink.
func blankRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r) || r == 0x200B || r == 0xFEFF
}

// isUnicodeCMap reports whether a predefined CMap maps UTF-16 code units
// to CIDs, e.g. UniGB-UCS2-H or UniJIS-UTF16-V.
func isUnicodeCMap(name string) bool {
	return strings.HasPrefix(name, "Uni") &&
		(strings.Contains(name, "-UCS2-") || strings.Contains(name, "-UTF16-"))
}

// fitScale stretches a substitute glyph to the advance the document
// expects, within limits.
func fitScale(want, have float64) float64 {
	if want <= 0 || have <= 0 {
		return 1
	}
	return max(0.5, min(2, want/have))
}

// advance returns a face's advance width for a size of 1.
func (f *pdfFont) advance(face *truetype.Font, gid truetype.Index) float64 {
	upem := face.FUnitsPerEm()
	hm := face.HMetric(fixed.Int26_6(upem), gid)
	return float64(hm.AdvanceWidth) / float64(upem)
}

// outline returns the glyph outline in text space for a size of 1. The
// result is shared and must not be modified.
func (f *pdfFont) outline(face *truetype.Font, gid truetype.Index) *Path {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := outlineKey{face, gid}
	if p, ok := f.outlines[key]; ok {
		return p
	}
	p := &Path{}
	// A scale of one em in 26.6 units yields points in font units.
	upem := face.FUnitsPerEm()
	if err := f.buf.Load(face, fixed.Int26_6(upem), gid, font.HintingNone); err == nil {
		k := 1 / float64(upem)
		start := 0
		for _, end := range f.buf.Ends {
			addContour(p, f.buf.Points[start:end], k)
			start = end
		}
	}
	f.outlines[key] = p
	return p
}

// addContour appends a quadratic TrueType contour, handling implied
// on-curve points between consecutive off-curve points.
func addContour(p *Path, pts []truetype.Point, k float64) {
	if len(pts) == 0 {
		return
	}
	pt := func(q truetype.Point) Point { return Point{float64(q.X) * k, float64(q.Y) * k} }
	on := func(q truetype.Point) bool { return q.Flags&1 != 0 }

	start := pt(pts[0])
	rest := pts[1:]
	if !on(pts[0]) {
		last := pts[len(pts)-1]
		if on(last) {
			start = pt(last)
			rest = pts[:len(pts)-1]
		} else {
			l := pt(last)
			start = Point{(start.X + l.X) / 2, (start.Y + l.Y) / 2}
			rest = pts
		}
	}
	p.MoveTo(start)
	q0, on0 := start, true
	for _, raw := range rest {
		q := pt(raw)
		if on(raw) {
			if on0 {
				p.LineTo(q)
			} else {
				p.QuadTo(q0, q)
			}
		} else if !on0 {
			mid := Point{(q0.X + q.X) / 2, (q0.Y + q.Y) / 2}
			p.QuadTo(q0, mid)
		}
		q0, on0 = q, on(raw)
	}
	if on0 {
		p.LineTo(start)
	} else {
		p.QuadTo(q0, start)
	}
	p.Close()
}
