package pdf

// Text rendering modes (Tr).
const (
	textFill = iota
	textStroke
	textFillStroke
	textInvisible
	textFillClip
	textStrokeClip
	textFillStrokeClip
	textClipOnly
)

// text executes a text state, positioning or showing operator.
func (in *interpreter) text(op string, ops []Object, res Dictionary) {
	ts := &in.gs.text
	num := func(n int) ([]float64, bool) { return operandNumbers(ops, n) }

	switch op {
	case "Tf":
		if len(ops) < 2 {
			return
		}
		name, ok := ops[len(ops)-2].(Name)
		size, err := AsNumber(ops[len(ops)-1])
		if !ok || err != nil {
			return
		}
		ts.size = size
		ts.font = nil
		if obj, ok := in.resource(res, "Font", name); ok {
			ts.font = in.font(obj)
		}
		if ts.font == nil {
			in.log.Debug("missing font", "name", name)
		}
	case "Tc":
		if v, ok := num(1); ok {
			ts.charSpace = v[0]
		}
	case "Tw":
		if v, ok := num(1); ok {
			ts.wordSpace = v[0]
		}
	case "Tz":
		if v, ok := num(1); ok {
			ts.scale = v[0] / 100
		}
	case "TL":
		if v, ok := num(1); ok {
			ts.leading = v[0]
		}
	case "Ts":
		if v, ok := num(1); ok {
			ts.rise = v[0]
		}
	case "Tr":
		if v, ok := num(1); ok && v[0] >= textFill && v[0] <= textClipOnly {
			ts.mode = int(v[0])
		}
	case "Td":
		if v, ok := num(2); ok {
			in.tlm = Translation(v[0], v[1]).Multiply(in.tlm)
			in.tm = in.tlm
		}
	case "TD":
		if v, ok := num(2); ok {
			ts.leading = -v[1]
			in.tlm = Translation(v[0], v[1]).Multiply(in.tlm)
			in.tm = in.tlm
		}
	case "Tm":
		if v, ok := num(6); ok {
			in.tlm = Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			in.tm = in.tlm
		}
	case "T*":
		in.nextLine()
	case "Tj":
		if s, ok := lastString(ops); ok {
			in.show(s)
		}
	case "'":
		in.nextLine()
		if s, ok := lastString(ops); ok {
			in.show(s)
		}
	case "\"":
		if v, ok := operandNumbers(ops[:max(len(ops)-1, 0)], 2); ok {
			ts.wordSpace, ts.charSpace = v[0], v[1]
		}
		in.nextLine()
		if s, ok := lastString(ops); ok {
			in.show(s)
		}
	case "TJ":
		if len(ops) == 0 {
			return
		}
		arr, ok := ops[len(ops)-1].(Array)
		if !ok {
			return
		}
		for _, e := range arr {
			switch v := e.(type) {
			case String:
				in.show(v.Value)
			case Integer, Real:
				adj, _ := AsNumber(v)
				tx := -adj / 1000 * ts.size * ts.scale
				in.tm = Translation(tx, 0).Multiply(in.tm)
			}
		}
	}
}

func lastString(ops []Object) ([]byte, bool) {
	if len(ops) == 0 {
		return nil, false
	}
	s, ok := ops[len(ops)-1].(String)
	return s.Value, ok
}

func (in *interpreter) nextLine() {
	in.tlm = Translation(0, -in.gs.text.leading).Multiply(in.tlm)
	in.tm = in.tlm
}

// show paints a string in the current text rendering mode and advances
// the text matrix.
func (in *interpreter) show(s []byte) {
	ts := in.gs.text
	f := ts.font
	mode := ts.mode
	fill := mode == textFill || mode == textFillStroke || mode == textFillClip || mode == textFillStrokeClip
	stroke := mode == textStroke || mode == textFillStroke || mode == textStrokeClip || mode == textFillStrokeClip
	if f == nil {
		if (fill || stroke) && len(s) > 0 {
			in.lose("text without a usable font")
		}
		return
	}
	clip := mode >= textFillClip
	if clip {
		in.textClipUsed = true
	}
	if f.type3 && (fill || stroke) {
		in.lose("Type3 glyphs", "font", f.name)
	}

	for _, g := range f.glyphs(s) {
		if g.missing && (fill || stroke) {
			in.lose("glyphs missing from the fallback fonts", "font", f.name)
		}
		if !f.type3 && g.gid != 0 && mode != textInvisible {
			trm := Matrix{ts.size * ts.scale * g.hscale, 0, 0, ts.size, 0, ts.rise}.Multiply(in.tm).Multiply(in.gs.ctm)
			if outline := f.outline(g.face, g.gid); !outline.Empty() {
				dev := outline.Transform(trm)
				if fill {
					in.fillPath(dev, nonZero)
				}
				if stroke {
					in.strokePath(dev)
				}
				if clip {
					if in.textClip == nil {
						in.textClip = &Path{}
					}
					in.textClip.appendPath(dev)
				}
			}
		}
		tx := g.width*ts.size + ts.charSpace
		if g.space {
			tx += ts.wordSpace
		}
		in.tm = Translation(tx*ts.scale, 0).Multiply(in.tm)
	}
}
