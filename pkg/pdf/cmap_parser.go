package pdf

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// codespaceRange 表示代码空间范围
type codespaceRange struct {
	n      int
	lo, hi uint32
}

// cmapRange maps the codes lo..hi of byte length n either to consecutive
// CIDs starting at cid, or to Unicode text.
type cmapRange struct {
	n      int
	lo, hi uint32
	cid    uint32
	uni    []rune   // bfrange with a single destination, incremented
	list   [][]rune // bfrange with an array destination
	isText bool
}

// cmap is a parsed CMap: either an encoding (code to CID) or a ToUnicode
// map (code to text).
type cmap struct {
	name      string
	codespace []codespaceRange
	ranges    []cmapRange
	useCMap   Name
}

var utf16Decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// parseCMap parses CMap program data. Unknown operators are ignored.
func parseCMap(data []byte) (*cmap, error) {
	cm := &cmap{}
	p := NewParserFromBytes(data)
	var operands []Object
	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, fmt.Errorf("cmap: %w", err)
		}
		if tok.Type == TokenEOF {
			break
		}
		if op := tok.Keyword(); op != "" {
			p.nextToken()
			switch op {
			case "endcodespacerange":
				cm.codespaceOps(operands)
			case "endcidrange":
				cm.rangeOps(operands, false)
			case "endcidchar":
				cm.charOps(operands, false)
			case "endbfrange":
				cm.rangeOps(operands, true)
			case "endbfchar":
				cm.charOps(operands, true)
			case "def":
				if len(operands) >= 2 {
					if k, ok := operands[len(operands)-2].(Name); ok && k == "CMapName" {
						if v, ok := operands[len(operands)-1].(Name); ok {
							cm.name = string(v)
						}
					}
				}
			case "usecmap":
				if len(operands) > 0 {
					if v, ok := operands[len(operands)-1].(Name); ok {
						cm.useCMap = v
					}
				}
			}
			operands = operands[:0]
			continue
		}
		obj, err := p.ParseObject()
		if err != nil {
			// The offending token is consumed; keep going.
			continue
		}
		operands = append(operands, obj)
	}
	return cm, nil
}

func codeValue(s String) (uint32, int, bool) {
	if len(s.Value) == 0 || len(s.Value) > 4 {
		return 0, 0, false
	}
	var v uint32
	for _, b := range s.Value {
		v = v<<8 | uint32(b)
	}
	return v, len(s.Value), true
}

func (cm *cmap) codespaceOps(ops []Object) {
	for i := 0; i+1 < len(ops); i += 2 {
		lo, ok1 := ops[i].(String)
		hi, ok2 := ops[i+1].(String)
		if !ok1 || !ok2 {
			continue
		}
		l, n, ok3 := codeValue(lo)
		h, m, ok4 := codeValue(hi)
		if ok3 && ok4 && n == m {
			cm.codespace = append(cm.codespace, codespaceRange{n: n, lo: l, hi: h})
		}
	}
}

func utf16Runes(b []byte) []rune {
	out, err := utf16Decoder.NewDecoder().Bytes(b)
	if err != nil {
		return nil
	}
	return []rune(string(out))
}

func (cm *cmap) rangeOps(ops []Object, text bool) {
	for i := 0; i+2 < len(ops); i += 3 {
		lo, ok1 := ops[i].(String)
		hi, ok2 := ops[i+1].(String)
		if !ok1 || !ok2 {
			continue
		}
		l, n, ok3 := codeValue(lo)
		h, m, ok4 := codeValue(hi)
		if !ok3 || !ok4 || n != m || h < l {
			continue
		}
		r := cmapRange{n: n, lo: l, hi: h, isText: text}
		switch dst := ops[i+2].(type) {
		case Integer:
			r.cid = uint32(dst)
		case String:
			r.uni = utf16Runes(dst.Value)
		case Array:
			for _, d := range dst {
				if s, ok := d.(String); ok {
					r.list = append(r.list, utf16Runes(s.Value))
				} else {
					r.list = append(r.list, nil)
				}
			}
		default:
			continue
		}
		cm.ranges = append(cm.ranges, r)
	}
}

func (cm *cmap) charOps(ops []Object, text bool) {
	for i := 0; i+1 < len(ops); i += 2 {
		src, ok := ops[i].(String)
		if !ok {
			continue
		}
		c, n, ok := codeValue(src)
		if !ok {
			continue
		}
		r := cmapRange{n: n, lo: c, hi: c, isText: text}
		switch dst := ops[i+1].(type) {
		case Integer:
			r.cid = uint32(dst)
		case String:
			r.uni = utf16Runes(dst.Value)
		case Name:
			if g := glyphRune(string(dst)); g != 0 {
				r.uni = []rune{g}
			}
		default:
			continue
		}
		cm.ranges = append(cm.ranges, r)
	}
}

// nextCode reads one character code from s using the codespace ranges.
// Without codespace ranges codes are two bytes long.
func (cm *cmap) nextCode(s []byte) (code uint32, n int) {
	if len(cm.codespace) == 0 {
		if len(s) >= 2 {
			return uint32(s[0])<<8 | uint32(s[1]), 2
		}
		return uint32(s[0]), 1
	}
	var v uint32
	for n := 1; n <= 4 && n <= len(s); n++ {
		v = v<<8 | uint32(s[n-1])
		for _, r := range cm.codespace {
			if r.n == n && v >= r.lo && v <= r.hi {
				return v, n
			}
		}
	}
	// No range matched: consume the shortest codespace length.
	shortest := 4
	for _, r := range cm.codespace {
		shortest = min(shortest, r.n)
	}
	shortest = min(shortest, len(s))
	v = 0
	for _, b := range s[:shortest] {
		v = v<<8 | uint32(b)
	}
	return v, shortest
}

func (cm *cmap) find(code uint32, n int) *cmapRange {
	// Later definitions override earlier ones.
	var hit *cmapRange
	for i := range cm.ranges {
		r := &cm.ranges[i]
		if r.n == n && code >= r.lo && code <= r.hi {
			hit = r
		}
	}
	return hit
}

// cid returns the CID of a code.
func (cm *cmap) cid(code uint32, n int) (uint32, bool) {
	r := cm.find(code, n)
	if r == nil || r.isText {
		return 0, false
	}
	return r.cid + (code - r.lo), true
}

// text returns the Unicode text of a code.
func (cm *cmap) text(code uint32, n int) []rune {
	r := cm.find(code, n)
	if r == nil || !r.isText {
		return nil
	}
	off := int(code - r.lo)
	if r.list != nil {
		if off < len(r.list) {
			return r.list[off]
		}
		return nil
	}
	if len(r.uni) == 0 {
		return nil
	}
	out := append([]rune(nil), r.uni...)
	out[len(out)-1] += rune(off)
	return out
}
