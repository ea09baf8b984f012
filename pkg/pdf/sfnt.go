package pdf

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Embedded TrueType programs are often subset without a usable cmap. The
// truetype package refuses such fonts, so the table directory is rebuilt
// with a minimal Unicode cmap and glyphs are then addressed by index.

type sfntTable struct {
	tag  string
	data []byte
}

func sfntTables(ttf []byte) ([]sfntTable, error) {
	if len(ttf) < 12 {
		return nil, fmt.Errorf("sfnt: too short")
	}
	n := int(binary.BigEndian.Uint16(ttf[4:]))
	if len(ttf) < 12+16*n {
		return nil, fmt.Errorf("sfnt: truncated table directory")
	}
	tables := make([]sfntTable, 0, n)
	for i := 0; i < n; i++ {
		rec := ttf[12+16*i:]
		off := int(binary.BigEndian.Uint32(rec[8:]))
		length := int(binary.BigEndian.Uint32(rec[12:]))
		if off < 0 || length < 0 || off+length > len(ttf) || off+length < off {
			return nil, fmt.Errorf("sfnt: table %q out of range", rec[:4])
		}
		tables = append(tables, sfntTable{tag: string(rec[:4]), data: ttf[off : off+length]})
	}
	return tables, nil
}

// minimalCmap is a (3,1) format 4 cmap mapping nothing.
var minimalCmap = []byte{
	0, 0, 0, 1, // version, numTables
	0, 3, 0, 1, 0, 0, 0, 12, // platform 3, encoding 1, offset 12
	0, 4, 0, 24, 0, 0, // format 4, length, language
	0, 2, 0, 2, 0, 0, 0, 0, // segCountX2, searchRange, entrySelector, rangeShift
	0xFF, 0xFF, 0, 0, // endCode, reservedPad
	0xFF, 0xFF, 0, 1, 0, 0, // startCode, idDelta, idRangeOffset
}

// withMinimalCmap returns ttf with its cmap replaced.
func withMinimalCmap(ttf []byte) ([]byte, error) {
	tables, err := sfntTables(ttf)
	if err != nil {
		return nil, err
	}
	out := tables[:0:0]
	for _, t := range tables {
		if t.tag != "cmap" {
			out = append(out, t)
		}
	}
	out = append(out, sfntTable{tag: "cmap", data: minimalCmap})
	sort.Slice(out, func(i, j int) bool { return out[i].tag < out[j].tag })

	n := len(out)
	size := 12 + 16*n
	for _, t := range out {
		size += (len(t.data) + 3) &^ 3
	}
	buf := make([]byte, size)
	copy(buf, ttf[:4])
	binary.BigEndian.PutUint16(buf[4:], uint16(n))
	sr, es := 1, 0
	for sr*2 <= n {
		sr *= 2
		es++
	}
	binary.BigEndian.PutUint16(buf[6:], uint16(sr*16))
	binary.BigEndian.PutUint16(buf[8:], uint16(es))
	binary.BigEndian.PutUint16(buf[10:], uint16(n*16-sr*16))

	off := 12 + 16*n
	for i, t := range out {
		rec := buf[12+16*i:]
		copy(rec, t.tag)
		binary.BigEndian.PutUint32(rec[8:], uint32(off))
		binary.BigEndian.PutUint32(rec[12:], uint32(len(t.data)))
		copy(buf[off:], t.data)
		off += (len(t.data) + 3) &^ 3
	}
	return buf, nil
}

// macRomanGlyphs reads the (1,0) byte-encoding cmap subtable, which the
// truetype package does not use.
func macRomanGlyphs(ttf []byte) *[256]uint16 {
	tables, err := sfntTables(ttf)
	if err != nil {
		return nil
	}
	for _, t := range tables {
		if t.tag != "cmap" || len(t.data) < 4 {
			continue
		}
		cm := t.data
		n := int(binary.BigEndian.Uint16(cm[2:]))
		for i := 0; i < n && 4+8*i+8 <= len(cm); i++ {
			rec := cm[4+8*i:]
			if binary.BigEndian.Uint16(rec) != 1 || binary.BigEndian.Uint16(rec[2:]) != 0 {
				continue
			}
			off := int(binary.BigEndian.Uint32(rec[4:]))
			if off+6+256 > len(cm) || binary.BigEndian.Uint16(cm[off:]) != 0 {
				continue
			}
			var glyphs [256]uint16
			for c := range glyphs {
				glyphs[c] = uint16(cm[off+6+c])
			}
			return &glyphs
		}
	}
	return nil
}
