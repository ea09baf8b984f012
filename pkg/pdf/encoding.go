package pdf

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// simpleEncoding maps single-byte codes to Unicode; 0 means unmapped.
type simpleEncoding [256]rune

// standardHigh 是 StandardEncoding 与 ASCII 不同的码位
var standardHigh = map[byte]rune{
	0x27: '’', 0x60: '‘',
	0xA1: '¡', 0xA2: '¢', 0xA3: '£', 0xA4: '⁄', 0xA5: '¥', 0xA6: 'ƒ', 0xA7: '§',
	0xA8: '¤', 0xA9: '\'', 0xAA: '“', 0xAB: '«', 0xAC: '‹', 0xAD: '›',
	0xAE: 'ﬁ', 0xAF: 'ﬂ', 0xB1: '–', 0xB2: '†', 0xB3: '‡',
	0xB4: '·', 0xB6: '¶', 0xB7: '•', 0xB8: '‚', 0xB9: '„', 0xBA: '”',
	0xBB: '»', 0xBC: '…', 0xBD: '‰', 0xBF: '¿', 0xC1: '`', 0xC2: '´',
	0xC3: 'ˆ', 0xC4: '˜', 0xC5: '¯', 0xC6: '˘', 0xC7: '˙', 0xC8: '¨',
	0xCA: '˚', 0xCB: '¸', 0xCD: '˝', 0xCE: '˛', 0xCF: 'ˇ', 0xD0: '—',
	0xE1: 'Æ', 0xE3: 'ª', 0xE8: 'Ł', 0xE9: 'Ø', 0xEA: 'Œ', 0xEB: 'º',
	0xF1: 'æ', 0xF5: 'ı', 0xF8: 'ł', 0xF9: 'ø', 0xFA: 'œ', 0xFB: 'ß',
}

func standardEncoding() *simpleEncoding {
	var e simpleEncoding
	for c := 0x20; c < 0x7F; c++ {
		e[c] = rune(c)
	}
	for c, r := range standardHigh {
		e[c] = r
	}
	return &e
}

func charmapEncoding(cm *charmap.Charmap) *simpleEncoding {
	var e simpleEncoding
	for c := 0x20; c < 256; c++ {
		if r := cm.DecodeByte(byte(c)); r != utf8.RuneError {
			e[c] = r
		}
	}
	return &e
}

// baseEncoding returns the named base encoding, or nil for an unknown name.
func baseEncoding(name Name) *simpleEncoding {
	switch name {
	case "WinAnsiEncoding":
		e := charmapEncoding(charmap.Windows1252)
		// WinAnsi 把未定义码位当作 bullet
		for _, c := range []byte{0x7F, 0x81, 0x8D, 0x8F, 0x90, 0x9D} {
			e[c] = '•'
		}
		return e
	case "MacRomanEncoding":
		return charmapEncoding(charmap.Macintosh)
	case "StandardEncoding":
		return standardEncoding()
	}
	return nil
}

// glyphNames maps the glyph names used in Differences arrays that are not
// single letters or composed accented letters.
var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "period": '.', "slash": '/', "zero": '0', "one": '1', "two": '2',
	"three": '3', "four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8',
	"nine": '9', "colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "exclamdown": '¡', "cent": '¢', "sterling": '£',
	"fraction": '⁄', "yen": '¥', "florin": 'ƒ', "section": '§',
	"currency": '¤', "quotedblleft": '“', "guillemotleft": '«',
	"guilsinglleft": '‹', "guilsinglright": '›', "fi": 'ﬁ', "fl": 'ﬂ',
	"endash": '–', "dagger": '†', "daggerdbl": '‡', "periodcentered": '·',
	"paragraph": '¶', "bullet": '•', "quotesinglbase": '‚',
	"quotedblbase": '„', "quotedblright": '”', "guillemotright": '»',
	"ellipsis": '…', "perthousand": '‰', "questiondown": '¿', "acute": '´',
	"circumflex": 'ˆ', "tilde": '˜', "macron": '¯', "breve": '˘',
	"dotaccent": '˙', "dieresis": '¨', "ring": '˚', "cedilla": '¸',
	"hungarumlaut": '˝', "ogonek": '˛', "caron": 'ˇ', "emdash": '—',
	"AE": 'Æ', "ae": 'æ', "ordfeminine": 'ª', "ordmasculine": 'º', "Lslash": 'Ł',
	"lslash": 'ł', "Oslash": 'Ø', "oslash": 'ø', "OE": 'Œ', "oe": 'œ', "dotlessi": 'ı',
	"germandbls": 'ß', "Eth": 'Ð', "eth": 'ð', "Thorn": 'Þ', "thorn": 'þ',
	"brokenbar": '¦', "copyright": '©', "registered": '®', "trademark": '™',
	"degree": '°', "plusminus": '±', "multiply": '×', "divide": '÷', "minus": '−',
	"mu": 'µ', "logicalnot": '¬', "onehalf": '½', "onequarter": '¼',
	"threequarters": '¾', "onesuperior": '¹', "twosuperior": '²', "threesuperior": '³',
	"Euro": '€', "nbspace": '\u00A0', "sfthyphen": '\u00AD', "minute": '′',
	"second": '″', "arrowright": '→', "arrowleft": '←',
	"arrowup": '↑', "arrowdown": '↓', "checkmark": '✓',
}

// accentMarks maps accent suffixes of composite glyph names to combining
// marks.
var accentMarks = []struct {
	suffix string
	mark   rune
}{
	{"acute", '\u0301'}, {"grave", '\u0300'}, {"circumflex", '\u0302'},
	{"tilde", '\u0303'}, {"dieresis", '\u0308'}, {"ring", '\u030A'},
	{"cedilla", '\u0327'}, {"caron", '\u030C'}, {"macron", '\u0304'},
	{"breve", '\u0306'}, {"ogonek", '\u0328'}, {"dotaccent", '\u0307'},
	{"hungarumlaut", '\u030B'}, {"commaaccent", '\u0326'},
}

// glyphRune returns the Unicode value of a glyph name, or 0.
func glyphRune(name string) rune {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := glyphNames[name]; ok {
		return r
	}
	if name == "" {
		return 0
	}
	if len(name) == 1 {
		return rune(name[0])
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v)
		}
	}
	if name[0] == 'u' && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil && v <= utf8.MaxRune {
			return rune(v)
		}
	}
	// Aacute, ccedilla, ...: base letter plus accent, composed.
	for _, a := range accentMarks {
		base, ok := strings.CutSuffix(name, a.suffix)
		if !ok || len(base) != 1 {
			continue
		}
		s := norm.NFC.String(base + string(a.mark))
		if r, size := utf8.DecodeRuneInString(s); size == len(s) {
			return r
		}
	}
	return 0
}

// applyDifferences overlays a Differences array onto e.
func applyDifferences(e *simpleEncoding, diffs Array) {
	code := 0
	for _, obj := range diffs {
		switch v := obj.(type) {
		case Integer:
			code = int(v)
		case Name:
			if code >= 0 && code < 256 {
				e[code] = glyphRune(string(v))
			}
			code++
		}
	}
}
