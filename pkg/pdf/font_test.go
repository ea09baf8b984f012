package pdf

import (
	"testing"

	"golang.org/x/image/font/gofont/gomono"
)

func TestIsUnicodeCMap(t *testing.T) {
	tests := map[string]bool{
		"UniGB-UCS2-H":   true,
		"UniJIS-UTF16-V": true,
		"UniKS-UCS2-V":   true,
		"Identity-H":     false,
		"GBK-EUC-H":      false,
		"UniJIS-UTF8-H":  false,
		"Adobe-GB1-UCS2": false,
		"UniCNS-UTF32-H": false,
	}
	for name, want := range tests {
		if got := isUnicodeCMap(name); got != want {
			t.Errorf("isUnicodeCMap(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFontSetAddFace(t *testing.T) {
	fs, err := LoadFontSet()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.AddFace([]byte("not a font")); err == nil {
		t.Error("AddFace accepted garbage")
	}
	if len(fs.extra) != 0 {
		t.Fatalf("%d extra faces after a failed add", len(fs.extra))
	}
	if err := fs.AddFace(gomono.TTF); err != nil {
		t.Fatalf("AddFace failed: %v", err)
	}
	if len(fs.extra) != 1 {
		t.Errorf("%d extra faces, want 1", len(fs.extra))
	}
}

func TestSubstituteSearchesExtraFaces(t *testing.T) {
	fs, err := LoadFontSet()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.AddFace(gomono.TTF); err != nil {
		t.Fatal(err)
	}
	f := &pdfFont{face: fs.sans[0], fonts: fs}

	face, gid := f.substitute('A')
	if face != fs.sans[0] || gid == 0 {
		t.Errorf("substitute('A') used %p gid %d, want the primary face", face, gid)
	}
	if _, gid := f.substitute('双'); gid != 0 {
		t.Errorf("substitute found a glyph %d for an ideograph in the Go faces", gid)
	}
	if _, gid := f.substitute(0); gid != 0 {
		t.Errorf("substitute(0) = gid %d", gid)
	}
}

func TestBlankRune(t *testing.T) {
	for _, r := range []rune{' ', '\t', 0x3000, 0x200B, 0xFEFF, 0x0001} {
		if !blankRune(r) {
			t.Errorf("blankRune(%U) = false", r)
		}
	}
	for _, r := range []rune{'A', '双', '.'} {
		if blankRune(r) {
			t.Errorf("blankRune(%U) = true", r)
		}
	}
}
