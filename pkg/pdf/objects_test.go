package pdf

import (
	"bytes"
	"encoding/ascii85"
	"errors"
	"testing"

	"github.com/hhrutter/lzw"
)

func TestObjectStrings(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{Integer(42), "42"},
		{Real(3.25), "3.25"},
		{Boolean(true), "true"},
		{Boolean(false), "false"},
		{Null{}, "null"},
		{Name("Type"), "/Type"},
		{String{Value: []byte("a(b)")}, `(a\(b\))`},
		{String{Value: []byte{0xAB, 0x01}, IsHex: true}, "<AB01>"},
		{Array{Integer(1), Name("X"), Reference{ObjectNumber: 5}}, "[1 /X 5 0 R]"},
		{Dictionary{"B": Integer(2), "A": Integer(1)}, "<</A 1 /B 2>>"},
	}
	for _, tt := range tests {
		if got := tt.obj.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.obj, got, tt.want)
		}
	}
}

func TestObjectTypes(t *testing.T) {
	tests := []struct {
		obj  Object
		want ObjectType
	}{
		{Integer(1), ObjInteger},
		{Real(1), ObjReal},
		{Boolean(true), ObjBoolean},
		{Null{}, ObjNull},
		{nil, ObjNull},
		{Name("N"), ObjName},
		{String{}, ObjString},
		{Array{}, ObjArray},
		{Dictionary{}, ObjDictionary},
		{Stream{}, ObjStream},
		{Reference{}, ObjReference},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.obj); got != tt.want {
			t.Errorf("TypeOf(%#v) = %v, want %v", tt.obj, got, tt.want)
		}
	}
}

func TestAccessors(t *testing.T) {
	if _, err := AsDict(Stream{Dictionary: Dictionary{}}); err == nil {
		t.Error("a stream must not pass as a dictionary")
	}
	var te *TypeError
	if _, err := AsArray(Integer(1)); !errors.As(err, &te) || te.Want != ObjArray || te.Got != ObjInteger {
		t.Errorf("AsArray(Integer) error = %v", err)
	}
	if f, err := AsNumber(Integer(3)); err != nil || f != 3 {
		t.Errorf("AsNumber(Integer(3)) = %v, %v", f, err)
	}
	if f, err := AsNumber(Real(0.5)); err != nil || f != 0.5 {
		t.Errorf("AsNumber(Real(0.5)) = %v, %v", f, err)
	}
	if _, err := AsNumber(Name("x")); err == nil {
		t.Error("AsNumber(Name) should fail")
	}
	if _, err := AsName(nil); err == nil {
		t.Error("AsName(nil) should fail")
	}
	if r, err := AsReference(Reference{ObjectNumber: 7}); err != nil || r.ObjectNumber != 7 {
		t.Errorf("AsReference = %v, %v", r, err)
	}
	if _, err := AsStream(Dictionary{}); err == nil {
		t.Error("AsStream(Dictionary) should fail")
	}
}

func TestDictionaryHelpers(t *testing.T) {
	d := Dictionary{
		"Int":   Integer(3),
		"Real":  Real(2.5),
		"Name":  Name("N"),
		"Array": Array{Integer(1)},
		"Dict":  Dictionary{"K": Null{}},
	}
	if v, ok := d.GetInt("Int"); !ok || v != 3 {
		t.Errorf("GetInt(Int) = %v, %v", v, ok)
	}
	if v, ok := d.GetInt("Real"); !ok || v != 2 {
		t.Errorf("GetInt(Real) = %v, %v", v, ok)
	}
	if v, ok := d.GetFloat("Int"); !ok || v != 3 {
		t.Errorf("GetFloat(Int) = %v, %v", v, ok)
	}
	if _, ok := d.GetName("Int"); ok {
		t.Error("GetName(Int) should fail")
	}
	if a, ok := d.GetArray("Array"); !ok || len(a) != 1 {
		t.Errorf("GetArray = %v, %v", a, ok)
	}
	if _, ok := d.GetDict("Missing"); ok {
		t.Error("GetDict(Missing) should fail")
	}

	c := d.Clone()
	c.Set("Int", Integer(4))
	if v, _ := d.GetInt("Int"); v != 3 {
		t.Error("Clone shares storage with the original")
	}
	if keys := d.Keys(); keys[0] != "Array" || keys[len(keys)-1] != "Real" {
		t.Errorf("Keys not sorted: %v", keys)
	}
	var nilDict Dictionary
	if nilDict.Clone() == nil {
		t.Error("Clone of nil dictionary must be usable")
	}
}

func TestStringText(t *testing.T) {
	tests := []struct {
		value []byte
		want  string
	}{
		{[]byte("Hello"), "Hello"},
		{[]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}, "Hi"},
		{[]byte{0xEF, 0xBB, 0xBF, 'o', 'k'}, "ok"},
		{[]byte{'c', 'a', 'f', 0xE9}, "café"},
	}
	for _, tt := range tests {
		if got := (String{Value: tt.value}).Text(); got != tt.want {
			t.Errorf("Text(%x) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestASCIIHexDecode(t *testing.T) {
	tests := []struct {
		input, want []byte
	}{
		{[]byte("48656C6C6F>"), []byte("Hello")},
		{[]byte("48 65 6c 6C 6F>"), []byte("Hello")},
		{[]byte("ABC>"), []byte{0xAB, 0xC0}},
	}
	for _, tt := range tests {
		got, err := asciiHexDecode(tt.input)
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("asciiHexDecode(%s) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
	if _, err := asciiHexDecode([]byte("4X>")); err == nil {
		t.Error("expected error for invalid hex digit")
	}
}

func TestASCII85Decode(t *testing.T) {
	for _, plain := range []string{"Hello World", "", "abcd", "\x00\x00\x00\x00tail"} {
		enc := make([]byte, ascii85.MaxEncodedLen(len(plain)))
		enc = enc[:ascii85.Encode(enc, []byte(plain))]
		got, err := ascii85Decode(append(enc, '~', '>'))
		if err != nil || string(got) != plain {
			t.Errorf("ascii85Decode(%s) = %q, %v; want %q", enc, got, err, plain)
		}
	}
}

func TestRunLengthDecode(t *testing.T) {
	got, err := runLengthDecode([]byte{2, 'A', 'B', 'C', 254, 'x', 128, 'z'})
	if err != nil || string(got) != "ABCxxx" {
		t.Errorf("runLengthDecode = %q, %v", got, err)
	}
	if _, err := runLengthDecode([]byte{5, 'A'}); err == nil {
		t.Error("expected error for short literal run")
	}
}

func TestFlatePredictor(t *testing.T) {
	raw := []byte{2, 1, 2, 3, 2, 1, 1, 1, 1, 5, 0, 0}
	enc, err := flateEncode(raw)
	if err != nil {
		t.Fatal(err)
	}
	s := Stream{
		Dictionary: Dictionary{
			"Filter":      Name("FlateDecode"),
			"DecodeParms": Dictionary{"Predictor": Integer(12), "Columns": Integer(3)},
		},
		Data: enc,
	}
	got, err := s.Decode()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 2, 3, 4, 5, 5, 5}
	if !bytes.Equal(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestLZWDecode(t *testing.T) {
	plain := bytes.Repeat([]byte("TOBEORNOTTOBEORTOBEORNOT"), 20)
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, true)
	if _, err := w.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	s := Stream{Dictionary: Dictionary{"Filter": Name("LZWDecode")}, Data: buf.Bytes()}
	got, err := s.Decode()
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("Decode() = %d bytes, %v; want %d bytes", len(got), err, len(plain))
	}
}

func TestFilterChain(t *testing.T) {
	enc, err := flateEncode([]byte("chained"))
	if err != nil {
		t.Fatal(err)
	}
	var hex bytes.Buffer
	for _, b := range enc {
		hex.WriteString("0123456789ABCDEF"[b>>4 : b>>4+1])
		hex.WriteString("0123456789ABCDEF"[b&15 : b&15+1])
	}
	hex.WriteByte('>')
	s := Stream{
		Dictionary: Dictionary{"Filter": Array{Name("AHx"), Name("Fl")}},
		Data:       hex.Bytes(),
	}
	got, err := s.Decode()
	if err != nil || string(got) != "chained" {
		t.Errorf("Decode() = %q, %v", got, err)
	}

	s = Stream{Dictionary: Dictionary{"Filter": Name("JBIG2Decode")}, Data: []byte{1}}
	if _, err := s.Decode(); !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedFilter", err)
	}

	s = Stream{Dictionary: Dictionary{"Filter": Name("DCTDecode")}, Data: []byte{0xFF, 0xD8}}
	if got, err := s.Decode(); err != nil || !bytes.Equal(got, s.Data) {
		t.Errorf("DCT payload should pass through, got %v, %v", got, err)
	}
}
