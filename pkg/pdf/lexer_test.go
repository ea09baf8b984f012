package pdf

import (
	"bytes"
	"testing"
)

func TestLexerReadLine(t *testing.T) {
	lexer := NewLexerFromBytes([]byte("line1\nline2\rline3\r\nline4"))
	for _, want := range []string{"line1", "line2", "line3", "line4"} {
		if got := string(lexer.ReadLine()); got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}
}

func TestIsWhitespace(t *testing.T) {
	for _, ws := range []byte{' ', '\t', '\n', '\r', '\f', 0} {
		if !isWhitespace(ws) {
			t.Errorf("Expected %d to be whitespace", ws)
		}
	}
	for _, nws := range []byte{'a', '1', '/', '('} {
		if isWhitespace(nws) {
			t.Errorf("Expected %c to not be whitespace", nws)
		}
	}
}

func TestIsDelimiter(t *testing.T) {
	for _, d := range []byte{'(', ')', '<', '>', '[', ']', '{', '}', '/', '%'} {
		if !isDelimiter(d) {
			t.Errorf("Expected %c to be delimiter", d)
		}
	}
	for _, nd := range []byte{'a', '1', '.', '-'} {
		if isDelimiter(nd) {
			t.Errorf("Expected %c to not be delimiter", nd)
		}
	}
}

func TestParserNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  Object
	}{
		{"42", Integer(42)},
		{"-17", Integer(-17)},
		{"+123", Integer(123)},
		{"3.14", Real(3.14)},
		{"-2.5", Real(-2.5)},
		{".5", Real(0.5)},
		{"10.", Real(10)},
		{"-", Integer(0)},
		{"99999999999999999999", Real(1e20)},
	}
	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if obj != tt.want {
			t.Errorf("ParseObject(%s) = %#v, want %#v", tt.input, obj, tt.want)
		}
	}
}

func TestParserKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  Object
	}{
		{"true", Boolean(true)},
		{"false", Boolean(false)},
		{"null", Null{}},
		{"/Name", Name("Name")},
		{"/A#20B", Name("A B")},
		{"/", Name("")},
	}
	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if obj != tt.want {
			t.Errorf("ParseObject(%s) = %#v, want %#v", tt.input, obj, tt.want)
		}
	}
}

func TestParserStrings(t *testing.T) {
	tests := []struct {
		input string
		want  []byte
		hex   bool
	}{
		{"(Hello World)", []byte("Hello World"), false},
		{"()", nil, false},
		{"(a (nested) b)", []byte("a (nested) b"), false},
		{`(tab\there)`, []byte("tab\there"), false},
		{`(\101\7\0053)`, []byte{'A', 7, 5, '3'}, false},
		{"(split \\\r\nline)", []byte("split line"), false},
		{`(\(\)\\\q)`, []byte(`()\q`), false},
		{"<48656C6C6F>", []byte("Hello"), true},
		{"<48 65 6c\n6>", []byte{0x48, 0x65, 0x6c, 0x60}, true},
		{"<>", nil, true},
	}
	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		s, ok := obj.(String)
		if !ok || !bytes.Equal(s.Value, tt.want) || s.IsHex != tt.hex {
			t.Errorf("ParseObject(%s) = %#v, want %q (hex %v)", tt.input, obj, tt.want, tt.hex)
		}
	}
}

func TestParserErrors(t *testing.T) {
	for _, input := range []string{"(open", "<4G>", "<48", ">", ")", "[1 2", "<</A 1", ""} {
		if obj, err := NewParserFromBytes([]byte(input)).ParseObject(); err == nil {
			t.Errorf("ParseObject(%q) = %v, want error", input, obj)
		}
	}
}

func TestParserContainers(t *testing.T) {
	obj, err := NewParserFromBytes([]byte("<< /Type /Test /Value 42 /Kids [1 0 R 2 0 R 3] /Sub <</X 1 /Y null>> >>")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	dict, ok := obj.(Dictionary)
	if !ok {
		t.Fatalf("Expected Dictionary, got %T", obj)
	}
	if v, _ := dict.GetName("Type"); v != "Test" {
		t.Errorf("Type = %v, want Test", v)
	}
	if v, _ := dict.GetInt("Value"); v != 42 {
		t.Errorf("Value = %v, want 42", v)
	}
	kids, _ := dict.GetArray("Kids")
	want := Array{Reference{ObjectNumber: 1}, Reference{ObjectNumber: 2}, Integer(3)}
	if len(kids) != len(want) {
		t.Fatalf("Kids = %v, want %v", kids, want)
	}
	for i := range want {
		if kids[i] != want[i] {
			t.Errorf("Kids[%d] = %v, want %v", i, kids[i], want[i])
		}
	}
	if sub, ok := dict.GetDict("Sub"); !ok || !sub.Has("X") {
		t.Errorf("Sub = %v", dict.Get("Sub"))
	}
}

func TestParseIndirectObject(t *testing.T) {
	data := []byte("12 0 obj\n<</Length 5>>\nstream\nhello\nendstream\nendobj\n")
	num, gen, obj, err := NewParserFromBytes(data).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if num != 12 || gen != 0 {
		t.Errorf("got %d %d obj, want 12 0 obj", num, gen)
	}
	s, ok := obj.(Stream)
	if !ok || string(s.Data) != "hello" {
		t.Errorf("got %#v, want stream with data hello", obj)
	}
}

func TestContentStreamParser(t *testing.T) {
	data := []byte("q 1 0 0 1 10 20 cm /F1 12 Tf [(A) -120 (B)] TJ\n" +
		"BI /W 2 /H 1 /CS /G /BPC 8 ID \x00\xff EI Q")
	ops, err := NewContentStreamParser(data).ParseOperations()
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	want := []string{"q", "cm", "Tf", "TJ", "BI", "Q"}
	if len(names) != len(want) {
		t.Fatalf("operators = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("operator %d = %s, want %s", i, names[i], want[i])
		}
	}
	if len(ops[1].Operands) != 6 {
		t.Errorf("cm operands = %v", ops[1].Operands)
	}
	img := ops[4].Operands[0].(Stream)
	if cs, _ := img.Dictionary.GetName("ColorSpace"); cs != "DeviceGray" {
		t.Errorf("inline ColorSpace = %v, want DeviceGray", cs)
	}
	if !bytes.Equal(img.Data, []byte{0x00, 0xff}) {
		t.Errorf("inline data = %x, want 00ff", img.Data)
	}
}

func TestContentStreamParserMalformed(t *testing.T) {
	ops, err := NewContentStreamParser([]byte("0 g 10 10 m (broken")).ParseOperations()
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
	if len(ops) != 2 {
		t.Errorf("parsed %d operations before the error, want 2", len(ops))
	}
}
