package pdf

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/novvoo/go-flatten/internal/testpdf"
)

func TestSaveRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		doc, err := NewDocument(testpdf.TextDocument(2))
		if err != nil {
			t.Fatal(err)
		}
		ref := doc.AddStream(nil, []byte("0 g 0 0 10 10 re f"))

		out, err := doc.Save(WriteOptions{Compress: compress})
		if err != nil {
			t.Fatalf("Save(compress=%v) failed: %v", compress, err)
		}
		if !bytes.HasPrefix(out, []byte("%PDF-1.4\n")) {
			t.Errorf("header = %q", out[:10])
		}
		if got := bytes.Contains(out, []byte("re f")); got == compress {
			t.Errorf("compress=%v: raw content visible = %v", compress, got)
		}

		again, err := NewDocument(out)
		if err != nil {
			t.Fatalf("reading saved file: %v", err)
		}
		if again.Repaired {
			t.Error("saved file needed repair")
		}
		if again.NumPages() != 2 {
			t.Errorf("NumPages = %d, want 2", again.NumPages())
		}
		page, _ := again.Page(1)
		content, err := page.Contents()
		if err != nil || !bytes.Contains(content, []byte("(Page 2) Tj")) {
			t.Errorf("page 2 contents = %q, %v", content, err)
		}
		s, err := AsStream(again.Resolve(ref))
		if err != nil {
			t.Fatalf("added stream: %v", err)
		}
		if data, err := s.Decode(); err != nil || string(data) != "0 g 0 0 10 10 re f" {
			t.Errorf("added stream = %q, %v", data, err)
		}
		if _, filtered := s.Dictionary.GetName("Filter"); filtered != compress {
			t.Errorf("compress=%v: Filter present = %v", compress, filtered)
		}
	}
}

func TestSaveDeterministic(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(3))
	if err != nil {
		t.Fatal(err)
	}
	first, err := doc.Save(WriteOptions{Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	second, err := doc.Save(WriteOptions{Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("saving twice gave different bytes")
	}
}

func TestSaveFileID(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	out, err := doc.Save(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	saved, err := NewDocument(out)
	if err != nil {
		t.Fatal(err)
	}
	ids, ok := saved.Trailer.Get("ID").(Array)
	if !ok || len(ids) != 2 {
		t.Fatalf("ID = %v", saved.Trailer.Get("ID"))
	}
	for i, id := range ids {
		if s, ok := id.(String); !ok || len(s.Value) != 16 {
			t.Errorf("ID[%d] = %v, want 16 bytes", i, id)
		}
	}

	// The permanent identifier survives a second save; the changing one
	// follows the body.
	saved.AddStream(nil, []byte("more"))
	out2, err := saved.Save(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	resaved, err := NewDocument(out2)
	if err != nil {
		t.Fatal(err)
	}
	ids2 := resaved.Trailer.Get("ID").(Array)
	if !bytes.Equal(ids2[0].(String).Value, ids[0].(String).Value) {
		t.Error("permanent ID changed")
	}
	if bytes.Equal(ids2[1].(String).Value, ids[1].(String).Value) {
		t.Error("changing ID did not change with the body")
	}
}

func TestSaveDanglingReference(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(2))
	if err != nil {
		t.Fatal(err)
	}
	page, _ := doc.Page(1)
	dict := page.Dictionary.Clone()
	dict["Bogus"] = Reference{ObjectNumber: 999}
	if err := doc.Set(page.Ref, dict); err != nil {
		t.Fatal(err)
	}
	_, err = doc.Save(WriteOptions{})
	var de *DanglingReferenceError
	if !errors.As(err, &de) {
		t.Fatalf("Save error = %v, want DanglingReferenceError", err)
	}
	if de.Ref.ObjectNumber != 999 || de.Holder != page.Ref.ObjectNumber {
		t.Errorf("error = %+v", de)
	}
}

func TestSetUnknownObject(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Set(Reference{ObjectNumber: 500}, Integer(1)); err == nil {
		t.Error("Set of an unallocated object should fail")
	}
	next := doc.NextObjectNumber()
	if ref := doc.Add(Integer(1)); ref.ObjectNumber != next {
		t.Errorf("Add returned %v, want object %d", ref, next)
	}
}

func TestSaveClosed(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	doc.Close()
	if _, err := doc.Save(WriteOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Save after Close error = %v, want ErrClosed", err)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{612, "612"},
		{-50, "-50"},
		{0.5, "0.5"},
		{99.75, "99.75"},
		{1e-7, "0.0000001"},
		{1.0 / 3, "0.3333333333333333"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteObjectSyntax(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{Name("A B"), "/A#20B"},
		{Name("a/b#"), "/a#2Fb#23"},
		{String{Value: []byte("x(y)\\")}, `(x\(y\)\\)`},
		{String{Value: []byte{0x01, 0xFE}, IsHex: true}, "<01fe>"},
		{Dictionary{"Z": Integer(1), "A": Null{}, "M": Array{Real(0.25), Boolean(true)}}, "<</M [0.25 true] /Z 1>>"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := writeObject(&buf, tt.obj); err != nil {
			t.Errorf("writeObject(%v) failed: %v", tt.obj, err)
			continue
		}
		if buf.String() != tt.want {
			t.Errorf("writeObject(%#v) = %q, want %q", tt.obj, buf.String(), tt.want)
		}
	}
	var buf bytes.Buffer
	if err := writeObject(&buf, Stream{}); err == nil {
		t.Error("a stream cannot be written as a direct object")
	}
}

func TestOutputVersion(t *testing.T) {
	for in, want := range map[string]string{"1.2": "1.4", "1.4": "1.4", "1.7": "1.7", "2.0": "2.0", "": "1.7"} {
		if got := outputVersion(in); got != want {
			t.Errorf("outputVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
