package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/novvoo/go-flatten/internal/testpdf"
)

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(3))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if doc.Version != "1.4" {
		t.Errorf("Version = %q, want 1.4", doc.Version)
	}
	if doc.NumPages() != 3 {
		t.Errorf("NumPages = %d, want 3", doc.NumPages())
	}
	if doc.Repaired {
		t.Error("a well-formed file should not need repair")
	}
	page, err := doc.Page(2)
	if err != nil {
		t.Fatalf("Page(2) failed: %v", err)
	}
	if page.Index != 2 || page.Width() != 612 || page.Height() != 792 {
		t.Errorf("page 2: index %d, %gx%g", page.Index, page.Width(), page.Height())
	}
	content, err := page.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if !bytes.Contains(content, []byte("(Page 3) Tj")) {
		t.Errorf("Contents = %q", content)
	}
}

func TestInvalidPDF(t *testing.T) {
	for _, input := range []string{"", "Not a PDF file", "%PDF-", "%PDF-x.y\n"} {
		if _, err := NewDocument([]byte(input)); !errors.Is(err, ErrNotPDF) {
			t.Errorf("NewDocument(%q) error = %v, want ErrNotPDF", input, err)
		}
	}
	if _, err := NewDocument([]byte("%PDF-1.7\ngarbage only")); err == nil {
		t.Error("expected an error for a header without objects")
	}
}

func TestHeaderAfterJunk(t *testing.T) {
	data := append([]byte("junk before the header\n"), testpdf.TextDocument(1)...)
	doc, err := NewDocument(data)
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("NumPages = %d, want 1", doc.NumPages())
	}
}

func TestRepair(t *testing.T) {
	data := testpdf.TextDocument(2)
	broken := regexp.MustCompile(`startxref\n\d+`).ReplaceAll(data, []byte("startxref\n3"))
	doc, err := NewDocument(broken)
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if !doc.Repaired {
		t.Error("Repaired = false, want true")
	}
	if doc.NumPages() != 2 {
		t.Errorf("NumPages = %d, want 2", doc.NumPages())
	}
}

func TestEncrypted(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Add("<</Type /Pages /Kids [] /Count 0>>")
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	b.TrailerEntries("/Encrypt <</Filter /Standard /V 1>>")
	if _, err := NewDocument(b.Bytes(catalog)); !errors.Is(err, ErrEncrypted) {
		t.Errorf("error = %v, want ErrEncrypted", err)
	}
}

func TestPageInheritance(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	root := b.Reserve()
	mid := b.Reserve()
	leaf := b.Add(fmt.Sprintf("<</Type /Page /Parent %d 0 R>>", mid))
	own := b.Add(fmt.Sprintf("<</Type /Page /Parent %d 0 R /MediaBox [100 100 0 0] /Rotate -90>>", mid))
	b.Set(mid, fmt.Sprintf("<</Type /Pages /Parent %d 0 R /Kids [%d 0 R %d 0 R] /Count 2 /Rotate 450>>", root, leaf, own))
	b.Set(root, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R] /Count 2 /MediaBox [0 0 200 300] /Resources <</Font <<>>>>>>", mid))
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", root))

	doc, err := NewDocument(b.Bytes(catalog))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("NumPages = %d, want 2", doc.NumPages())
	}
	p0, _ := doc.Page(0)
	if p0.MediaBox != (Rectangle{0, 0, 200, 300}) || p0.Rotate != 90 || !p0.Resources.Has("Font") {
		t.Errorf("page 0: box %+v rotate %d resources %v", p0.MediaBox, p0.Rotate, p0.Resources)
	}
	if p0.Dictionary.Has("MediaBox") {
		t.Error("inherited attributes must not be copied into the page dictionary")
	}
	p1, _ := doc.Page(1)
	if p1.MediaBox != (Rectangle{0, 0, 100, 100}) || p1.Rotate != 270 {
		t.Errorf("page 1: box %+v rotate %d", p1.MediaBox, p1.Rotate)
	}
}

func TestBrokenPageKeepsItsSlot(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Reserve()
	good := b.AddPage(tree, testpdf.TextPage("ok"))
	bad := b.Add("(not a page)")
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R %d 0 R] /Count 2>>", good, bad))
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))

	doc, err := NewDocument(b.Bytes(catalog))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("NumPages = %d, want 2", doc.NumPages())
	}
	page, _ := doc.Page(1)
	if page.Err() == nil {
		t.Error("page 1 should carry its read error")
	}
	if _, err := page.Contents(); err == nil {
		t.Error("Contents of a broken page should fail")
	}
}

func TestPageTreeCycle(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Reserve()
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R] /Count 1>>", tree))
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	if _, err := NewDocument(b.Bytes(catalog)); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %v, want page tree cycle", err)
	}
}

func TestPageRange(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{-1, 1, 100} {
		if _, err := doc.Page(i); !errors.Is(err, ErrPageRange) {
			t.Errorf("Page(%d) error = %v, want ErrPageRange", i, err)
		}
	}
}

func TestDocumentClose(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := doc.Page(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Page after Close error = %v, want ErrClosed", err)
	}
}

func TestNewDocumentCopiesInput(t *testing.T) {
	data := testpdf.TextDocument(1)
	doc, err := NewDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range data {
		data[i] = 0
	}
	if !bytes.HasPrefix(doc.Bytes(), []byte("%PDF-1.4")) {
		t.Error("document shares the caller's buffer")
	}
}

func TestResolveMissingObject(t *testing.T) {
	doc, err := NewDocument(testpdf.TextDocument(1))
	if err != nil {
		t.Fatal(err)
	}
	if obj := doc.Resolve(Reference{ObjectNumber: 999}); TypeOf(obj) != ObjNull {
		t.Errorf("Resolve(999 0 R) = %v, want null", obj)
	}
}
