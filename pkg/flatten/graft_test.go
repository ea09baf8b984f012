package flatten

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novvoo/go-flatten/internal/testpdf"
	"github.com/novvoo/go-flatten/pkg/pdf"
)

// sharedResourcesDocument has two pages using one Resources object whose
// XObject dictionary is itself indirect.
func sharedResourcesDocument(t *testing.T, xobjectEntries string) (*pdf.Document, pdf.Reference) {
	t.Helper()
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Reserve()
	form := b.Stream("/Type /XObject /Subtype /Form /BBox [0 0 10 10]", []byte("0 0 10 10 re f"))
	xobj := b.Add(fmt.Sprintf("<</Logo %d 0 R %s>>", form, xobjectEntries))
	res := b.Add(fmt.Sprintf("<</XObject %d 0 R>>", xobj))
	p1 := b.AddPage(tree, testpdf.Page{Resources: fmt.Sprintf("%d 0 R", res), Content: "/Logo Do"})
	p2 := b.AddPage(tree, testpdf.Page{Resources: fmt.Sprintf("%d 0 R", res), Content: "/Logo Do"})
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R %d 0 R] /Count 2>>", p1, p2))

	doc, err := pdf.NewDocument(b.Bytes(catalog))
	require.NoError(t, err)
	return doc, pdf.Reference{ObjectNumber: res}
}

func TestGraftDoesNotTouchOtherPages(t *testing.T) {
	doc, shared := sharedResourcesDocument(t, "")
	second, err := doc.Page(1)
	require.NoError(t, err)
	before := second.Dictionary.Clone()
	sharedBefore := doc.Resolve(shared).(pdf.Dictionary).String()

	g, err := Graft(doc, 0, pdf.NewPixmap(4, 4), DefaultResourceName)
	require.NoError(t, err)
	assert.Equal(t, pdf.Name("ImageContent"), g.Name)

	assert.Equal(t, before, second.Dictionary)
	assert.Equal(t, sharedBefore, doc.Resolve(shared).(pdf.Dictionary).String())
	xobj, ok := doc.Resolve(doc.Resolve(shared).(pdf.Dictionary).Get("XObject")).(pdf.Dictionary)
	require.True(t, ok)
	assert.False(t, xobj.Has("ImageContent"))

	// The grafted page keeps the entries it inherited.
	first, _ := doc.Page(0)
	local, ok := first.Resources.Get("XObject").(pdf.Dictionary)
	require.True(t, ok)
	assert.True(t, local.Has("Logo"))
	assert.Equal(t, g.Image, local.Get("ImageContent"))
}

func TestGraftNameCollision(t *testing.T) {
	doc, _ := sharedResourcesDocument(t, "/ImageContent 1 0 R /ImageContent1 1 0 R")
	g, err := Graft(doc, 0, pdf.NewPixmap(1, 1), DefaultResourceName)
	require.NoError(t, err)
	assert.Equal(t, pdf.Name("ImageContent2"), g.Name)
	assert.Equal(t, "q 612 0 0 792 0 0 cm /ImageContent2 Do Q", g.Operators)

	page, _ := doc.Page(0)
	xobj := page.Resources.Get("XObject").(pdf.Dictionary)
	assert.Equal(t, pdf.Reference{ObjectNumber: 1}, xobj.Get("ImageContent"))
	assert.Equal(t, g.Image, xobj.Get("ImageContent2"))

	g2, err := Graft(doc, 1, pdf.NewPixmap(1, 1), "Raster")
	require.NoError(t, err)
	assert.Equal(t, pdf.Name("Raster"), g2.Name)
}

func TestGraftContentsShapes(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Reserve()
	s1 := b.Stream("", []byte("0 g"))
	s2 := b.Stream("", []byte("0 0 1 1 re f"))
	arr := b.Add(fmt.Sprintf("[%d 0 R %d 0 R]", s1, s2))
	pages := []int{
		b.AddPage(tree, testpdf.Page{Content: "0 0 m"}),
		b.AddPage(tree, testpdf.Page{Extra: fmt.Sprintf("/Contents %d 0 R", arr)}),
		b.AddPage(tree, testpdf.Page{}),
		b.AddPage(tree, testpdf.Page{MediaBox: "[10 20 110 220]", Extra: "/Contents 5"}),
	}
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R %d 0 R %d 0 R %d 0 R] /Count 4>>",
		pages[0], pages[1], pages[2], pages[3]))
	doc, err := pdf.NewDocument(b.Bytes(catalog))
	require.NoError(t, err)
	arrBefore := doc.Resolve(pdf.Reference{ObjectNumber: arr}).(pdf.Array).Clone()

	// A single stream becomes [stream, overlay].
	g, err := Graft(doc, 0, pdf.NewPixmap(1, 1), DefaultResourceName)
	require.NoError(t, err)
	p0, _ := doc.Page(0)
	c0 := p0.Dictionary.Get("Contents").(pdf.Array)
	require.Len(t, c0, 2)
	assert.IsType(t, pdf.Reference{}, c0[0])
	assert.Equal(t, g.Overlay, c0[1])

	// An array gains the overlay; the shared array object is untouched.
	g, err = Graft(doc, 1, pdf.NewPixmap(1, 1), DefaultResourceName)
	require.NoError(t, err)
	p1, _ := doc.Page(1)
	c1 := p1.Dictionary.Get("Contents").(pdf.Array)
	assert.Equal(t, append(arrBefore.Clone(), g.Overlay), c1)
	assert.Equal(t, arrBefore, doc.Resolve(pdf.Reference{ObjectNumber: arr}).(pdf.Array))

	// No Contents at all: only the overlay.
	g, err = Graft(doc, 2, pdf.NewPixmap(1, 1), DefaultResourceName)
	require.NoError(t, err)
	p2, _ := doc.Page(2)
	assert.Equal(t, pdf.Array{g.Overlay}, p2.Dictionary.Get("Contents"))

	// Contents of the wrong type cannot be extended.
	_, err = Graft(doc, 3, pdf.NewPixmap(1, 1), DefaultResourceName)
	assert.ErrorIs(t, err, ErrGraft)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Page)
}

func TestGraftOffsetMediaBox(t *testing.T) {
	doc, err := pdf.NewDocument(testpdf.Document(testpdf.Page{MediaBox: "[10.5 20 110.25 220]", Content: "0 g"}))
	require.NoError(t, err)
	g, err := Graft(doc, 0, pdf.NewPixmap(2, 2), DefaultResourceName)
	require.NoError(t, err)
	assert.Equal(t, "q 99.75 0 0 200 10.5 20 cm /ImageContent Do Q", g.Operators)
}

func TestGraftPageErrors(t *testing.T) {
	doc, err := pdf.NewDocument(testpdf.TextDocument(1))
	require.NoError(t, err)
	_, err = Graft(doc, 1, pdf.NewPixmap(1, 1), DefaultResourceName)
	assert.ErrorIs(t, err, ErrGraft)
	assert.ErrorIs(t, err, pdf.ErrPageRange)
}

func TestErrorFormatting(t *testing.T) {
	err := wrap(KindPageRender, 3, fmt.Errorf("boom"))
	assert.Equal(t, "PageRenderError: page 3: boom", err.Error())
	assert.ErrorIs(t, err, ErrPageRender)
	assert.NotErrorIs(t, err, ErrGraft)
	assert.Equal(t, "SerializeError: x", wrap(KindSerialize, -1, fmt.Errorf("x")).Error())
	assert.Equal(t, Kind(0), KindOf(ErrBusy))
}
