package flatten

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novvoo/go-flatten/internal/testpdf"
	"github.com/novvoo/go-flatten/pkg/pdf"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scale = 0.5
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func runPipeline(t *testing.T, input []byte) (*Result, []Event, error) {
	t.Helper()
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)
	var events []Event
	res, err := p.Run(context.Background(), input, func(e Event) { events = append(events, e) })
	return res, events, err
}

func overlayOf(t *testing.T, doc *pdf.Document, page *pdf.Page) string {
	t.Helper()
	contents, ok := doc.Resolve(page.Dictionary.Get("Contents")).(pdf.Array)
	require.True(t, ok, "Contents is not an array")
	s, ok := doc.Resolve(contents[len(contents)-1]).(pdf.Stream)
	require.True(t, ok)
	data, err := s.Decode()
	require.NoError(t, err)
	return string(data)
}

func TestRunSinglePage(t *testing.T) {
	res, events, err := runPipeline(t, testpdf.TextDocument(1))
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Kind: EventTotalPages, Value: 1},
		{Kind: EventPageDone, Value: 0},
		{Kind: EventPageDone, Value: 1},
	}, events)
	assert.Equal(t, 1, res.Pages)

	doc, err := pdf.NewDocument(res.PDF)
	require.NoError(t, err)
	require.Equal(t, 1, doc.NumPages())
	page, err := doc.Page(0)
	require.NoError(t, err)
	assert.Equal(t, pdf.Rectangle{LLX: 0, LLY: 0, URX: 612, URY: 792}, page.MediaBox)

	xobjects, ok := doc.Resolve(page.Resources.Get("XObject")).(pdf.Dictionary)
	require.True(t, ok)
	img, ok := doc.Resolve(xobjects.Get("ImageContent")).(pdf.Stream)
	require.True(t, ok)
	subtype, _ := img.Dictionary.GetName("Subtype")
	assert.Equal(t, pdf.Name("Image"), subtype)
	w, _ := img.Dictionary.GetInt("Width")
	h, _ := img.Dictionary.GetInt("Height")
	assert.Equal(t, int64(306), w)
	assert.Equal(t, int64(396), h)

	contents, ok := doc.Resolve(page.Dictionary.Get("Contents")).(pdf.Array)
	require.True(t, ok)
	assert.Len(t, contents, 2)
	assert.Equal(t, "q 612 0 0 792 0 0 cm /ImageContent Do Q", overlayOf(t, doc, page))

	// The original text run is still the first content stream.
	all, err := page.Contents()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(all), "BT /F1 24 Tf"))

	pages, err := Verify(res.PDF)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRunPreservesPageCountAndBoxes(t *testing.T) {
	input := testpdf.Document(
		testpdf.TextPage("a"),
		testpdf.Page{MediaBox: "[0 0 595 842]", Content: "0 0 1 rg 10 10 100 100 re f"},
		testpdf.Page{MediaBox: "[-50 20 250 420]", Resources: testpdf.HelveticaResources, Content: "BT /F1 12 Tf 0 30 Td (offset) Tj ET"},
	)
	res, events, err := runPipeline(t, input)
	require.NoError(t, err)

	var done []int
	for _, e := range events[1:] {
		assert.Equal(t, EventPageDone, e.Kind)
		done = append(done, e.Value)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, done)

	src, err := pdf.NewDocument(input)
	require.NoError(t, err)
	out, err := pdf.NewDocument(res.PDF)
	require.NoError(t, err)
	require.Equal(t, src.NumPages(), out.NumPages())
	for i := 0; i < src.NumPages(); i++ {
		a, _ := src.Page(i)
		b, _ := out.Page(i)
		assert.Equal(t, a.MediaBox, b.MediaBox, "page %d", i)
	}

	third, _ := out.Page(2)
	assert.Equal(t, "q 300 0 0 400 -50 20 cm /ImageContent Do Q", overlayOf(t, out, third))
}

func TestRunEmptyDocument(t *testing.T) {
	input := testpdf.Document()
	res, events, err := runPipeline(t, input)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Kind: EventTotalPages, Value: 0},
		{Kind: EventPageDone, Value: 0},
	}, events)

	doc, err := pdf.NewDocument(res.PDF)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.NumPages())
}

func TestRunTruncatedHeader(t *testing.T) {
	for _, input := range [][]byte{nil, []byte("%PD"), []byte("not a pdf at all")} {
		res, events, err := runPipeline(t, input)
		assert.Nil(t, res)
		assert.Empty(t, events)
		assert.ErrorIs(t, err, ErrDocumentOpen)
		assert.Equal(t, KindDocumentOpen, KindOf(err))
	}
}

func TestRunCorruptPage(t *testing.T) {
	b := testpdf.New()
	catalog := b.Reserve()
	tree := b.Reserve()
	var kids []string
	for i := 0; i < 5; i++ {
		var num int
		if i == 2 {
			num = b.Add("42")
		} else {
			num = b.AddPage(tree, testpdf.TextPage(fmt.Sprintf("page %d", i)))
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", num))
	}
	b.Set(catalog, fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", tree))
	b.Set(tree, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count 5>>", strings.Join(kids, " ")))

	res, events, err := runPipeline(t, b.Bytes(catalog))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []Event{
		{Kind: EventTotalPages, Value: 5},
		{Kind: EventPageDone, Value: 0},
		{Kind: EventPageDone, Value: 1},
	}, events)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, []Kind{KindPageRender, KindGraft}, fe.Kind)
	assert.Equal(t, 2, fe.Page)
}

func TestRunMalformedContent(t *testing.T) {
	input := testpdf.Document(
		testpdf.TextPage("fine"),
		testpdf.Page{Content: "q 1 0 0 1 0 0 cm (unterminated"},
	)
	_, events, err := runPipeline(t, input)
	assert.ErrorIs(t, err, ErrPageRender)
	assert.Len(t, events, 2)
}

func TestRunUnsupportedContent(t *testing.T) {
	tests := []struct {
		name string
		page testpdf.Page
	}{
		{"shading", testpdf.ShadingPage()},
		{"cjk text without a face", testpdf.CJKPage("53CC 9762 6253 5370")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := testpdf.Document(testpdf.TextPage("first"), tt.page)
			var events []Event
			p, err := NewPipeline(testConfig())
			require.NoError(t, err)
			res, err := p.Run(context.Background(), input, func(e Event) { events = append(events, e) })
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrPageRender)
			assert.ErrorIs(t, err, pdf.ErrUnsupportedContent)
			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, 1, fe.Page)
			assert.Equal(t, []Event{
				{Kind: EventTotalPages, Value: 2},
				{Kind: EventPageDone, Value: 0},
			}, events)

			cfg := testConfig()
			cfg.Lenient = true
			p, err = NewPipeline(cfg)
			require.NoError(t, err)
			res, err = p.Run(context.Background(), input, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Pages)
		})
	}
}

func TestRunDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), testpdf.TextDocument(1), nil)
	require.NoError(t, err)

	doc, err := pdf.NewDocument(res.PDF)
	require.NoError(t, err)
	page, err := doc.Page(0)
	require.NoError(t, err)
	xobjects, ok := doc.Resolve(page.Resources.Get("XObject")).(pdf.Dictionary)
	require.True(t, ok)
	img, ok := doc.Resolve(xobjects.Get(DefaultResourceName)).(pdf.Stream)
	require.True(t, ok)
	w, _ := img.Dictionary.GetInt("Width")
	h, _ := img.Dictionary.GetInt("Height")
	assert.Equal(t, int64(1224), w)
	assert.Equal(t, int64(1584), h)
	assert.Equal(t, "q 612 0 0 792 0 0 cm /ImageContent Do Q", overlayOf(t, doc, page))
}

func TestRunCanceled(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, testpdf.TextDocument(2), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDoesNotModifyInput(t *testing.T) {
	input := testpdf.TextDocument(2)
	orig := bytes.Clone(input)
	_, _, err := runPipeline(t, input)
	require.NoError(t, err)
	assert.Equal(t, orig, input)
}

func TestRunRoundTrip(t *testing.T) {
	res, _, err := runPipeline(t, testpdf.TextDocument(4))
	require.NoError(t, err)

	// Flattening the output again stacks a second overlay.
	again, _, err := runPipeline(t, res.PDF)
	require.NoError(t, err)
	doc, err := pdf.NewDocument(again.PDF)
	require.NoError(t, err)
	require.Equal(t, 4, doc.NumPages())
	page, _ := doc.Page(0)
	contents, ok := doc.Resolve(page.Dictionary.Get("Contents")).(pdf.Array)
	require.True(t, ok)
	assert.Len(t, contents, 3)
	assert.Equal(t, "q 612 0 0 792 0 0 cm /ImageContent1 Do Q", overlayOf(t, doc, page))
}

func TestRunUncompressed(t *testing.T) {
	cfg := testConfig()
	cfg.Compress = false
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), testpdf.TextDocument(1), nil)
	require.NoError(t, err)
	assert.Contains(t, string(res.PDF), "q 612 0 0 792 0 0 cm /ImageContent Do Q")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate())

	bad := []Config{
		{Backend: "ghostscript"},
		{Scale: 100},
		{ResourceName: "Image Content"},
		{ResourceName: "Img/1"},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}
	_, err := NewPipeline(Config{Backend: "x"})
	assert.Error(t, err)
}
