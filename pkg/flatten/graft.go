package flatten

import (
	"fmt"
	"strconv"

	"github.com/novvoo/go-flatten/pkg/pdf"
)

// GraftResult describes what Graft added to a page.
type GraftResult struct {
	Image   pdf.Reference // the image XObject
	Overlay pdf.Reference // the content stream painting it
	Name    pdf.Name      // the XObject resource name used
	// Operators is the overlay content, e.g.
	// "q 612 0 0 792 0 0 cm /ImageContent Do Q".
	Operators string
}

// Graft registers pix as an image on page index and appends a content
// stream painting it over the media box. The page gets its own shallow
// copies of Resources and XObject, so objects shared with other pages are
// never modified. name is the preferred resource name; if the page already
// uses it, the first free name of name1, name2, ... is taken.
func Graft(doc *pdf.Document, index int, pix *pdf.Pixmap, name string) (GraftResult, error) {
	page, err := doc.Page(index)
	if err != nil {
		return GraftResult{}, wrap(KindGraft, index, err)
	}
	if err := page.Err(); err != nil {
		return GraftResult{}, wrap(KindGraft, index, err)
	}
	if page.Dictionary == nil {
		return GraftResult{}, wrap(KindGraft, index, fmt.Errorf("page has no dictionary"))
	}
	contents, err := doc.ResolveObject(page.Dictionary.Get("Contents"))
	if err != nil {
		return GraftResult{}, wrap(KindGraft, index, fmt.Errorf("Contents: %w", err))
	}
	switch contents.(type) {
	case pdf.Null, pdf.Stream, pdf.Array:
	default:
		return GraftResult{}, wrap(KindGraft, index,
			fmt.Errorf("Contents: %w", &pdf.TypeError{Want: pdf.ObjArray, Got: pdf.TypeOf(contents)}))
	}
	if name == "" {
		name = DefaultResourceName
	}

	// 1. The image object.
	res := GraftResult{Image: doc.AddImage(pix)}

	// 2-3. Page-local Resources and XObject dictionaries.
	// A page without usable Resources starts from an empty dictionary.
	resources := page.Resources.Clone()
	xobjects, ok := doc.Resolve(resources.Get("XObject")).(pdf.Dictionary)
	if ok {
		xobjects = xobjects.Clone()
	} else {
		xobjects = doc.NewDictionary()
	}
	resources.Set("XObject", xobjects)

	// 4. Register the image under a free name.
	res.Name = freeName(xobjects, name)
	xobjects.Set(string(res.Name), res.Image)
	page.Dictionary.Set("Resources", resources)
	page.Resources = resources

	// 5-7. The overlay stream.
	box := page.MediaBox
	res.Operators = fmt.Sprintf("q %s 0 0 %s %s %s cm %s Do Q",
		pdf.FormatNumber(box.Width()), pdf.FormatNumber(box.Height()),
		pdf.FormatNumber(box.LLX), pdf.FormatNumber(box.LLY), res.Name)
	res.Overlay = doc.AddStream(nil, []byte(res.Operators))

	// 8. Original content first, then the overlay.
	switch c := contents.(type) {
	case pdf.Array:
		page.Dictionary.Set("Contents", append(c.Clone(), res.Overlay))
	case pdf.Stream:
		page.Dictionary.Set("Contents", doc.NewArray(page.Dictionary.Get("Contents"), res.Overlay))
	default:
		page.Dictionary.Set("Contents", doc.NewArray(res.Overlay))
	}
	return res, nil
}

// freeName returns name, or name followed by the smallest positive
// integer that is not a key of xobjects.
func freeName(xobjects pdf.Dictionary, name string) pdf.Name {
	if !xobjects.Has(name) {
		return pdf.Name(name)
	}
	for i := 1; ; i++ {
		n := name + strconv.Itoa(i)
		if !xobjects.Has(n) {
			return pdf.Name(n)
		}
	}
}
