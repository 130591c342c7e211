package session

import (
	"time"

	"github.com/golang/geo/r2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mgmeyers/unipdf/v3/contentstream"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmark/pdfutils"
)

// annotation flag bit 3: print the annotation with the page.
const flagPrint = 4

// Style controls how saved highlight annotations look.
type Style struct {
	Color   colorful.Color
	Opacity float64
	Author  string
}

func DefaultStyle() Style {
	return Style{
		Color:   colorful.Color{R: 1, G: 1, B: 0},
		Opacity: 0.4,
	}
}

func newHighlightAnnotation(rect r2.Rect, style Style, now time.Time) (*model.PdfAnnotationHighlight, error) {
	highlight := model.NewPdfAnnotationHighlight()
	date := core.MakeString(pdfutils.FormatDate(now))

	highlight.Rect = core.MakeArrayFromFloats(pdfutils.RectArray(rect))
	highlight.QuadPoints = core.MakeArrayFromFloats(pdfutils.QuadPoints(rect))
	highlight.C = pdfutils.ColorArray(style.Color)
	highlight.CA = core.MakeFloat(style.Opacity)
	highlight.F = core.MakeInteger(flagPrint)
	highlight.M = date
	highlight.CreationDate = date

	if style.Author != "" {
		highlight.T = core.MakeString(style.Author)
	}

	ap, err := highlightAppearance(rect, style)
	if err != nil {
		return nil, err
	}
	highlight.AP = ap

	return highlight, nil
}

// highlightAppearance fills rect using a multiply blend; text beneath keeps
// its color.
func highlightAppearance(rect r2.Rect, style Style) (*core.PdfObjectDictionary, error) {
	gs := core.MakeDict()
	gs.Set("Type", core.MakeName("ExtGState"))
	gs.Set("ca", core.MakeFloat(style.Opacity))
	gs.Set("BM", core.MakeName("Multiply"))

	extGState := core.MakeDict()
	extGState.Set("GS0", gs)

	resources := model.NewPdfPageResources()
	resources.ExtGState = extGState

	r, g, b := style.Color.Clamped().RGB255()
	size := rect.Size()

	cc := contentstream.NewContentCreator()
	cc.Add_q().
		Add_gs("GS0").
		Add_rg(float64(r)/255, float64(g)/255, float64(b)/255).
		Add_re(rect.X.Lo, rect.Y.Lo, size.X, size.Y).
		Add_f().
		Add_Q()

	form := model.NewXObjectForm()
	form.BBox = core.MakeArrayFromFloats(pdfutils.RectArray(rect))
	form.Resources = resources

	if err := form.SetContentStream(cc.Bytes(), core.NewFlateEncoder()); err != nil {
		return nil, errors.Wrap(err, "highlight appearance")
	}

	ap := core.MakeDict()
	ap.Set("N", form.ToPdfObject())

	return ap, nil
}
