package pdfutils

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
)

// PageGeometry describes the visible box of a page in PDF user space and the
// clockwise rotation applied when the page is displayed.
type PageGeometry struct {
	Llx    float64
	Lly    float64
	Width  float64
	Height float64
	Rotate int
}

func GetPageGeometry(page *model.PdfPage) (PageGeometry, error) {
	box := page.CropBox

	if box == nil {
		mediaBox, err := page.GetMediaBox()
		if err != nil {
			return PageGeometry{}, errors.Wrap(err, "page has no media box")
		}
		box = mediaBox
	}

	geom := PageGeometry{
		Llx:    math.Min(box.Llx, box.Urx),
		Lly:    math.Min(box.Lly, box.Ury),
		Width:  math.Abs(box.Width()),
		Height: math.Abs(box.Height()),
	}

	if page.Rotate != nil {
		geom.Rotate = normalizeRotation(int(*page.Rotate))
	}

	return geom, nil
}

func normalizeRotation(angle int) int {
	angle = ((angle % 360) + 360) % 360
	return angle - angle%90
}

// DisplaySize is the page size in points after rotation.
func (g PageGeometry) DisplaySize() (float64, float64) {
	if g.Rotate == 90 || g.Rotate == 270 {
		return g.Height, g.Width
	}

	return g.Width, g.Height
}

// ToPage maps a rectangle given in pixels of a bitmap rendered at scale into
// PDF user space. The bitmap's y-axis is oriented at the top.
func (g PageGeometry) ToPage(rect r2.Rect, scale float64) r2.Rect {
	lo := g.pointToPage(r2.Point{X: rect.X.Lo / scale, Y: rect.Y.Lo / scale})
	hi := g.pointToPage(r2.Point{X: rect.X.Hi / scale, Y: rect.Y.Hi / scale})

	return r2.RectFromPoints(lo, hi)
}

// ToBitmap is the inverse of ToPage.
func (g PageGeometry) ToBitmap(rect r2.Rect, scale float64) r2.Rect {
	lo := g.pointToDisplay(rect.Lo())
	hi := g.pointToDisplay(rect.Hi())

	return r2.RectFromPoints(lo.Mul(scale), hi.Mul(scale))
}

func (g PageGeometry) pointToPage(d r2.Point) r2.Point {
	var ux, uy float64

	switch g.Rotate {
	case 90:
		ux, uy = d.Y, d.X
	case 180:
		ux, uy = g.Width-d.X, d.Y
	case 270:
		ux, uy = g.Width-d.Y, g.Height-d.X
	default:
		ux, uy = d.X, g.Height-d.Y
	}

	return r2.Point{X: ux + g.Llx, Y: uy + g.Lly}
}

func (g PageGeometry) pointToDisplay(p r2.Point) r2.Point {
	ux := p.X - g.Llx
	uy := p.Y - g.Lly

	switch g.Rotate {
	case 90:
		return r2.Point{X: uy, Y: ux}
	case 180:
		return r2.Point{X: g.Width - ux, Y: uy}
	case 270:
		return r2.Point{X: g.Height - uy, Y: g.Width - ux}
	}

	return r2.Point{X: ux, Y: g.Height - uy}
}

// ValidRect reports whether rect has finite bounds and a positive area.
func ValidRect(rect r2.Rect) bool {
	for _, v := range []float64{rect.X.Lo, rect.X.Hi, rect.Y.Lo, rect.Y.Hi} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return rect.X.Lo < rect.X.Hi && rect.Y.Lo < rect.Y.Hi
}

// QuadPoints orders the corners of rect the way viewers expect for text
// markup annotations: upper left, upper right, lower left, lower right.
func QuadPoints(rect r2.Rect) []float64 {
	return []float64{
		rect.X.Lo, rect.Y.Hi,
		rect.X.Hi, rect.Y.Hi,
		rect.X.Lo, rect.Y.Lo,
		rect.X.Hi, rect.Y.Lo,
	}
}

// RectArray is rect in the [llx lly urx ury] form used by annotation /Rect.
func RectArray(rect r2.Rect) []float64 {
	return []float64{rect.X.Lo, rect.Y.Lo, rect.X.Hi, rect.Y.Hi}
}

func IsWithinOverlapThresh(annot r2.Rect, mark r2.Rect) bool {
	markSize := getArea(mark)
	intersect := getArea(annot.Intersection(mark))

	return intersect/markSize >= 0.5
}

func getArea(r r2.Rect) float64 {
	s := r.Size()
	return s.X * s.Y
}

func GetMarkRect(mark extractor.TextMark) r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: mark.BBox.Llx, Y: mark.BBox.Lly},
		r2.Point{X: mark.BBox.Urx, Y: mark.BBox.Ury},
	)
}

func GetAnnotationRects(annotation *model.PdfAnnotation) []r2.Rect {
	qp := GetQuadPoint(annotation)

	if qp == nil {
		return nil
	}

	coords, err := qp.GetAsFloat64Slice()
	if err != nil {
		return nil
	}

	rects := []r2.Rect{}

	for i := 0; i+8 <= len(coords); i += 8 {
		rects = append(rects, r2.RectFromPoints(
			r2.Point{X: coords[i], Y: coords[i+1]},
			r2.Point{X: coords[i+2], Y: coords[i+3]},
			r2.Point{X: coords[i+4], Y: coords[i+5]},
			r2.Point{X: coords[i+6], Y: coords[i+7]},
		))
	}

	return rects
}

func GetQuadPoint(annotation *model.PdfAnnotation) *core.PdfObjectArray {
	var qp core.PdfObject

	switch ctx := annotation.GetContext().(type) {
	case *model.PdfAnnotationHighlight:
		qp = ctx.QuadPoints
	case *model.PdfAnnotationStrikeOut:
		qp = ctx.QuadPoints
	case *model.PdfAnnotationUnderline:
		qp = ctx.QuadPoints
	}

	arr, ok := core.GetArray(qp)
	if !ok {
		return nil
	}

	return arr
}

func GetCoordinates(annotation *model.PdfAnnotation) (float64, float64) {
	objArr, ok := core.GetArray(annotation.Rect)
	if !ok {
		return 0.0, 0.0
	}

	annotRect, err := objArr.ToFloat64Array()
	if err != nil || len(annotRect) < 4 {
		return 0.0, 0.0
	}

	x := math.Round(math.Min(annotRect[0], annotRect[2])*100) / 100
	y := math.Round(math.Min(annotRect[1], annotRect[3])*100) / 100

	return x, y
}
