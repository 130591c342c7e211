package pdfutils

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
)

// PageAnnotations lists the supported annotations of page, top to bottom.
// ids collects annotation ids across pages so they stay unique per document.
func PageAnnotations(pageIndex int, page *model.PdfPage, ids map[string]bool) ([]*Annotation, error) {
	annotations, err := page.GetAnnotations()
	if err != nil {
		return nil, errors.Wrapf(err, "reading annotations of page %d", pageIndex+1)
	}

	var text string
	var marks []extractor.TextMark
	var markRects []r2.Rect
	textLoaded := false

	loadText := func() {
		textLoaded = true

		ext, err := extractor.New(page)
		if err != nil {
			return
		}

		txt, _, _, err := ext.ExtractPageText()
		if err != nil {
			return
		}

		text = txt.Text()
		marks = txt.Marks().Elements()

		for _, mark := range marks {
			markRects = append(markRects, GetMarkRect(mark))
		}
	}

	annots := []*Annotation{}

	for _, annotation := range annotations {
		annotType := GetAnnotationType(annotation.GetContext())

		if annotType == Unsupported {
			continue
		}

		x, y := GetCoordinates(annotation)

		built := &Annotation{
			Author:        GetAnnotationAuthor(annotation),
			Color:         GetAnnotationColor(annotation),
			ColorCategory: GetAnnotationColorCategory(annotation),
			Type:          annotType,
			Page:          pageIndex + 1,
			X:             x,
			Y:             y,
		}

		if contents, ok := core.GetString(annotation.Contents); ok {
			built.Comment = RemoveNul(contents.Decoded())
		}

		if date := GetAnnotationDate(annotation); date != nil {
			built.Date = date.Format(time.RFC3339)
		}

		if annoRects := GetAnnotationRects(annotation); len(annoRects) > 0 {
			if !textLoaded {
				loadText()
			}

			str := ""

			for _, anno := range annoRects {
				if !anno.IsValid() || anno.IsEmpty() {
					continue
				}

				str += GetMarkedText(text, anno, markRects, marks)
			}

			built.AnnotatedText = CondenseSpaces(str)
		}

		annots = append(annots, built)
	}

	SortAnnotations(annots)

	for _, annot := range annots {
		annot.ID = GetAnnotationID(ids, pageIndex, annot.X, annot.Y, annot.Type)
	}

	return annots, nil
}
