package pdfutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/extractor"
	"github.com/mgmeyers/unipdf/v3/model"
)

const dateFormatZ = "D:20060102150405Z07:00"
const dateFormatHour = "D:20060102150405-07"
const dateFormatNoZ = "D:20060102150405"

// FormatDate renders t as a PDF date string, e.g. D:20230714090503+02'00'.
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'

	if offset < 0 {
		sign = '-'
		offset = -offset
	}

	return fmt.Sprintf("%s%c%02d'%02d'", t.Format(dateFormatNoZ), sign, offset/3600, offset%3600/60)
}

func ParseDate(str string) *time.Time {
	// D:YYYYMMDDHHmmSS+HH'mm' becomes D:YYYYMMDDHHmmSS+HH:mm
	normalized := strings.ReplaceAll(strings.TrimSuffix(str, "'"), "'", ":")

	date, err := time.Parse(dateFormatZ, normalized)

	if err != nil {
		date, err = time.Parse(dateFormatHour, normalized)
	}

	if err != nil {
		split := strings.Split(str, "Z")
		date, err = time.Parse(dateFormatNoZ, split[0])
	}

	if err != nil {
		return nil
	}

	return &date
}

func GetAnnotationDate(annot *model.PdfAnnotation) *time.Time {
	dateStr, ok := core.GetString(annot.M)
	if !ok {
		return nil
	}

	return ParseDate(dateStr.String())
}

func GetAnnotationType(t interface{}) string {
	switch t.(type) {
	case *model.PdfAnnotationHighlight:
		return Highlight
	case *model.PdfAnnotationStrikeOut:
		return Strike
	case *model.PdfAnnotationUnderline:
		return Underline
	case *model.PdfAnnotationSquare:
		return Rectangle
	case *model.PdfAnnotationText:
		return Text
	default:
		return Unsupported
	}
}

func GetAnnotationAuthor(annot *model.PdfAnnotation) string {
	var author core.PdfObject

	switch ctx := annot.GetContext().(type) {
	case *model.PdfAnnotationHighlight:
		author = ctx.T
	case *model.PdfAnnotationStrikeOut:
		author = ctx.T
	case *model.PdfAnnotationUnderline:
		author = ctx.T
	case *model.PdfAnnotationSquare:
		author = ctx.T
	case *model.PdfAnnotationText:
		author = ctx.T
	}

	str, ok := core.GetString(author)
	if !ok {
		return ""
	}

	return RemoveNul(str.Decoded())
}

func RemoveNul(str string) string {
	return strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, str)
}

func GetAnnotationID(ids map[string]bool, pageIndex int, x float64, y float64, annotType string) string {
	xInt := int(x)
	yInt := int(y)
	id := fmt.Sprintf("%s-p%dx%dy%d", annotType, pageIndex+1, xInt, yInt)
	_, ok := ids[id]

	for i := 1; ok; i++ {
		id = fmt.Sprintf("%s-p%dx%dy%d-%d", annotType, pageIndex+1, xInt, yInt, i)
		_, ok = ids[id]
	}

	ids[id] = true

	return id
}

// GetMarkedText joins the text marks that mostly lie inside annotRect.
func GetMarkedText(text string, annotRect r2.Rect, markRects []r2.Rect, marks []extractor.TextMark) string {
	segment := ""

	for i, mark := range markRects {
		if !mark.IsValid() || mark.IsEmpty() {
			continue
		}

		if !annotRect.Intersects(mark) || !IsWithinOverlapThresh(annotRect, mark) {
			continue
		}

		if len(marks[i].Text) > 0 && marks[i].Offset > 0 && marks[i].Offset <= len(text) && len(segment) > 0 {
			prevChar := text[marks[i].Offset-1]

			if prevChar == ' ' || prevChar == '\n' {
				segment += " " + marks[i].Text
				continue
			}
		}

		segment += marks[i].Text
	}

	return segment
}

var nlAndSpace = regexp.MustCompile(`[\n\s]+`)

func CondenseSpaces(str string) string {
	return strings.TrimSpace(nlAndSpace.ReplaceAllString(str, " "))
}
