package pdfutils

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
)

// ParseColor accepts a "#rrggbb" hex color.
func ParseColor(hex string) (colorful.Color, error) {
	clr, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, errors.Wrapf(err, "invalid color %q", hex)
	}

	return clr, nil
}

// ColorArray is clr as a DeviceRGB component array.
func ColorArray(clr colorful.Color) *core.PdfObjectArray {
	r, g, b := clr.Clamped().RGB255()
	return core.MakeArrayFromFloats([]float64{
		float64(r) / 255,
		float64(g) / 255,
		float64(b) / 255,
	})
}

func toHEXStr(i int) string {
	return fmt.Sprintf("%02x", i)
}

func objToColor(c core.PdfObject) (colorful.Color, bool) {
	objArr, ok := core.GetArray(c)
	if !ok {
		return colorful.Color{}, false
	}

	clr, err := objArr.ToFloat64Array()
	if err != nil || len(clr) < 3 {
		return colorful.Color{}, false
	}

	return colorful.Color{R: clr[0], G: clr[1], B: clr[2]}, true
}

func PDFObjToHex(c core.PdfObject) string {
	clr, ok := objToColor(c)
	if !ok {
		return ""
	}

	return "#" + toHEXStr(int(clr.R*255)) + toHEXStr(int(clr.G*255)) + toHEXStr(int(clr.B*255))
}

func GetAnnotationColor(annotation *model.PdfAnnotation) string {
	if annotation == nil {
		return ""
	}

	return PDFObjToHex(annotation.C)
}

func GetAnnotationColorCategory(annotation *model.PdfAnnotation) string {
	if annotation == nil {
		return ""
	}

	return PDFObjToColorCategory(annotation.C)
}

func PDFObjToColorCategory(c core.PdfObject) string {
	color, ok := objToColor(c)
	if !ok {
		return ""
	}

	return ColorCategory(color)
}

func ColorCategory(color colorful.Color) string {
	h, s, l := color.Hsl()

	// define color category based on HSL
	if l < 0.12 {
		return "Black"
	}
	if l > 0.98 {
		return "White"
	}
	if s < 0.2 {
		return "Gray"
	}
	if h < 15 {
		return "Red"
	}
	if h < 45 {
		return "Orange"
	}
	if h < 65 {
		return "Yellow"
	}
	if h < 170 {
		return "Green"
	}
	if h < 190 {
		return "Cyan"
	}
	if h < 263 {
		return "Blue"
	}
	if h < 280 {
		return "Purple"
	}
	if h < 335 {
		return "Magenta"
	}
	return "Red"
}
