package viewer

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// overlayAlpha is the opacity of the on-screen tint, out of 255.
const overlayAlpha = 100

// DrawCommand is one step of painting a frame.
type DrawCommand interface {
	isDrawCommand()
}

// DrawImage paints Image at the origin.
type DrawImage struct {
	Image image.Image
}

// FillRect blends Color over Rect.
type FillRect struct {
	Rect  image.Rectangle
	Color color.NRGBA
}

func (DrawImage) isDrawCommand() {}
func (FillRect) isDrawCommand()  {}

type Style struct {
	Tint colorful.Color
}

func DefaultStyle() Style {
	return Style{Tint: colorful.Color{R: 1, G: 1, B: 0}}
}

func (s Style) overlay() color.NRGBA {
	r, g, b := s.Tint.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: overlayAlpha}
}

// Compose lists the commands that paint state: the page bitmap, then one
// fill per pending highlight of the current page.
func Compose(state State, style Style) []DrawCommand {
	if state.Bitmap == nil {
		return nil
	}

	cmds := []DrawCommand{DrawImage{Image: state.Bitmap}}
	tint := style.overlay()

	for _, rect := range state.VisibleHighlights() {
		cmds = append(cmds, FillRect{Rect: pixelRect(rect), Color: tint})
	}

	return cmds
}

func pixelRect(r r2.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X.Lo)),
		int(math.Floor(r.Y.Lo)),
		int(math.Ceil(r.X.Hi)),
		int(math.Ceil(r.Y.Hi)),
	)
}

// Rasterize executes cmds on a canvas sized to the first image drawn.
func Rasterize(cmds []DrawCommand) *image.RGBA {
	var canvas *image.RGBA

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case DrawImage:
			if canvas == nil {
				canvas = image.NewRGBA(image.Rect(0, 0, c.Image.Bounds().Dx(), c.Image.Bounds().Dy()))
			}
			draw.Draw(canvas, canvas.Bounds(), c.Image, c.Image.Bounds().Min, draw.Src)
		case FillRect:
			if canvas == nil {
				continue
			}
			draw.Draw(canvas, c.Rect.Intersect(canvas.Bounds()), image.NewUniform(c.Color), image.Point{}, draw.Over)
		}
	}

	if canvas == nil {
		canvas = image.NewRGBA(image.Rectangle{})
	}

	return canvas
}
