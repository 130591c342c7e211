// Package viewer holds the page, zoom and highlight state of a document view
// and turns input events into document operations.
package viewer

import (
	"image"
	"io"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mgmeyers/pdfmark/pdfutils"
)

const (
	MinScale = 0.25
	MaxScale = 8.0
)

var ErrEmptyRegion = errors.New("highlight region is empty")

// Document is the part of a document session the controller drives.
type Document interface {
	PageCount() int
	Geometry(index int) (pdfutils.PageGeometry, error)
	Render(index int, scale float64) (*image.RGBA, error)
	AddHighlight(index int, rect r2.Rect) error
	DiscardPending()
	Persist() error
}

// Highlight is a marked region in PDF user space of page Page.
type Highlight struct {
	Page int
	Rect r2.Rect
}

type Direction int

const (
	Next Direction = iota
	Previous
)

type State struct {
	PageIndex  int
	PageCount  int
	Scale      float64
	Geometry   pdfutils.PageGeometry
	Highlights []Highlight
	Bitmap     *image.RGBA
	// LastErr is the most recent save failure, cleared by a successful save.
	LastErr error
}

type Options struct {
	Scale  float64
	KeyMap *KeyMap
	Logger logrus.FieldLogger
}

type Controller struct {
	doc   Document
	keys  KeyMap
	state State
	log   logrus.FieldLogger
}

// New shows the first page of doc.
func New(doc Document, opts Options) (*Controller, error) {
	if doc.PageCount() < 1 {
		return nil, errors.New("document has no pages")
	}

	scale := opts.Scale
	if scale == 0 {
		scale = 1.0
	}
	if !(scale > 0) {
		return nil, errors.Errorf("invalid scale %v", scale)
	}

	c := &Controller{
		doc:  doc,
		keys: DefaultKeyMap(),
		log:  opts.Logger,
		state: State{
			PageCount: doc.PageCount(),
			Scale:     scale,
		},
	}

	if opts.KeyMap != nil {
		c.keys = *opts.KeyMap
	}

	if c.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		c.log = discard
	}

	if err := c.render(); err != nil {
		return nil, err
	}

	return c, nil
}

// State returns a snapshot of the view. The highlight slice is a copy.
func (c *Controller) State() State {
	s := c.state
	s.Highlights = append([]Highlight(nil), c.state.Highlights...)
	return s
}

func (c *Controller) render() error {
	geom, err := c.doc.Geometry(c.state.PageIndex)
	if err != nil {
		return err
	}

	bitmap, err := c.doc.Render(c.state.PageIndex, c.state.Scale)
	if err != nil {
		return err
	}

	c.state.Geometry = geom
	c.state.Bitmap = bitmap

	return nil
}

// Navigate moves one page. Moving past either end is a no-op.
func (c *Controller) Navigate(dir Direction) error {
	index := c.state.PageIndex

	switch {
	case dir == Next && index < c.state.PageCount-1:
		index++
	case dir == Previous && index > 0:
		index--
	default:
		return nil
	}

	previous := c.state.PageIndex
	c.state.PageIndex = index

	if err := c.render(); err != nil {
		c.state.PageIndex = previous
		return err
	}

	c.log.WithField("page", index+1).Debug("navigated")

	return nil
}

// MarkRegion records rect, given in pixels of the current bitmap, as a
// highlight on the current page.
func (c *Controller) MarkRegion(rect r2.Rect) error {
	if !pdfutils.ValidRect(rect) {
		return ErrEmptyRegion
	}

	h := Highlight{
		Page: c.state.PageIndex,
		Rect: c.state.Geometry.ToPage(rect, c.state.Scale),
	}

	c.state.Highlights = append(c.state.Highlights, h)

	c.log.WithFields(logrus.Fields{
		"page":    h.Page + 1,
		"x":       h.Rect.X.Lo,
		"y":       h.Rect.Y.Lo,
		"pending": len(c.state.Highlights),
	}).Debug("marked region")

	return nil
}

// SaveHighlights writes every pending highlight to the page it was marked
// on. The pending list survives a failed save so it can be retried.
func (c *Controller) SaveHighlights() error {
	for _, h := range c.state.Highlights {
		if err := c.doc.AddHighlight(h.Page, h.Rect); err != nil {
			// Drop what was staged so a retry does not write it twice.
			c.doc.DiscardPending()
			c.state.LastErr = err
			c.log.WithError(err).Error("staging highlights failed")
			return err
		}
	}

	if err := c.doc.Persist(); err != nil {
		c.state.LastErr = err
		c.log.WithError(err).Error("saving highlights failed")
		return err
	}

	saved := len(c.state.Highlights)
	c.state.Highlights = nil
	c.state.LastErr = nil

	c.log.WithField("highlights", saved).Debug("saved highlights")

	if saved == 0 {
		return nil
	}

	// Saved highlights now come from the document itself.
	return c.render()
}

// SetScale re-renders the current page at scale. Pending highlights keep
// their page position.
func (c *Controller) SetScale(scale float64) error {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return errors.Errorf("invalid scale %v", scale)
	}

	previous := c.state.Scale
	c.state.Scale = scale

	if err := c.render(); err != nil {
		c.state.Scale = previous
		return err
	}

	return nil
}

func (c *Controller) zoom(factor float64) error {
	scale := math.Max(MinScale, math.Min(MaxScale, c.state.Scale*factor))
	if scale == c.state.Scale {
		return nil
	}

	return c.SetScale(scale)
}

// Handle performs the action bound to ev and reports which action it was.
func (c *Controller) Handle(ev InputEvent) (Action, error) {
	action := c.keys.Action(ev)

	var err error

	switch action {
	case ActionNextPage:
		err = c.Navigate(Next)
	case ActionPreviousPage:
		err = c.Navigate(Previous)
	case ActionMark:
		err = c.MarkRegion(r2.RectFromPoints(ev.From, ev.To))
	case ActionSave:
		err = c.SaveHighlights()
	case ActionZoomIn:
		err = c.zoom(2)
	case ActionZoomOut:
		err = c.zoom(0.5)
	}

	return action, err
}

// VisibleHighlights projects the pending highlights of the current page
// into bitmap pixels, in marking order.
func (s State) VisibleHighlights() []r2.Rect {
	rects := []r2.Rect{}

	for _, h := range s.Highlights {
		if h.Page != s.PageIndex {
			continue
		}

		rects = append(rects, s.Geometry.ToBitmap(h.Rect, s.Scale))
	}

	return rects
}
