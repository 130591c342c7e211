package viewer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmeyers/pdfmark/pdfutils"
)

type added struct {
	page int
	rect r2.Rect
}

type fakeDocument struct {
	pages      []pdfutils.PageGeometry
	renders    []int
	added      []added
	persisted  [][]added
	persistErr error
	// failAdd makes the n-th AddHighlight call fail; zero never fails.
	failAdd  int
	addCalls int
}

func newFakeDocument(n int) *fakeDocument {
	doc := &fakeDocument{}
	for i := 0; i < n; i++ {
		doc.pages = append(doc.pages, pdfutils.PageGeometry{Width: 612, Height: 792})
	}
	return doc
}

func (d *fakeDocument) PageCount() int { return len(d.pages) }

func (d *fakeDocument) Geometry(index int) (pdfutils.PageGeometry, error) {
	if index < 0 || index >= len(d.pages) {
		return pdfutils.PageGeometry{}, errors.New("out of range")
	}
	return d.pages[index], nil
}

func (d *fakeDocument) Render(index int, scale float64) (*image.RGBA, error) {
	geom, err := d.Geometry(index)
	if err != nil {
		return nil, err
	}
	d.renders = append(d.renders, index)

	w, h := geom.DisplaySize()
	img := image.NewRGBA(image.Rect(0, 0, int(math.Round(w*scale)), int(math.Round(h*scale))))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func (d *fakeDocument) AddHighlight(index int, rect r2.Rect) error {
	d.addCalls++
	if d.addCalls == d.failAdd {
		return errors.New("cannot stage highlight")
	}
	d.added = append(d.added, added{page: index, rect: rect})
	return nil
}

func (d *fakeDocument) DiscardPending() { d.added = nil }

func (d *fakeDocument) Persist() error {
	pending := d.added
	d.added = nil
	if d.persistErr != nil {
		return d.persistErr
	}
	d.persisted = append(d.persisted, pending)
	return nil
}

func newController(t *testing.T, doc Document) *Controller {
	t.Helper()

	c, err := New(doc, Options{})
	require.NoError(t, err)
	return c
}

func bitmapRect(x0, y0, x1, y1 float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x0, Y: y0}, r2.Point{X: x1, Y: y1})
}

func assertRectNear(t *testing.T, want, got r2.Rect) {
	t.Helper()

	assert.InDelta(t, want.X.Lo, got.X.Lo, 1e-9)
	assert.InDelta(t, want.X.Hi, got.X.Hi, 1e-9)
	assert.InDelta(t, want.Y.Lo, got.Y.Lo, 1e-9)
	assert.InDelta(t, want.Y.Hi, got.Y.Hi, 1e-9)
}

func TestNewRendersFirstPage(t *testing.T) {
	doc := newFakeDocument(3)
	c := newController(t, doc)

	state := c.State()
	assert.Equal(t, 0, state.PageIndex)
	assert.Equal(t, 1.0, state.Scale)
	assert.Equal(t, image.Rect(0, 0, 612, 792), state.Bitmap.Bounds())
	assert.Equal(t, []int{0}, doc.renders)
}

func TestNewRejectsEmptyDocument(t *testing.T) {
	_, err := New(newFakeDocument(0), Options{})
	assert.Error(t, err)
}

func TestNavigateClamps(t *testing.T) {
	doc := newFakeDocument(2)
	c := newController(t, doc)

	require.NoError(t, c.Navigate(Previous))
	assert.Equal(t, 0, c.State().PageIndex)

	require.NoError(t, c.Navigate(Next))
	require.NoError(t, c.Navigate(Next))
	assert.Equal(t, 1, c.State().PageIndex)

	// Clamped moves do not re-render.
	assert.Equal(t, []int{0, 1}, doc.renders)
}

func TestNavigateSequence(t *testing.T) {
	c := newController(t, newFakeDocument(3))

	require.NoError(t, c.Navigate(Next))
	require.NoError(t, c.Navigate(Next))
	require.NoError(t, c.Navigate(Previous))

	assert.Equal(t, 1, c.State().PageIndex)
}

func TestMarkRegionAppends(t *testing.T) {
	c := newController(t, newFakeDocument(3))
	r := bitmapRect(10, 20, 110, 50)

	require.NoError(t, c.MarkRegion(bitmapRect(0, 0, 5, 5)))
	before := len(c.State().Highlights)

	require.NoError(t, c.MarkRegion(r))

	state := c.State()
	require.Len(t, state.Highlights, before+1)

	visible := state.VisibleHighlights()
	assertRectNear(t, r, visible[len(visible)-1])

	// Stored in page space: y is flipped against the page height.
	last := state.Highlights[len(state.Highlights)-1]
	assert.Equal(t, 0, last.Page)
	assertRectNear(t, bitmapRect(10, 742, 110, 772), last.Rect)
}

func TestMarkRegionRejectsEmpty(t *testing.T) {
	c := newController(t, newFakeDocument(1))

	invalid := []r2.Rect{
		bitmapRect(10, 10, 10, 40),
		bitmapRect(0, 0, math.Inf(1), 40),
		bitmapRect(math.Inf(-1), 0, 10, 40),
		bitmapRect(math.NaN(), 0, 10, 40),
	}

	for _, r := range invalid {
		assert.True(t, errors.Is(c.MarkRegion(r), ErrEmptyRegion), "%v", r)
	}

	assert.Empty(t, c.State().Highlights)
}

func TestHighlightsKeepTheirPage(t *testing.T) {
	doc := newFakeDocument(3)
	c := newController(t, doc)

	require.NoError(t, c.MarkRegion(bitmapRect(10, 10, 20, 20)))
	require.NoError(t, c.Navigate(Next))
	require.NoError(t, c.MarkRegion(bitmapRect(30, 30, 40, 40)))

	state := c.State()
	require.Len(t, state.Highlights, 2)
	assert.Len(t, state.VisibleHighlights(), 1)

	require.NoError(t, c.SaveHighlights())
	require.Len(t, doc.persisted, 1)

	pages := []int{}
	for _, a := range doc.persisted[0] {
		pages = append(pages, a.page)
	}
	if diff := cmp.Diff([]int{0, 1}, pages); diff != "" {
		t.Errorf("saved pages (-want +got):\n%s", diff)
	}
}

func TestZoomKeepsHighlightOnPage(t *testing.T) {
	c := newController(t, newFakeDocument(1))

	require.NoError(t, c.MarkRegion(bitmapRect(10, 10, 20, 20)))
	require.NoError(t, c.SetScale(2))

	state := c.State()
	assert.Equal(t, image.Rect(0, 0, 1224, 1584), state.Bitmap.Bounds())
	assertRectNear(t, bitmapRect(20, 20, 40, 40), state.VisibleHighlights()[0])

	assert.Error(t, c.SetScale(0))
	assert.Equal(t, 2.0, c.State().Scale)
}

func TestSaveEmptyStillPersists(t *testing.T) {
	doc := newFakeDocument(1)
	c := newController(t, doc)

	require.NoError(t, c.SaveHighlights())
	require.Len(t, doc.persisted, 1)
	assert.Empty(t, doc.persisted[0])
	assert.Equal(t, []int{0}, doc.renders)
}

func TestSaveClearsPendingAndRerenders(t *testing.T) {
	doc := newFakeDocument(1)
	c := newController(t, doc)

	require.NoError(t, c.MarkRegion(bitmapRect(10, 10, 20, 20)))
	require.NoError(t, c.SaveHighlights())

	assert.Empty(t, c.State().Highlights)
	assert.Equal(t, []int{0, 0}, doc.renders)
}

func TestSaveFailureKeepsHighlights(t *testing.T) {
	doc := newFakeDocument(1)
	doc.persistErr = errors.New("read-only file system")
	c := newController(t, doc)

	require.NoError(t, c.MarkRegion(bitmapRect(10, 10, 20, 20)))
	require.NoError(t, c.MarkRegion(bitmapRect(30, 30, 40, 40)))
	want := c.State().Highlights

	err := c.SaveHighlights()
	require.Error(t, err)

	state := c.State()
	assert.Equal(t, err, state.LastErr)
	if diff := cmp.Diff(want, state.Highlights); diff != "" {
		t.Errorf("highlights changed (-want +got):\n%s", diff)
	}

	// A retry adds each highlight exactly once.
	doc.persistErr = nil
	require.NoError(t, c.SaveHighlights())
	require.Len(t, doc.persisted, 1)
	assert.Len(t, doc.persisted[0], 2)
	assert.NoError(t, c.State().LastErr)
}

func TestStagingFailureIsNotSavedTwice(t *testing.T) {
	doc := newFakeDocument(1)
	doc.failAdd = 2
	c := newController(t, doc)

	for _, x := range []float64{10, 30, 50} {
		require.NoError(t, c.MarkRegion(bitmapRect(x, 10, x+10, 20)))
	}

	require.Error(t, c.SaveHighlights())
	assert.Empty(t, doc.added)
	assert.Len(t, c.State().Highlights, 3)
	assert.Error(t, c.State().LastErr)

	require.NoError(t, c.SaveHighlights())
	require.Len(t, doc.persisted, 1)
	assert.Len(t, doc.persisted[0], 3)
	assert.Empty(t, c.State().Highlights)
}

func TestHandleDispatches(t *testing.T) {
	doc := newFakeDocument(3)
	c := newController(t, doc)

	steps := []struct {
		event  InputEvent
		action Action
		page   int
	}{
		{KeyEvent(KeyDown), ActionNextPage, 1},
		{KeyEvent(KeyDown), ActionNextPage, 2},
		{KeyEvent(KeyDown), ActionNextPage, 2},
		{KeyEvent(KeyUp), ActionPreviousPage, 1},
		{RuneEvent('x'), ActionNone, 1},
		{DragEvent(r2.Point{X: 50, Y: 60}, r2.Point{X: 10, Y: 20}), ActionMark, 1},
		{RuneEvent('s'), ActionSave, 1},
		{RuneEvent('q'), ActionQuit, 1},
	}

	for _, step := range steps {
		action, err := c.Handle(step.event)
		require.NoError(t, err)
		assert.Equal(t, step.action, action)
		assert.Equal(t, step.page, c.State().PageIndex)
	}

	require.Len(t, doc.persisted, 1)
	require.Len(t, doc.persisted[0], 1)
	assert.Equal(t, 1, doc.persisted[0][0].page)
	assertRectNear(t, bitmapRect(10, 732, 50, 772), doc.persisted[0][0].rect)
}

func TestHandleZoomIsBounded(t *testing.T) {
	c := newController(t, newFakeDocument(1))

	for i := 0; i < 10; i++ {
		_, err := c.Handle(RuneEvent('+'))
		require.NoError(t, err)
	}
	assert.Equal(t, MaxScale, c.State().Scale)

	for i := 0; i < 10; i++ {
		_, err := c.Handle(RuneEvent('-'))
		require.NoError(t, err)
	}
	assert.Equal(t, MinScale, c.State().Scale)
}

func TestComposeAndRasterize(t *testing.T) {
	c := newController(t, newFakeDocument(1))
	require.NoError(t, c.SetScale(0.5))
	require.NoError(t, c.MarkRegion(bitmapRect(10, 10, 20, 20)))
	require.NoError(t, c.MarkRegion(bitmapRect(15, 15, 30, 30)))

	cmds := Compose(c.State(), DefaultStyle())
	require.Len(t, cmds, 3)
	assert.IsType(t, DrawImage{}, cmds[0])
	assert.Equal(t, image.Rect(10, 10, 20, 20), cmds[1].(FillRect).Rect)
	assert.Equal(t, image.Rect(15, 15, 30, 30), cmds[2].(FillRect).Rect)

	frame := Rasterize(cmds)
	assert.Equal(t, image.Rect(0, 0, 306, 396), frame.Bounds())

	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	assert.Equal(t, white, frame.RGBAAt(5, 5))

	once := frame.RGBAAt(12, 12)
	assert.Equal(t, uint8(0xff), once.R)
	assert.Less(t, once.B, uint8(0xff))

	// Overlapping fills stack in marking order.
	twice := frame.RGBAAt(17, 17)
	assert.Less(t, twice.B, once.B)
}
