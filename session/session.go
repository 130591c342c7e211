// Package session owns an open PDF document: it renders pages, stages
// highlight annotations and appends them to the file as an incremental
// update.
package session

import (
	"bytes"
	"image"
	"io"
	"math"
	"os"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/mgmeyers/pdfmark/pdfutils"
)

// pointsPerInch is the DPI at which one PDF unit becomes one pixel.
const pointsPerInch = 72.0

type Options struct {
	Style  Style
	Logger logrus.FieldLogger
	// Now stamps saved annotations; time.Now when nil.
	Now func() time.Time
}

type staged struct {
	page int
	rect r2.Rect
}

type Session struct {
	path   string
	data   []byte
	reader *model.PdfReader
	doc    *fitz.Document
	pages  []pdfutils.PageGeometry
	staged []staged
	style  Style
	log    logrus.FieldLogger
	now    func() time.Time

	// encrypted is true when the file carries a security handler.
	encrypted bool
	// reload parses the file contents after a successful append.
	reload func(data []byte) error
}

// Open loads the document at path. Any failure is reported as a *FileError
// and no session is returned.
func Open(path string, opts Options) (*Session, error) {
	s, err := open(path, opts)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	return s, nil
}

func open(path string, opts Options) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Session{
		path:  path,
		style: opts.Style,
		log:   opts.Logger,
		now:   opts.Now,
	}

	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = discard
	}

	if s.now == nil {
		s.now = time.Now
	}

	s.reload = s.load

	if err := s.load(data); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"path":  path,
		"pages": len(s.pages),
		"bytes": len(data),
	}).Debug("opened document")

	return s, nil
}

// load replaces the parsed state with data. The session is left untouched
// when data cannot be parsed.
func (s *Session) load(data []byte) error {
	reader, encrypted, err := newReader(data)
	if err != nil {
		return err
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return errors.Wrap(err, "counting pages")
	}

	pages := make([]pdfutils.PageGeometry, 0, numPages)

	for i := 0; i < numPages; i++ {
		page, err := reader.GetPage(i + 1)
		if err != nil {
			return errors.Wrapf(err, "loading page %d", i+1)
		}

		geom, err := pdfutils.GetPageGeometry(page)
		if err != nil {
			return errors.Wrapf(err, "page %d", i+1)
		}

		pages = append(pages, geom)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return errors.Wrap(err, "rendering engine")
	}

	if doc.NumPage() != numPages {
		doc.Close()
		return errors.Errorf("page count mismatch: %d parsed, %d renderable", numPages, doc.NumPage())
	}

	if s.doc != nil {
		s.doc.Close()
	}

	s.data = data
	s.reader = reader
	s.doc = doc
	s.pages = pages
	s.encrypted = encrypted

	return nil
}

func newReader(data []byte) (*model.PdfReader, bool, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.Wrap(err, "not a PDF document")
	}

	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return nil, false, errors.Wrap(err, "reading security handler")
	}

	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil {
			return nil, false, errors.Wrap(err, "decrypting")
		}
		if !ok {
			return nil, false, ErrEncrypted
		}
	}

	return reader, encrypted, nil
}

func (s *Session) Path() string { return s.path }

func (s *Session) PageCount() int { return len(s.pages) }

// Encrypted reports whether the document has a security handler.
func (s *Session) Encrypted() bool { return s.encrypted }

// Pending is the number of staged highlights not yet written to disk.
func (s *Session) Pending() int { return len(s.staged) }

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.pages) {
		return errors.Wrapf(ErrPageRange, "page %d of %d", index, len(s.pages))
	}

	return nil
}

func (s *Session) Geometry(index int) (pdfutils.PageGeometry, error) {
	if err := s.checkIndex(index); err != nil {
		return pdfutils.PageGeometry{}, err
	}

	return s.pages[index], nil
}

// PageSize is the pixel size of page index rendered at scale 1.
func (s *Session) PageSize(index int) (image.Rectangle, error) {
	if err := s.checkIndex(index); err != nil {
		return image.Rectangle{}, err
	}

	w, h := s.pages[index].DisplaySize()

	return image.Rect(0, 0, int(math.Round(w)), int(math.Round(h))), nil
}

// Render rasterizes page index at scale. The result is opaque: every pixel
// has full alpha.
func (s *Session) Render(index int, scale float64) (*image.RGBA, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}

	if !(scale > 0) {
		return nil, errors.Wrapf(ErrInvalidScale, "scale %v", scale)
	}

	img, err := s.doc.ImageDPI(index, pointsPerInch*scale)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering page %d", index+1)
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return rgba, nil
}

// AddHighlight stages a highlight over rect, given in PDF user space of
// page index. Nothing is written until Persist.
func (s *Session) AddHighlight(index int, rect r2.Rect) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}

	if !pdfutils.ValidRect(rect) {
		return errors.Wrapf(ErrInvalidRect, "%v", rect)
	}

	s.staged = append(s.staged, staged{page: index, rect: rect})

	return nil
}

// DiscardPending drops staged highlights without writing them.
func (s *Session) DiscardPending() {
	s.staged = nil
}

// Persist appends the staged highlights to the file as an incremental
// update. The staged highlights are dropped whether or not the write
// succeeds; on failure the file is unchanged and a *PersistError is
// returned.
func (s *Session) Persist() error {
	if len(s.staged) == 0 {
		s.log.Debug("nothing to save")
		return nil
	}

	pending := s.staged
	s.staged = nil

	if err := s.persist(pending); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"path":       s.path,
		"highlights": len(pending),
	}).Info("saved highlights")

	return nil
}

func (s *Session) persist(pending []staged) error {
	// The update would be written in the clear next to encrypted objects.
	if s.encrypted {
		return ErrEncryptedSave
	}

	// Open first: a missing or read-only file should fail before any work.
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if info.Size() != int64(len(s.data)) {
		return ErrDocumentChanged
	}

	updated, err := s.appendHighlights(pending)
	if err != nil {
		return err
	}

	if !bytes.HasPrefix(updated, s.data) {
		return ErrIncrementalMismatch
	}

	if _, err := f.Write(updated[len(s.data):]); err != nil {
		return errors.Wrap(err, "appending update")
	}

	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "flushing update")
	}

	// The highlights are on disk from here on; later saves must build on
	// these bytes even if they cannot be parsed for display.
	s.data = updated

	if err := s.reload(updated); err != nil {
		s.log.WithError(err).Warn("saved document could not be reloaded")
	}

	return nil
}

// appendHighlights returns the file contents with an incremental update
// holding the pending annotations. A fresh reader is used so a failed save
// leaves no trace in s.reader.
func (s *Session) appendHighlights(pending []staged) ([]byte, error) {
	reader, _, err := newReader(s.data)
	if err != nil {
		return nil, err
	}

	appender, err := model.NewPdfAppender(reader)
	if err != nil {
		return nil, errors.Wrap(err, "starting incremental update")
	}

	now := s.now()
	pages := map[int]*model.PdfPage{}
	order := []int{}

	for _, h := range pending {
		page, ok := pages[h.page]

		if !ok {
			page, err = reader.GetPage(h.page + 1)
			if err != nil {
				return nil, errors.Wrapf(err, "loading page %d", h.page+1)
			}

			pages[h.page] = page
			order = append(order, h.page)
		}

		annot, err := newHighlightAnnotation(h.rect, s.style, now)
		if err != nil {
			return nil, err
		}

		page.AddAnnotation(annot.PdfAnnotation)
	}

	for _, index := range order {
		appender.UpdatePage(pages[index])
	}

	var buf bytes.Buffer

	if err := appender.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "writing incremental update")
	}

	return buf.Bytes(), nil
}

// Annotations lists the supported annotations on page index.
func (s *Session) Annotations(index int) ([]*pdfutils.Annotation, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}

	page, err := s.reader.GetPage(index + 1)
	if err != nil {
		return nil, errors.Wrapf(err, "loading page %d", index+1)
	}

	return pdfutils.PageAnnotations(index, page, map[string]bool{})
}

// AllAnnotations lists the annotations of every page with document-wide
// unique ids.
func (s *Session) AllAnnotations() ([]*pdfutils.Annotation, error) {
	ids := map[string]bool{}
	all := []*pdfutils.Annotation{}

	for i := range s.pages {
		page, err := s.reader.GetPage(i + 1)
		if err != nil {
			return nil, errors.Wrapf(err, "loading page %d", i+1)
		}

		annots, err := pdfutils.PageAnnotations(i, page, ids)
		if err != nil {
			return nil, err
		}

		all = append(all, annots...)
	}

	return all, nil
}

func (s *Session) Close() error {
	if s.doc == nil {
		return nil
	}

	err := s.doc.Close()
	s.doc = nil

	return err
}
