package main

import (
	"image"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mgmeyers/pdfmark/pdfutils"
)

type pageRenderer interface {
	PageCount() int
	Render(index int, scale float64) (*image.RGBA, error)
}

type exportOptions struct {
	Dir      string
	BaseName string
	Scale    float64
	Format   string
	Quality  int
}

// exportPages writes every page, saved highlights included, as an image.
// Rendering is serialized by the document; encoding runs in parallel.
func exportPages(doc pageRenderer, opts exportOptions, log logger) error {
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "creating export directory")
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < doc.PageCount(); i++ {
		i := i

		g.Go(func() error {
			img, err := doc.Render(i, opts.Scale)
			if err != nil {
				return err
			}

			name := pdfutils.ImageName(opts.Dir, opts.BaseName, i, opts.Format)
			if err := pdfutils.WriteImage(img, name, opts.Format, opts.Quality); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{"page": i + 1, "file": name}).Debug("exported page")

			return nil
		})
	}

	return g.Wait()
}
