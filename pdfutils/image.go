package pdfutils

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	FormatJPG = "jpg"
	FormatPNG = "png"
)

// ImageName builds the file name used for an exported page.
func ImageName(dir, baseName string, pageIndex int, format string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.%s", baseName, pageIndex+1, format))
}

func EncodeImage(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case FormatJPG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		return png.Encode(w, img)
	}

	return errors.Errorf("unsupported image format %q", format)
}

// WriteImage encodes img to name, replacing it atomically so a reader never
// sees a half-written file.
func WriteImage(img image.Image, name string, format string, quality int) error {
	fd, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return errors.Wrap(err, "creating image file")
	}

	defer os.Remove(fd.Name())

	if err := EncodeImage(fd, img, format, quality); err != nil {
		fd.Close()
		return errors.Wrapf(err, "encoding %s", name)
	}

	if err := fd.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", name)
	}

	return errors.Wrapf(os.Rename(fd.Name(), name), "writing %s", name)
}
