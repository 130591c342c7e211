package session

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrPageRange           = errors.New("page index out of range")
	ErrInvalidScale        = errors.New("scale must be positive")
	ErrEncrypted           = errors.New("document requires a password")
	ErrEncryptedSave       = errors.New("saving highlights into encrypted documents is not supported")
	ErrInvalidRect         = errors.New("highlight rectangle must be finite and non-empty")
	ErrDocumentChanged     = errors.New("file changed on disk since it was opened")
	ErrIncrementalMismatch = errors.New("incremental update does not extend the original file")
)

// FileError reports a document that could not be opened.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// PersistError reports highlights that could not be written back. The
// document stays open and the caller may retry.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("cannot save %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
