package document

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("document: not found")
	ErrInvalidCategory   = errors.New("document: invalid category")
	ErrUnsupportedFormat = errors.New("document: unsupported format")
	ErrContentTooLarge   = errors.New("document: content too large")
	ErrValidation        = errors.New("document: validation failed")
	ErrDuplicateTitle    = errors.New("document: duplicate title")
)

// DuplicateTitleError reports a title collision along with how many existing
// documents carry the same title or a numeric suffix of it, so the caller can
// auto-suffix instead of retrying blindly.
type DuplicateTitleError struct {
	Count int
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("document: duplicate title (%d existing)", e.Count)
}

func (e *DuplicateTitleError) Unwrap() error { return ErrDuplicateTitle }
