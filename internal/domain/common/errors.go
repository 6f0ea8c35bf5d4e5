package common

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("requested item not found")
	ErrConflict   = errors.New("item already exists or conflict")
	ErrBadRequest = errors.New("bad request")
)

// File-level failures abort the whole upload.
var (
	ErrUnrecognizedFormat = errors.New("unrecognized csv format")
	ErrEmptyFile          = errors.New("file is empty")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrFileTooLarge       = errors.New("file exceeds upload limit")
)

// Row-scoped failures skip a single row and are reported alongside the result.
var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrMalformedLineItem = errors.New("malformed line item")
)

var (
	// ErrOCRUnavailable is recovered by the extraction adapter and never surfaced.
	ErrOCRUnavailable = errors.New("ocr engine unavailable")
	ErrDuplicateBill  = fmt.Errorf("duplicate bill: %w", ErrConflict)
)

// RowError ties a row-scoped failure to its 1-indexed line in the source file.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}
