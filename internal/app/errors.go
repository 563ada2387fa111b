package app

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers classify failures with errors.Is against these.
var (
	ErrValidation = errors.New("invalid input")
	ErrUpstream   = errors.New("upstream call failed")
	ErrStorage    = errors.New("storage operation failed")
)

var (
	ErrEmptyQuery       = fmt.Errorf("%w: query is required", ErrValidation)
	ErrMissingFile      = fmt.Errorf("%w: no file provided", ErrValidation)
	ErrUnsupportedType  = fmt.Errorf("%w: unsupported file type", ErrValidation)
	ErrFileTooLarge     = fmt.Errorf("%w: file too large", ErrValidation)
	ErrDocumentNotFound = fmt.Errorf("%w: document not found", ErrValidation)
)

func upstreamError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
