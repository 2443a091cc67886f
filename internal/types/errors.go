package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrElementNotFound  = errors.New("element not found")
	ErrMissingAttribute = errors.New("attribute missing")
	ErrMalformedNumber  = errors.New("malformed number")
	ErrNoControl        = errors.New("more control not present")
	ErrExpandTimeout    = errors.New("page expansion timed out")
	ErrMaxClicks        = errors.New("max more-clicks exceeded")
	ErrEmptyCatalog     = errors.New("source catalog is empty")
	ErrNoSnapshot       = errors.New("snapshot not found")
)

// CardError reports why a single product card could not be extracted.
type CardError struct {
	Index int
	Field string
	Err   error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }

// ExpandError wraps failures of the "more" click loop.
type ExpandError struct {
	URL    string
	Clicks int
	Err    error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("expand %s after %d clicks: %v", e.URL, e.Clicks, e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

// NavigationError wraps errors that occur while loading a page.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrElementNotFound):
		return "element_not_found"
	case errors.Is(err, ErrMissingAttribute):
		return "missing_attribute"
	case errors.Is(err, ErrMalformedNumber):
		return "malformed_number"
	case errors.Is(err, ErrExpandTimeout):
		return "expand_timeout"
	case errors.Is(err, ErrMaxClicks):
		return "max_clicks"
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		return "navigation"
	}
	var st *StorageError
	if errors.As(err, &st) {
		return "storage"
	}
	return "other"
}
