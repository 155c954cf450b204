// Package apperr classifies errors so the HTTP layer can pick a status code
// without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type invalidError struct {
	msg string
}

func (e *invalidError) Error() string { return e.msg }

// Invalid marks an error as caused by bad caller input (HTTP 400).
func Invalid(msg string) error {
	return &invalidError{msg: msg}
}

// Invalidf is Invalid with formatting.
func Invalidf(format string, args ...any) error {
	return &invalidError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err was produced by Invalid or Invalidf.
func IsInvalid(err error) bool {
	var ie *invalidError
	return errors.As(err, &ie)
}
