package model

import (
	"errors"
	"fmt"
)

// Code classifies pipeline errors. The values match the wire codes
// returned by the RPC surface.
type Code string

const (
	CodePermissionDenied  Code = "permission-denied"
	CodeInvalidArgument   Code = "invalid-argument"
	CodeNotFound          Code = "not-found"
	CodeInsufficientStock Code = "insufficient-stock"
	CodeInternal          Code = "internal"
)

type codedError struct {
	code Code
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *codedError) Unwrap() error { return e.err }

// E builds a coded error.
func E(code Code, format string, args ...any) error {
	return &codedError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, msg: msg, err: err}
}

// CodeOf extracts the code from err, defaulting to internal for errors
// produced outside the pipeline.
func CodeOf(err error) Code {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeInternal
}
