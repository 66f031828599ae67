// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when a source cannot be parsed as a
	// known image container. Use errors.Is to test for it.
	ErrInvalidFormat = errors.New("metastream: invalid format")

	// ErrSerialize is returned when writing metadata back to the target
	// stream fails. No partial output is returned alongside it.
	ErrSerialize = errors.New("metastream: serialize failed")

	// ErrUnknownTag is returned when a tag key is not recognized.
	ErrUnknownTag = errors.New("metastream: unknown tag")
)

// InvalidFormatError wraps a parse failure so callers can match it with
// errors.Is(err, ErrInvalidFormat) while keeping the underlying cause.
type InvalidFormatError struct {
	Err error
}

func (e *InvalidFormatError) Error() string {
	return "metastream: invalid format: " + e.Err.Error()
}

func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

func (e *InvalidFormatError) Unwrap() error {
	return e.Err
}

func newInvalidFormatError(err error) error {
	return &InvalidFormatError{Err: err}
}

func newInvalidFormatErrorf(format string, args ...any) error {
	return newInvalidFormatError(fmt.Errorf(format, args...))
}
