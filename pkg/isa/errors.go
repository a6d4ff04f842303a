package isa

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Construction errors are raised while assembling the tree, before any
// output is produced.
const (
	ErrCodeDuplicateIdentifier = "ISA_DUPLICATE_IDENTIFIER"
	ErrCodeDuplicateFileName   = "ISA_DUPLICATE_FILENAME"
	ErrCodeRequiredField       = "ISA_REQUIRED_FIELD"
	ErrCodeValueMismatch       = "ISA_VALUE_MISMATCH"
	ErrCodeDuplicateAttribute  = "ISA_DUPLICATE_ATTRIBUTE"
	ErrCodeHintCollision       = "ISA_HINT_COLLISION"
)

// Destination errors are raised when an output sink cannot be prepared or
// written.
const (
	ErrCodeDestinationExists = "ISA_DESTINATION_EXISTS"
	ErrCodeDestinationLocked = "ISA_DESTINATION_LOCKED"
	ErrCodeDestinationIO     = "ISA_DESTINATION_IO"
	ErrCodeDestinationCreate = "ISA_DESTINATION_CREATE"
)

// Coordination errors are raised by workers waiting on each other.
const (
	ErrCodeExchangeTimeout   = "ISA_EXCHANGE_TIMEOUT"
	ErrCodeExchangeUpstream  = "ISA_EXCHANGE_UPSTREAM"
	ErrCodeExchangeDuplicate = "ISA_EXCHANGE_DUPLICATE"
)

// CodeOf returns the error code carried by err or anything it wraps, or ""
// when none is present.
func CodeOf(err error) string {
	var coder errors.ErrorCoder
	if stderrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func required(field string) error {
	return errors.New(ErrCodeRequiredField, "required field is empty").
		WithContext("field", field)
}
