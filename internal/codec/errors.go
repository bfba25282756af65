package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/row"
)

var (
	ErrSpecialization  = errors.New("codec: cannot specialize type")
	ErrVersionMismatch = errors.New("codec: schema hash mismatch")

	// ErrBounds reports corrupt or truncated input.
	ErrBounds = row.ErrBounds
	// ErrAllocation reports a value too large for one buffer.
	ErrAllocation = memory.ErrAllocation
)

// SpecializationError is returned, and cached, when a type cannot be
// compiled into a codec.
type SpecializationError struct {
	Type   reflect.Type
	Field  string // dotted path to the offending field, empty for the type itself
	Reason string
}

func (e *SpecializationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("codec: cannot specialize %s (field %s): %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("codec: cannot specialize %s: %s", e.Type, e.Reason)
}

func (e *SpecializationError) Unwrap() error { return ErrSpecialization }

// VersionMismatchError is returned when the schema hash in front of the
// data differs from the decoder's.
type VersionMismatchError struct {
	Want, Got int64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("codec: schema hash mismatch: want %#x, got %#x", e.Want, e.Got)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// within prefixes the field path of a nested specialization failure.
func within(err error, t reflect.Type, field string) error {
	var se *SpecializationError
	if errors.As(err, &se) {
		path := field
		if se.Field != "" {
			path = field + "." + se.Field
		}
		return &SpecializationError{Type: t, Field: path, Reason: se.Reason}
	}
	return err
}
