package row

import "errors"

var (
	ErrSchemaMismatch  = errors.New("row: schema/values mismatch")
	ErrNotNullable     = errors.New("row: null value for non-nullable field")
	ErrUnsupportedType = errors.New("row: unsupported type")
	// ErrBounds reports an offset, size or count that does not fit the
	// buffer it was read from: the data is corrupt or truncated.
	ErrBounds = errors.New("row: corrupt or truncated data")
)
