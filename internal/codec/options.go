package codec

// Option configures a Registry. Options are fixed for the registry's
// lifetime since they change the compiled plans and the bytes on the wire.
type Option func(*Registry)

// WithOpaque sets the fallback serializer. A nil serializer disables the
// fallback, turning unmodeled types into specialization errors.
func WithOpaque(o Opaque) Option {
	return func(r *Registry) { r.opaque = o }
}

// WithCompressedInts stores int32/int64 row fields as packed zigzag
// varints after the fixed region. Arrays are not affected.
func WithCompressedInts() Option {
	return func(r *Registry) { r.compressed = true }
}

// WithSchemaHash prefixes every encoded value with its 8-byte schema hash
// and verifies it on decode.
func WithSchemaHash() Option {
	return func(r *Registry) { r.schemaHash = true }
}
