package row

import (
	"math"
	"strings"
)

// Schema is the ordered field list of a row. A field's index is its ordinal.
type Schema struct {
	Fields []Field
}

func NewSchema(fields ...Field) Schema { return Schema{Fields: fields} }

// SchemaOf returns the schema of a struct type.
func SchemaOf(t DataType) Schema { return Schema{Fields: t.Fields} }

func (s Schema) NumFields() int { return len(s.Fields) }

func (s Schema) Type() DataType { return StructOf(s.Fields...) }

// FieldIndex returns the ordinal of name, or -1.
func (s Schema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.String()
	}
	return "schema<" + strings.Join(parts, ", ") + ">"
}

// Hash fingerprints field types and nesting, not names. Encoders may write
// it ahead of a row so decoders can reject data written for another schema.
func (s Schema) Hash() int64 {
	h := int64(17)
	for _, f := range s.Fields {
		h = fieldHash(h, f)
	}
	return h
}

func fieldHash(h int64, f Field) int64 {
	id := int64(f.Type.ID)
	for {
		if next, ok := mulAdd31(h, id); ok {
			h = next
			break
		}
		h >>= 2
	}
	switch f.Type.ID {
	case TypeList:
		h = fieldHash(h, *f.Type.Elem)
	case TypeMap:
		h = fieldHash(h, *f.Type.Key)
		h = fieldHash(h, *f.Type.Value)
	case TypeStruct:
		for _, c := range f.Type.Fields {
			h = fieldHash(h, c)
		}
	}
	return h
}

// mulAdd31 computes h*31+id, reporting false on int64 overflow.
func mulAdd31(h, id int64) (int64, bool) {
	if h > math.MaxInt64/31 || h < math.MinInt64/31 {
		return 0, false
	}
	m := h * 31
	if m > math.MaxInt64-id {
		return 0, false
	}
	return m + id, true
}
