package main

import (
	"fmt"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/catalog"
	"github.com/tuannm99/novarow/internal/codec"
	"github.com/tuannm99/novarow/internal/row"
)

// session binds a catalog to the codec settings of a registry.
type session struct {
	catalog *catalog.Catalog
	reg     *codec.Registry
}

func newSession(cat *catalog.Catalog, reg *codec.Registry) *session {
	return &session{catalog: cat, reg: reg}
}

func (s *session) layout(name string) (*row.Layout, error) {
	schema, err := s.catalog.Schema(name)
	if err != nil {
		return nil, err
	}
	return row.NewLayout(schema, s.reg.Compressed()), nil
}

func (s *session) hash(l *row.Layout) int64 {
	return codec.SchemaHash(l.Schema(), l.Compressed())
}

// Encode turns a JSON document into a row of schema name.
func (s *session) Encode(name string, doc []byte) ([]byte, error) {
	l, err := s.layout(name)
	if err != nil {
		return nil, err
	}
	values, err := valuesFromJSON(l.Schema(), doc)
	if err != nil {
		return nil, err
	}
	body, err := row.EncodeValuesWithLayout(l, values)
	if err != nil {
		return nil, err
	}
	if !s.reg.SchemaHashed() {
		return body, nil
	}
	out := make([]byte, 8+len(body))
	bx.PutI64(out, s.hash(l))
	copy(out[8:], body)
	return out, nil
}

// Decode reads a row of schema name and returns its values in field order.
func (s *session) Decode(name string, data []byte) (*row.Layout, []any, error) {
	l, err := s.layout(name)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.unframe(l, data)
	if err != nil {
		return nil, nil, err
	}
	values, err := row.DecodeValuesWithLayout(l, body)
	if err != nil {
		return nil, nil, err
	}
	return l, values, nil
}

func (s *session) unframe(l *row.Layout, data []byte) ([]byte, error) {
	if !s.reg.SchemaHashed() {
		return data, nil
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes, no schema hash", codec.ErrBounds, len(data))
	}
	if got, want := bx.I64(data), s.hash(l); got != want {
		return nil, &codec.VersionMismatchError{Want: want, Got: got}
	}
	return data[8:], nil
}
