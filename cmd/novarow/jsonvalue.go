package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tuannm99/novarow/internal/row"
)

// valuesFromJSON reads one JSON document holding a row, either an object
// keyed by field name or an array in field order.
func valuesFromJSON(s row.Schema, doc []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse json: trailing data after document")
	}
	return fieldsFromJSON(s.Fields, v)
}

func fieldsFromJSON(fields []row.Field, v any) ([]any, error) {
	out := make([]any, len(fields))
	switch x := v.(type) {
	case []any:
		if len(x) != len(fields) {
			return nil, fmt.Errorf("%w: %d fields, %d values", row.ErrSchemaMismatch, len(fields), len(x))
		}
		for i, f := range fields {
			val, err := fromJSON(f.Type, x[i])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[i] = val
		}
	case map[string]any:
		known := make(map[string]bool, len(fields))
		for i, f := range fields {
			known[f.Name] = true
			val, err := fromJSON(f.Type, x[f.Name])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[i] = val
		}
		for k := range x {
			if !known[k] {
				return nil, fmt.Errorf("%w: unknown field %q", row.ErrSchemaMismatch, k)
			}
		}
	default:
		return nil, fmt.Errorf("%w: want an object or array, got %T", row.ErrSchemaMismatch, v)
	}
	return out, nil
}

// fromJSON adapts a value decoded with UseNumber to t. Binary values are
// base64 and map keys are parsed by key type; everything else is left to
// row.EncodeValues.
func fromJSON(t row.DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.ID {
	case row.TypeBinary:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: binary wants base64, got %T", row.ErrSchemaMismatch, v)
		}
		return base64.StdEncoding.DecodeString(s)
	case row.TypeList:
		items, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			x, err := fromJSON(t.Elem.Type, it)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = x
		}
		return out, nil
	case row.TypeMap:
		m, ok := v.(map[string]any)
		if !ok {
			return v, nil
		}
		out := make(map[any]any, len(m))
		for k, x := range m {
			key, err := mapKey(t.Key.Type, k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			val, err := fromJSON(t.Value.Type, x)
			if err != nil {
				return nil, fmt.Errorf("value of %q: %w", k, err)
			}
			out[key] = val
		}
		return out, nil
	case row.TypeStruct:
		return fieldsFromJSON(t.Fields, v)
	}
	return v, nil
}

func mapKey(t row.DataType, k string) (any, error) {
	switch t.ID {
	case row.TypeBool:
		b, err := strconv.ParseBool(k)
		if err != nil {
			return nil, err
		}
		return b, nil
	case row.TypeInt8, row.TypeInt16, row.TypeInt32, row.TypeInt64,
		row.TypeFloat32, row.TypeFloat64, row.TypeDecimal:
		return json.Number(k), nil
	case row.TypeBinary:
		return []byte(k), nil
	case row.TypeList, row.TypeMap, row.TypeStruct:
		return nil, fmt.Errorf("%w: %s map keys", row.ErrUnsupportedType, t)
	}
	return k, nil
}

// toJSON converts a decoded value of type t into something encoding/json
// prints faithfully. Structs keep their field order.
func toJSON(t row.DataType, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case row.Date:
		return x.String()
	case row.Decimal:
		return json.Number(x.String())
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			out[i] = toJSON(t.Elem.Type, it)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, it := range x {
			out[fmt.Sprint(toJSON(t.Key.Type, k))] = toJSON(t.Value.Type, it)
		}
		return out
	case map[string]any:
		o := object{fields: t.Fields, values: make([]any, len(t.Fields))}
		for i, f := range t.Fields {
			o.values[i] = toJSON(f.Type, x[f.Name])
		}
		return o
	}
	return v
}

func rowToJSON(s row.Schema, values []any) object {
	o := object{fields: s.Fields, values: make([]any, len(values))}
	for i, f := range s.Fields {
		o.values[i] = toJSON(f.Type, values[i])
	}
	return o
}

var _ json.Marshaler = object{}

// object is a JSON object whose keys follow the schema.
type object struct {
	fields []row.Field
	values []any
}

func (o object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
