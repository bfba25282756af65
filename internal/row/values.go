package row

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/tuannm99/novarow/internal/memory"
)

// ---- EncodeValues(schema, values) -> []byte ----
// Schema-driven encoding of loosely typed values, as produced by JSON or
// YAML decoders:
//   - integers may be any Go integer, an integral float64 or a json.Number;
//   - structs are []any in field order or map[string]any by field name;
//   - lists are []any; maps are map[string]any or map[any]any;
//   - dates and timestamps accept time.Time or a string (2006-01-02 / RFC 3339);
//   - decimals accept Decimal, *big.Int, an integer or a decimal string.
func EncodeValues(s Schema, values []any) ([]byte, error) {
	return EncodeValuesWithLayout(NewLayout(s, false), values)
}

// EncodeValuesWithLayout is EncodeValues for a layout that may pack ints.
func EncodeValuesWithLayout(l *Layout, values []any) ([]byte, error) {
	w := NewRowWriterWithLayout(l, nil)
	w.Reset()
	if err := writeFields(w, l.schema.Fields, values); err != nil {
		return nil, err
	}
	w.Finish()
	out := make([]byte, w.Size())
	copy(out, w.Buffer().Bytes())
	return out, nil
}

// ---- DecodeValues(schema, buf) -> []any ----
func DecodeValues(s Schema, buf []byte) ([]any, error) {
	return DecodeValuesWithLayout(NewLayout(s, false), buf)
}

func DecodeValuesWithLayout(l *Layout, buf []byte) ([]any, error) {
	r := NewRowWithLayout(l)
	if err := r.PointTo(memory.Wrap(buf), 0, len(buf)); err != nil {
		return nil, err
	}
	return r.Values()
}

// writeFields writes packed ints first; they must be pending before the
// first variable-length write.
func writeFields(w *RowWriter, fields []Field, values []any) error {
	if len(values) != len(fields) {
		return fmt.Errorf("%w: %d fields, %d values", ErrSchemaMismatch, len(fields), len(values))
	}
	l := w.layout
	for _, packed := range []bool{true, false} {
		if packed && l.numPacked == 0 {
			continue
		}
		for i, f := range fields {
			if l.IsPacked(i) != packed {
				continue
			}
			if err := writeValue(w, i, f, values[i], l.compressed); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

func writeValue(w Writer, i int, f Field, v any, compressed bool) error {
	// NULL?
	if v == nil {
		if !f.Nullable {
			return ErrNotNullable
		}
		w.SetNullAt(i)
		return nil
	}

	switch f.Type.ID {
	case TypeBool:
		x, ok := v.(bool)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteBool(i, x)

	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		x, ok := asInt64(v)
		if !ok || !fitsInt(f.Type.ID, x) {
			return mismatch(f, v)
		}
		switch f.Type.ID {
		case TypeInt8:
			w.WriteInt8(i, int8(x))
		case TypeInt16:
			w.WriteInt16(i, int16(x))
		case TypeInt32:
			w.WriteInt32(i, int32(x))
		default:
			w.WriteInt64(i, x)
		}

	case TypeFloat32:
		x, ok := asFloat64(v)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteFloat32(i, float32(x))

	case TypeFloat64:
		x, ok := asFloat64(v)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteFloat64(i, x)

	case TypeDate:
		d, ok := asDate(v)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteDate(i, d)

	case TypeTimestamp:
		t, ok := asTime(v)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteTimestamp(i, t)

	case TypeDecimal:
		d, err := asDecimal(v, f.Type.Scale)
		if err != nil {
			return err
		}
		return w.WriteDecimal(i, d)

	case TypeString:
		// expect string -> UTF-8 bytes
		str, ok := v.(string)
		if !ok {
			return mismatch(f, v)
		}
		w.WriteString(i, str)

	case TypeBinary:
		switch x := v.(type) {
		case []byte:
			w.WriteBinary(i, x)
		case string:
			w.WriteBinary(i, []byte(x))
		default:
			return mismatch(f, v)
		}

	case TypeList:
		items, ok := v.([]any)
		if !ok {
			return mismatch(f, v)
		}
		aw := NewArrayWriter(*f.Type.Elem, w)
		aw.Reset(len(items))
		for j, it := range items {
			if err := writeValue(aw, j, *f.Type.Elem, it, compressed); err != nil {
				return fmt.Errorf("element %d: %w", j, err)
			}
		}
		w.SetOffsetAndSize(i, aw.StartIndex(), aw.Size())

	case TypeMap:
		keys, vals, ok := mapEntries(v)
		if !ok {
			return mismatch(f, v)
		}
		mw := NewMapWriter(f.Type, w)
		mw.Reset()
		kw := mw.BeginKeys(len(keys))
		for j, k := range keys {
			if err := writeValue(kw, j, *f.Type.Key, k, compressed); err != nil {
				return fmt.Errorf("key %v: %w", k, err)
			}
		}
		vw := mw.BeginValues(len(vals))
		for j, x := range vals {
			if err := writeValue(vw, j, *f.Type.Value, x, compressed); err != nil {
				return fmt.Errorf("value of %v: %w", keys[j], err)
			}
		}
		w.SetOffsetAndSize(i, mw.StartIndex(), mw.Size())

	case TypeStruct:
		vals, ok := structValues(f.Type, v)
		if !ok {
			return mismatch(f, v)
		}
		cw := NewRowWriterWithLayout(NewLayout(SchemaOf(f.Type), compressed), w)
		cw.Reset()
		if err := writeFields(cw, f.Type.Fields, vals); err != nil {
			return err
		}
		cw.Finish()
		w.SetOffsetAndSize(i, cw.StartIndex(), cw.Size())

	default:
		return ErrUnsupportedType
	}
	return nil
}

func mismatch(f Field, v any) error {
	return fmt.Errorf("%w: %T for %s", ErrSchemaMismatch, v, f.Type)
}

// mapEntries flattens a map; keys are sorted so equal maps encode equally.
func mapEntries(v any) ([]any, []any, bool) {
	var keys, vals []any
	switch m := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			keys = append(keys, k)
			vals = append(vals, m[k])
		}
	case map[any]any:
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool { return fmt.Sprint(keys[a]) < fmt.Sprint(keys[b]) })
		for _, k := range keys {
			vals = append(vals, m[k])
		}
	default:
		return nil, nil, false
	}
	return keys, vals, true
}

func structValues(t DataType, v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case map[string]any:
		out := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			out[i] = x[f.Name]
		}
		return out, true
	}
	return nil, false
}

// ---- small helpers to accept multiple numeric types on encode ----
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), true
		}
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

func fitsInt(id TypeID, x int64) bool {
	switch id {
	case TypeInt8:
		return x >= math.MinInt8 && x <= math.MaxInt8
	case TypeInt16:
		return x >= math.MinInt16 && x <= math.MaxInt16
	case TypeInt32:
		return x >= math.MinInt32 && x <= math.MaxInt32
	}
	return true
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func asDate(v any) (Date, bool) {
	switch x := v.(type) {
	case Date:
		return x, true
	case time.Time:
		return DateOf(x), true
	case string:
		t, err := time.Parse(time.DateOnly, x)
		if err != nil {
			return Date{}, false
		}
		return DateOf(t), true
	}
	return Date{}, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		return t, err == nil
	}
	return time.Time{}, false
}

func asDecimal(v any, scale int32) (Decimal, error) {
	switch x := v.(type) {
	case Decimal:
		return x, nil
	case *big.Int:
		return Decimal{Unscaled: x}, nil
	case string:
		return ParseDecimal(x, scale)
	case json.Number:
		return ParseDecimal(x.String(), scale)
	}
	if n, ok := asInt64(v); ok {
		return NewDecimal(n, 0), nil
	}
	return Decimal{}, fmt.Errorf("%w: %T for decimal", ErrSchemaMismatch, v)
}
