package codec

import (
	"encoding"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/row"
)

// reader is the read side shared by row.Row and row.Array.
type reader interface {
	IsNullAt(i int) bool
	GetBool(i int) bool
	GetInt8(i int) int8
	GetInt16(i int) int16
	GetInt32(i int) int32
	GetInt64(i int) int64
	GetFloat32(i int) float32
	GetFloat64(i int) float64
	GetDate(i int) row.Date
	GetTimestamp(i int) time.Time
	GetDecimal(i int) (row.Decimal, error)
	GetString(i int) (string, error)
	GetBinary(i int) ([]byte, error)
	GetBlob(i int) ([]byte, error)
	GetStruct(i int) (*row.Row, error)
	GetArray(i int) (*row.Array, error)
	GetMap(i int) (*row.Map, error)
}

var (
	_ reader = (*row.Row)(nil)
	_ reader = (*row.Array)(nil)
)

type (
	writeFunc func(w row.Writer, i int, v reflect.Value) error
	readFunc  func(r reader, i int, v reflect.Value) error
)

// valueCodec stores one Go type in a row slot or array element.
type valueCodec struct {
	typ      reflect.Type
	dt       row.DataType
	nullable bool
	write    writeFunc
	read     readFunc

	slot *slotOps    // fixed-width primitives, for grouped slot access
	plan *structPlan // struct rows
	list *listPlan
	mapp *mapPlan
}

// slotOps put and get a primitive directly in an 8-byte slot.
type slotOps struct {
	put func(dst []byte, v reflect.Value)
	get func(src []byte, v reflect.Value)
}

var (
	bigIntType  = reflect.TypeFor[big.Int]()
	decimalType = reflect.TypeFor[row.Decimal]()
	timeType    = reflect.TypeFor[time.Time]()
	dateType    = reflect.TypeFor[row.Date]()
	byteType    = reflect.TypeFor[byte]()

	textMarshaler   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// valueFor picks the codec for t. The first matching rule wins:
// pointer unwrap (nullable), primitives, decimals, date and time, strings,
// enums, byte slices, lists, maps, structs, then the opaque fallback.
// Requires r.mu.
func (r *Registry) valueFor(t reflect.Type) (*valueCodec, error) {
	if t.Kind() == reflect.Pointer {
		if e := t.Elem(); e.Kind() == reflect.Struct && !isLeafStruct(e) && r.isCyclic(e) {
			return r.opaqueFor(t, "recursive type")
		}
		elem, err := r.valueFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return nullableOf(t, elem), nil
	}

	enum := isEnum(t)
	if !enum {
		if vc := primitiveFor(t); vc != nil {
			return vc, nil
		}
	}
	switch t {
	case bigIntType:
		return bigIntCodec(), nil
	case decimalType:
		return decimalCodec(), nil
	case timeType:
		return timestampCodec(), nil
	case dateType:
		return dateCodec(), nil
	}
	if t.Kind() == reflect.String && !enum {
		return stringCodec(t), nil
	}
	if enum {
		return enumCodec(t), nil
	}

	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !isEnum(t.Elem()) {
			return binaryCodec(t), nil
		}
		return r.listFor(t)
	case reflect.Array:
		if t.Elem() == byteType {
			return byteArrayCodec(t), nil
		}
		return r.listFor(t)
	case reflect.Map:
		return r.mapFor(t)
	case reflect.Struct:
		return r.structFor(t)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil, &SpecializationError{Type: t, Reason: t.Kind().String() + " values cannot be serialized"}
	}
	return r.opaqueFor(t, t.Kind().String()+" is not modeled by the row format")
}

func (r *Registry) structFor(t reflect.Type) (*valueCodec, error) {
	if r.isCyclic(t) {
		return r.opaqueFor(t, "recursive type")
	}
	if !hasExportedFields(t) && t.NumField() > 0 {
		return r.opaqueFor(t, "struct has no exported fields")
	}
	c, err := r.lookup(t)
	if err != nil {
		return nil, err
	}
	return c.value, nil
}

// isLeafStruct reports struct types with a dedicated row type.
func isLeafStruct(t reflect.Type) bool {
	return t == bigIntType || t == decimalType || t == timeType || t == dateType
}

// isEnum matches named integer or string types that round-trip through
// their text form.
func isEnum(t reflect.Type) bool {
	if t.Name() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.String:
	default:
		return false
	}
	return t.Implements(textMarshaler) && reflect.PointerTo(t).Implements(textUnmarshaler)
}

func canBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// ---- optional wrapper ----

func nullableOf(t reflect.Type, elem *valueCodec) *valueCodec {
	vc := *elem
	vc.typ = t
	vc.nullable = true
	vc.slot = nil
	vc.write = func(w row.Writer, i int, v reflect.Value) error {
		if v.IsNil() {
			w.SetNullAt(i)
			return nil
		}
		return elem.write(w, i, v.Elem())
	}
	vc.read = func(r reader, i int, v reflect.Value) error {
		if r.IsNullAt(i) {
			v.SetZero()
			return nil
		}
		p := reflect.New(t.Elem())
		if err := elem.read(r, i, p.Elem()); err != nil {
			return err
		}
		v.Set(p)
		return nil
	}
	return &vc
}

// ---- primitives ----

func primitiveFor(t reflect.Type) *valueCodec {
	switch t.Kind() {
	case reflect.Bool:
		return &valueCodec{
			typ: t, dt: row.BoolType,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteBool(i, v.Bool()); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetBool(r.GetBool(i)); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) {
					if v.Bool() {
						dst[0] = 1
					}
				},
				get: func(src []byte, v reflect.Value) { v.SetBool(src[0] != 0) },
			},
		}
	case reflect.Int8:
		return &valueCodec{
			typ: t, dt: row.Int8Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt8(i, int8(v.Int())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetInt(int64(r.GetInt8(i))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { dst[0] = byte(int8(v.Int())) },
				get: func(src []byte, v reflect.Value) { v.SetInt(int64(int8(src[0]))) },
			},
		}
	case reflect.Int16:
		return &valueCodec{
			typ: t, dt: row.Int16Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt16(i, int16(v.Int())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetInt(int64(r.GetInt16(i))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutI16(dst, int16(v.Int())) },
				get: func(src []byte, v reflect.Value) { v.SetInt(int64(bx.I16(src))) },
			},
		}
	case reflect.Int32:
		return &valueCodec{
			typ: t, dt: row.Int32Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt32(i, int32(v.Int())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetInt(int64(r.GetInt32(i))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutI32(dst, int32(v.Int())) },
				get: func(src []byte, v reflect.Value) { v.SetInt(int64(bx.I32(src))) },
			},
		}
	case reflect.Int, reflect.Int64:
		return &valueCodec{
			typ: t, dt: row.Int64Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt64(i, v.Int()); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetInt(r.GetInt64(i)); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutI64(dst, v.Int()) },
				get: func(src []byte, v reflect.Value) { v.SetInt(bx.I64(src)) },
			},
		}

	// unsigned types widen to the next signed type; 64-bit ones keep their bits
	case reflect.Uint8:
		return &valueCodec{
			typ: t, dt: row.Int16Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt16(i, int16(v.Uint())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetUint(uint64(uint16(r.GetInt16(i)))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutU16(dst, uint16(v.Uint())) },
				get: func(src []byte, v reflect.Value) { v.SetUint(uint64(bx.U16(src))) },
			},
		}
	case reflect.Uint16:
		return &valueCodec{
			typ: t, dt: row.Int32Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt32(i, int32(v.Uint())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetUint(uint64(uint32(r.GetInt32(i)))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutU32(dst, uint32(v.Uint())) },
				get: func(src []byte, v reflect.Value) { v.SetUint(uint64(bx.U32(src))) },
			},
		}
	case reflect.Uint32, reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return &valueCodec{
			typ: t, dt: row.Int64Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteInt64(i, int64(v.Uint())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetUint(uint64(r.GetInt64(i))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutU64(dst, v.Uint()) },
				get: func(src []byte, v reflect.Value) { v.SetUint(bx.U64(src)) },
			},
		}
	case reflect.Float32:
		return &valueCodec{
			typ: t, dt: row.Float32Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteFloat32(i, float32(v.Float())); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetFloat(float64(r.GetFloat32(i))); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutF32(dst, float32(v.Float())) },
				get: func(src []byte, v reflect.Value) { v.SetFloat(float64(bx.F32(src))) },
			},
		}
	case reflect.Float64:
		return &valueCodec{
			typ: t, dt: row.Float64Type,
			write: func(w row.Writer, i int, v reflect.Value) error { w.WriteFloat64(i, v.Float()); return nil },
			read:  func(r reader, i int, v reflect.Value) error { v.SetFloat(r.GetFloat64(i)); return nil },
			slot: &slotOps{
				put: func(dst []byte, v reflect.Value) { bx.PutF64(dst, v.Float()) },
				get: func(src []byte, v reflect.Value) { v.SetFloat(bx.F64(src)) },
			},
		}
	}
	return nil
}

// ---- decimals, dates, strings ----

// bigIntCodec stores big.Int as an unscaled Decimal(38, 0).
func bigIntCodec() *valueCodec {
	return &valueCodec{
		typ: bigIntType, dt: row.DecimalOf(row.MaxPrecision, 0),
		write: func(w row.Writer, i int, v reflect.Value) error {
			var n *big.Int
			if v.CanAddr() {
				n = v.Addr().Interface().(*big.Int)
			} else {
				x := v.Interface().(big.Int)
				n = &x
			}
			return w.WriteDecimal(i, row.Decimal{Unscaled: n})
		},
		read: func(r reader, i int, v reflect.Value) error {
			d, err := r.GetDecimal(i)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(d.Unscaled).Elem())
			return nil
		},
	}
}

func decimalCodec() *valueCodec {
	return &valueCodec{
		typ: decimalType, dt: row.DecimalOf(row.MaxPrecision, row.DefaultScale),
		write: func(w row.Writer, i int, v reflect.Value) error {
			return w.WriteDecimal(i, v.Interface().(row.Decimal))
		},
		read: func(r reader, i int, v reflect.Value) error {
			d, err := r.GetDecimal(i)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(d))
			return nil
		},
	}
}

func timestampCodec() *valueCodec {
	return &valueCodec{
		typ: timeType, dt: row.TimestampType,
		write: func(w row.Writer, i int, v reflect.Value) error {
			w.WriteTimestamp(i, v.Interface().(time.Time))
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			v.Set(reflect.ValueOf(r.GetTimestamp(i)))
			return nil
		},
	}
}

func dateCodec() *valueCodec {
	return &valueCodec{
		typ: dateType, dt: row.DateType,
		write: func(w row.Writer, i int, v reflect.Value) error {
			w.WriteDate(i, v.Interface().(row.Date))
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			v.Set(reflect.ValueOf(r.GetDate(i)))
			return nil
		},
	}
}

func stringCodec(t reflect.Type) *valueCodec {
	return &valueCodec{
		typ: t, dt: row.StringType,
		write: func(w row.Writer, i int, v reflect.Value) error {
			w.WriteString(i, v.String())
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			s, err := r.GetString(i)
			if err != nil {
				return err
			}
			v.SetString(s)
			return nil
		},
	}
}

// enumCodec stores an enum by name.
func enumCodec(t reflect.Type) *valueCodec {
	return &valueCodec{
		typ: t, dt: row.StringType,
		write: func(w row.Writer, i int, v reflect.Value) error {
			name, err := v.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return fmt.Errorf("codec: enum %s: %w", t, err)
			}
			w.WriteString(i, string(name))
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			s, err := r.GetString(i)
			if err != nil {
				return err
			}
			p := reflect.New(t)
			if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
				return fmt.Errorf("codec: enum %s: %w", t, err)
			}
			v.Set(p.Elem())
			return nil
		},
	}
}

func binaryCodec(t reflect.Type) *valueCodec {
	return &valueCodec{
		typ: t, dt: row.BinaryType, nullable: true,
		write: func(w row.Writer, i int, v reflect.Value) error {
			if v.IsNil() {
				w.SetNullAt(i)
				return nil
			}
			w.WriteBinary(i, v.Bytes())
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			if r.IsNullAt(i) {
				v.SetZero()
				return nil
			}
			b, err := r.GetBinary(i)
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		},
	}
}

// byteArrayCodec stores [N]byte as Binary of exactly N bytes.
func byteArrayCodec(t reflect.Type) *valueCodec {
	return &valueCodec{
		typ: t, dt: row.BinaryType,
		write: func(w row.Writer, i int, v reflect.Value) error {
			b := make([]byte, t.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			w.WriteBinary(i, b)
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			b, err := r.GetBlob(i)
			if err != nil {
				return err
			}
			if len(b) != t.Len() {
				return fmt.Errorf("%w: %d bytes for %s", ErrBounds, len(b), t)
			}
			reflect.Copy(v, reflect.ValueOf(b))
			return nil
		},
	}
}

// ---- opaque fallback ----

func (r *Registry) opaqueFor(t reflect.Type, why string) (*valueCodec, error) {
	op := r.opaque
	if op == nil {
		return nil, &SpecializationError{Type: t, Reason: why + " and no opaque serializer is configured"}
	}
	nullable := canBeNil(t)
	return &valueCodec{
		typ: t, dt: row.BinaryType, nullable: nullable,
		write: func(w row.Writer, i int, v reflect.Value) error {
			if nullable && v.IsNil() {
				w.SetNullAt(i)
				return nil
			}
			if s, ok := op.(StreamingOpaque); ok {
				err := w.WriteBlob(i, func(b *memory.Buffer) error { return s.MarshalTo(b, v.Interface()) })
				if err != nil {
					return fmt.Errorf("codec: %s marshal %s: %w", op.Name(), t, err)
				}
				return nil
			}
			data, err := op.Marshal(v.Interface())
			if err != nil {
				return fmt.Errorf("codec: %s marshal %s: %w", op.Name(), t, err)
			}
			w.WriteBinary(i, data)
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			if nullable && r.IsNullAt(i) {
				v.SetZero()
				return nil
			}
			blob, err := r.GetBlob(i)
			if err != nil {
				return err
			}
			p := reflect.New(t)
			if err := op.Unmarshal(blob, p.Interface()); err != nil {
				return fmt.Errorf("codec: %s unmarshal %s: %w", op.Name(), t, err)
			}
			v.Set(p.Elem())
			return nil
		},
	}, nil
}
