package row

import (
	"fmt"
	"strings"
	"time"
)

// TypeID identifies a field type. The numeric values feed the schema hash
// and must not be reordered.
type TypeID uint8

const (
	TypeBool TypeID = iota + 1
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDate      // int32 days since 1970-01-01
	TypeTimestamp // int64 microseconds since the epoch, UTC
	TypeDecimal   // 128-bit unscaled value, scale fixed by the type
	TypeString    // UTF-8
	TypeBinary
	TypeList
	TypeMap
	TypeStruct
)

var typeNames = [...]string{
	TypeBool:      "bool",
	TypeInt8:      "int8",
	TypeInt16:     "int16",
	TypeInt32:     "int32",
	TypeInt64:     "int64",
	TypeFloat32:   "float32",
	TypeFloat64:   "float64",
	TypeDate:      "date",
	TypeTimestamp: "timestamp",
	TypeDecimal:   "decimal",
	TypeString:    "string",
	TypeBinary:    "binary",
	TypeList:      "list",
	TypeMap:       "map",
	TypeStruct:    "struct",
}

func (t TypeID) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// TypeIDOf resolves a type name as printed by TypeID.String.
func TypeIDOf(name string) (TypeID, bool) {
	for id, n := range typeNames {
		if n != "" && n == name {
			return TypeID(id), true
		}
	}
	return 0, false
}

// DataType describes the shape of a field. Nested types carry their
// children as fields so element/value nullability is explicit.
type DataType struct {
	ID TypeID

	Precision int32 // decimal
	Scale     int32 // decimal

	Elem   *Field  // list element
	Key    *Field  // map key, never nullable
	Value  *Field  // map value
	Fields []Field // struct children
}

type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

func NewField(name string, t DataType, nullable bool) Field {
	return Field{Name: name, Type: t, Nullable: nullable}
}

var (
	BoolType      = DataType{ID: TypeBool}
	Int8Type      = DataType{ID: TypeInt8}
	Int16Type     = DataType{ID: TypeInt16}
	Int32Type     = DataType{ID: TypeInt32}
	Int64Type     = DataType{ID: TypeInt64}
	Float32Type   = DataType{ID: TypeFloat32}
	Float64Type   = DataType{ID: TypeFloat64}
	DateType      = DataType{ID: TypeDate}
	TimestampType = DataType{ID: TypeTimestamp}
	StringType    = DataType{ID: TypeString}
	BinaryType    = DataType{ID: TypeBinary}
)

func DecimalOf(precision, scale int32) DataType {
	return DataType{ID: TypeDecimal, Precision: precision, Scale: scale}
}

// ListOf returns a list type with nullable elements.
func ListOf(elem DataType) DataType {
	return ListOfField(Field{Name: "item", Type: elem, Nullable: true})
}

func ListOfField(elem Field) DataType {
	return DataType{ID: TypeList, Elem: &elem}
}

// MapOf returns a map type with nullable values.
func MapOf(key, value DataType) DataType {
	return MapOfFields(Field{Name: "key", Type: key}, Field{Name: "value", Type: value, Nullable: true})
}

func MapOfFields(key, value Field) DataType {
	key.Nullable = false
	return DataType{ID: TypeMap, Key: &key, Value: &value}
}

func StructOf(fields ...Field) DataType {
	return DataType{ID: TypeStruct, Fields: fields}
}

// Width is the inline byte width of a fixed-width type, -1 otherwise.
func (t DataType) Width() int {
	switch t.ID {
	case TypeBool, TypeInt8:
		return 1
	case TypeInt16:
		return 2
	case TypeInt32, TypeFloat32, TypeDate:
		return 4
	case TypeInt64, TypeFloat64, TypeTimestamp:
		return 8
	}
	return -1
}

func (t DataType) FixedWidth() bool { return t.Width() > 0 }

func (t DataType) String() string {
	switch t.ID {
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", t.Precision, t.Scale)
	case TypeList:
		return "list<" + t.Elem.Type.String() + ">"
	case TypeMap:
		return "map<" + t.Key.Type.String() + ", " + t.Value.Type.String() + ">"
	case TypeStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "struct<" + strings.Join(parts, ", ") + ">"
	}
	return t.ID.String()
}

func (f Field) String() string {
	if f.Nullable {
		return f.Name + ": " + f.Type.String()
	}
	return f.Name + ": " + f.Type.String() + " not null"
}

// Date is a calendar day stored as days since 1970-01-01.
type Date struct {
	Days int32
}

const secondsPerDay = 24 * 60 * 60

func DateOf(t time.Time) Date {
	sec := t.Unix()
	days := sec / secondsPerDay
	if sec%secondsPerDay < 0 {
		days--
	}
	return Date{Days: int32(days)}
}

func (d Date) Time() time.Time {
	return time.Unix(int64(d.Days)*secondsPerDay, 0).UTC()
}

func (d Date) String() string { return d.Time().Format(time.DateOnly) }

// timestamps are stored in microseconds
func timeToMicros(t time.Time) int64  { return t.UnixMicro() }
func microsToTime(us int64) time.Time { return time.UnixMicro(us).UTC() }
