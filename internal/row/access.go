package row

import (
	"fmt"
	"time"
)

// accessor is the read side common to Row and Array.
type accessor interface {
	IsNullAt(i int) bool
	GetBool(i int) bool
	GetInt8(i int) int8
	GetInt16(i int) int16
	GetInt32(i int) int32
	GetInt64(i int) int64
	GetFloat32(i int) float32
	GetFloat64(i int) float64
	GetDate(i int) Date
	GetTimestamp(i int) time.Time
	GetDecimal(i int) (Decimal, error)
	GetString(i int) (string, error)
	GetBinary(i int) ([]byte, error)
	GetStruct(i int) (*Row, error)
	GetArray(i int) (*Array, error)
	GetMap(i int) (*Map, error)
}

var (
	_ accessor = (*Row)(nil)
	_ accessor = (*Array)(nil)
	_ Writer   = (*RowWriter)(nil)
	_ Writer   = (*ArrayWriter)(nil)
	_ Parent   = (*MapWriter)(nil)
)

func valueAt(a accessor, t DataType, i int) (any, error) {
	if a.IsNullAt(i) {
		return nil, nil
	}
	switch t.ID {
	case TypeBool:
		return a.GetBool(i), nil
	case TypeInt8:
		return a.GetInt8(i), nil
	case TypeInt16:
		return a.GetInt16(i), nil
	case TypeInt32:
		return a.GetInt32(i), nil
	case TypeInt64:
		return a.GetInt64(i), nil
	case TypeFloat32:
		return a.GetFloat32(i), nil
	case TypeFloat64:
		return a.GetFloat64(i), nil
	case TypeDate:
		return a.GetDate(i), nil
	case TypeTimestamp:
		return a.GetTimestamp(i), nil
	case TypeDecimal:
		return a.GetDecimal(i)
	case TypeString:
		return a.GetString(i)
	case TypeBinary:
		return a.GetBinary(i)
	case TypeStruct:
		r, err := a.GetStruct(i)
		if err != nil {
			return nil, err
		}
		return r.toMap()
	case TypeList:
		arr, err := a.GetArray(i)
		if err != nil {
			return nil, err
		}
		return arr.Values()
	case TypeMap:
		m, err := a.GetMap(i)
		if err != nil {
			return nil, err
		}
		return m.ToGoMap()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}
