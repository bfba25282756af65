package refs

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/tuannm99/novarow/internal/memory"
)

// Reference header written before every trackable value.
const (
	NullFlag int8 = -3
	// RefFlag is followed by the uvarint id of a value written earlier.
	RefFlag int8 = -2
	// NotNullValueFlag marks a value that carries no identity.
	NotNullValueFlag int8 = -1
	// RefValueFlag marks the first occurrence of a tracked value.
	RefValueFlag int8 = 0
)

var (
	ErrUnknownRef = errors.New("refs: reference to unknown id")
	ErrBadFlag    = errors.New("refs: bad reference flag")
	ErrTooMany    = errors.New("refs: too many tracked objects")
)

// Resolver assigns ids to values on write and resolves them on read. One
// Resolver serves one traversal at a time; call Reset between traversals.
type Resolver struct {
	written *IdentityTable
	nextID  int32
	read    []reflect.Value
}

func NewResolver() *Resolver {
	return &Resolver{written: NewIdentityTable(64)}
}

// WriteRefOrNull writes the header for v. It returns true when v is nil or
// was already written, in which case nothing else must follow.
func (r *Resolver) WriteRefOrNull(buf *memory.Buffer, v reflect.Value) (bool, error) {
	if isNil(v) {
		buf.WriteInt8(NullFlag)
		return true, nil
	}
	key, ok := KeyOf(v)
	if !ok {
		buf.WriteInt8(NotNullValueFlag)
		return false, nil
	}
	if prev, found := r.written.PutOrGet(key, r.nextID); found {
		buf.WriteInt8(RefFlag)
		buf.WriteUvarint(uint64(prev))
		return true, nil
	}
	if r.nextID == math.MaxInt32 {
		return false, ErrTooMany
	}
	r.nextID++
	buf.WriteInt8(RefValueFlag)
	return false, nil
}

// ReadRefOrNull reads a header. For RefFlag the referenced value is
// returned as well.
func (r *Resolver) ReadRefOrNull(buf *memory.Buffer) (int8, reflect.Value, error) {
	flag, err := buf.ReadInt8()
	if err != nil {
		return 0, reflect.Value{}, err
	}
	switch flag {
	case RefFlag:
		id, err := buf.ReadUvarint()
		if err != nil {
			return 0, reflect.Value{}, err
		}
		if id >= uint64(len(r.read)) || !r.read[id].IsValid() {
			return 0, reflect.Value{}, fmt.Errorf("%w: %d", ErrUnknownRef, id)
		}
		return flag, r.read[id], nil
	case NullFlag, NotNullValueFlag, RefValueFlag:
		return flag, reflect.Value{}, nil
	default:
		return 0, reflect.Value{}, fmt.Errorf("%w: %d", ErrBadFlag, flag)
	}
}

// Preserve reserves the next read id. Decoders call it after reading
// RefValueFlag and before decoding the value's children, then publish the
// value with SetReadObject so cycles can resolve.
func (r *Resolver) Preserve() int32 {
	r.read = append(r.read, reflect.Value{})
	return int32(len(r.read) - 1)
}

func (r *Resolver) SetReadObject(id int32, v reflect.Value) {
	r.read[id] = v
}

// Reset prepares the resolver for a new traversal.
func (r *Resolver) Reset() {
	r.written.Clear()
	r.nextID = 0
	clear(r.read)
	r.read = r.read[:0]
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return v.IsNil()
	}
	return false
}
