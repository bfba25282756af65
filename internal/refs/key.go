package refs

import (
	"reflect"
	"unsafe"
)

// Key is an object identity: the address of the referenced memory, a
// length, and the type it is referenced as. Two slices sharing a backing
// array with different lengths stay distinct, and so do a pointer to a
// struct and a pointer to its first field. Equal values at different
// addresses are different keys.
type Key struct {
	ptr unsafe.Pointer
	n   int
	typ reflect.Type
}

func (k Key) IsZero() bool { return k.ptr == nil }

// KeyOfPointer returns the identity of p.
func KeyOfPointer[T any](p *T) Key {
	k := Key{ptr: unsafe.Pointer(p), typ: reflect.TypeFor[*T]()}
	if k.typ.Elem().Kind() == reflect.Array {
		k.n = k.typ.Elem().Len()
	}
	return k
}

// KeyOf returns the identity of v. Values that carry no identity (numbers,
// structs held by value, nil references) report false.
func KeyOf(v reflect.Value) (Key, bool) {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return Key{}, false
		}
		return KeyOf(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return Key{}, false
		}
		k := Key{ptr: v.UnsafePointer(), typ: v.Type()}
		if v.Type().Elem().Kind() == reflect.Array {
			k.n = v.Type().Elem().Len()
		}
		return k, true
	case reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return Key{}, false
		}
		return Key{ptr: v.UnsafePointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return Key{}, false
		}
		return Key{ptr: v.UnsafePointer(), n: v.Len(), typ: v.Type()}, true
	case reflect.String:
		s := v.String()
		if len(s) == 0 {
			return Key{}, false
		}
		return Key{ptr: unsafe.Pointer(unsafe.StringData(s)), n: len(s), typ: v.Type()}, true
	default:
		return Key{}, false
	}
}
