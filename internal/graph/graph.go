// Package graph is an object-graph serializer that preserves pointer
// identity: a pointer, map or slice reached twice is written once and
// referenced afterwards, so shared instances stay shared and cycles
// terminate.
//
// Values are encoded by their static Go type. Interface-typed values are
// rejected since the decoder has no way to learn the dynamic type.
package graph

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/refs"
)

var (
	ErrUnsupported = errors.New("graph: unsupported type")
	ErrCorrupt     = errors.New("graph: corrupt input")
	ErrTarget      = errors.New("graph: Unmarshal target must be a non-nil pointer")
)

// Serializer is safe for concurrent use; every call gets its own resolver.
type Serializer struct {
	resolvers sync.Pool
}

func New() *Serializer {
	return &Serializer{resolvers: sync.Pool{New: func() any { return refs.NewResolver() }}}
}

func (s *Serializer) Name() string { return "graph" }

func (s *Serializer) acquire() *refs.Resolver {
	r := s.resolvers.Get().(*refs.Resolver)
	r.Reset()
	return r
}

// Marshal encodes v by its dynamic type.
func (s *Serializer) Marshal(v any) (out []byte, err error) {
	defer memory.Recover(&err)
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil", ErrUnsupported)
	}
	r := s.acquire()
	defer s.resolvers.Put(r)

	buf := memory.New(256)
	e := encoder{buf: buf, refs: r}
	if err := e.value(rv); err != nil {
		return nil, err
	}
	out = make([]byte, buf.WriterIndex())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes data, produced by Marshal of a T, into the *T target.
func (s *Serializer) Unmarshal(data []byte, target any) (err error) {
	defer memory.Recover(&err)
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrTarget
	}
	r := s.acquire()
	defer s.resolvers.Put(r)

	d := decoder{buf: memory.Wrap(data), refs: r}
	if err := d.value(rv.Elem()); err != nil {
		return err
	}
	if d.buf.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, d.buf.Remaining())
	}
	return nil
}

// ---- encode ----

type encoder struct {
	buf  *memory.Buffer
	refs *refs.Resolver
}

func (e *encoder) value(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.buf.WriteInt8(1)
		} else {
			e.buf.WriteInt8(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteVarint(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteUvarint(v.Uint())
	case reflect.Float32:
		e.buf.WriteFloat32(float32(v.Float()))
	case reflect.Float64:
		e.buf.WriteFloat64(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		e.buf.WriteFloat64(real(c))
		e.buf.WriteFloat64(imag(c))
	case reflect.String:
		s := v.String()
		e.buf.WriteUvarint(uint64(len(s)))
		_, _ = e.buf.Write([]byte(s))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := e.value(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := e.value(v.Field(i)); err != nil {
				return fmt.Errorf("%s.%s: %w", t, t.Field(i).Name, err)
			}
		}
	case reflect.Pointer:
		done, err := e.refs.WriteRefOrNull(e.buf, v)
		if err != nil || done {
			return err
		}
		return e.value(v.Elem())
	case reflect.Slice:
		done, err := e.refs.WriteRefOrNull(e.buf, v)
		if err != nil || done {
			return err
		}
		e.buf.WriteUvarint(uint64(v.Len()))
		if v.Type().Elem().Kind() == reflect.Uint8 {
			_, _ = e.buf.Write(v.Bytes())
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := e.value(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		done, err := e.refs.WriteRefOrNull(e.buf, v)
		if err != nil || done {
			return err
		}
		e.buf.WriteUvarint(uint64(v.Len()))
		it := v.MapRange()
		for it.Next() {
			if err := e.value(it.Key()); err != nil {
				return err
			}
			if err := e.value(it.Value()); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, v.Type())
	}
	return nil
}

// ---- decode ----

type decoder struct {
	buf  *memory.Buffer
	refs *refs.Resolver
}

// value decodes into v, which must be settable.
func (d *decoder) value(v reflect.Value) error {
	t := v.Type()
	switch t.Kind() {
	case reflect.Bool:
		b, err := d.buf.ReadInt8()
		if err != nil {
			return d.corrupt(err)
		}
		v.SetBool(b != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := d.buf.ReadVarint()
		if err != nil {
			return d.corrupt(err)
		}
		if v.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrCorrupt, n, t)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := d.buf.ReadUvarint()
		if err != nil {
			return d.corrupt(err)
		}
		if v.OverflowUint(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrCorrupt, n, t)
		}
		v.SetUint(n)
	case reflect.Float32:
		f, err := d.buf.ReadFloat32()
		if err != nil {
			return d.corrupt(err)
		}
		v.SetFloat(float64(f))
	case reflect.Float64:
		f, err := d.buf.ReadFloat64()
		if err != nil {
			return d.corrupt(err)
		}
		v.SetFloat(f)
	case reflect.Complex64, reflect.Complex128:
		re, err := d.buf.ReadFloat64()
		if err != nil {
			return d.corrupt(err)
		}
		im, err := d.buf.ReadFloat64()
		if err != nil {
			return d.corrupt(err)
		}
		v.SetComplex(complex(re, im))
	case reflect.String:
		p, err := d.bytes()
		if err != nil {
			return err
		}
		v.SetString(string(p))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := d.value(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := d.value(v.Field(i)); err != nil {
				return fmt.Errorf("%s.%s: %w", t, t.Field(i).Name, err)
			}
		}
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return d.reference(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
	return nil
}

// reference decodes a value that was written behind a ref header.
func (d *decoder) reference(v reflect.Value) error {
	t := v.Type()
	flag, prev, err := d.refs.ReadRefOrNull(d.buf)
	if err != nil {
		return d.corrupt(err)
	}
	switch flag {
	case refs.NullFlag:
		v.SetZero()
		return nil
	case refs.RefFlag:
		if prev.Type() != t {
			return fmt.Errorf("%w: reference to %s read as %s", ErrCorrupt, prev.Type(), t)
		}
		v.Set(prev)
		return nil
	}

	// RefValueFlag publishes the value before its children so cycles
	// resolve; NotNullValueFlag (empty slices) carries no id.
	id := int32(-1)
	if flag == refs.RefValueFlag {
		id = d.refs.Preserve()
	}
	switch t.Kind() {
	case reflect.Pointer:
		if id < 0 {
			return fmt.Errorf("%w: pointer without identity", ErrCorrupt)
		}
		p := reflect.New(t.Elem())
		d.refs.SetReadObject(id, p)
		v.Set(p)
		return d.value(p.Elem())

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			p, err := d.bytes()
			if err != nil {
				return err
			}
			cp := make([]byte, len(p))
			copy(cp, p)
			s := reflect.New(t).Elem()
			s.SetBytes(cp)
			if id >= 0 {
				d.refs.SetReadObject(id, s)
			}
			v.Set(s)
			return nil
		}
		n, err := d.length(t.Elem())
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(t, n, n)
		if id >= 0 {
			d.refs.SetReadObject(id, s)
		}
		for i := 0; i < n; i++ {
			if err := d.value(s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)

	case reflect.Map:
		n, err := d.length(t.Key())
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(t, n)
		if id >= 0 {
			d.refs.SetReadObject(id, m)
		}
		v.Set(m)
		key := reflect.New(t.Key()).Elem()
		val := reflect.New(t.Elem()).Elem()
		for i := 0; i < n; i++ {
			key.SetZero()
			val.SetZero()
			if err := d.value(key); err != nil {
				return err
			}
			if err := d.value(val); err != nil {
				return err
			}
			m.SetMapIndex(key, val)
		}
	}
	return nil
}

// length reads an element count and rejects counts the remaining input
// cannot hold.
func (d *decoder) length(elem reflect.Type) (int, error) {
	n, err := d.buf.ReadUvarint()
	if err != nil {
		return 0, d.corrupt(err)
	}
	if n > math.MaxInt32 || (elem.Size() > 0 && n > uint64(d.buf.Remaining())) {
		return 0, fmt.Errorf("%w: length %d with %d bytes left", ErrCorrupt, n, d.buf.Remaining())
	}
	return int(n), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.buf.ReadUvarint()
	if err != nil {
		return nil, d.corrupt(err)
	}
	if n > uint64(d.buf.Remaining()) {
		return nil, fmt.Errorf("%w: length %d with %d bytes left", ErrCorrupt, n, d.buf.Remaining())
	}
	return d.buf.ReadBytes(int(n))
}

func (d *decoder) corrupt(err error) error {
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCorrupt, err)
}
