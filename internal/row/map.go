package row

import (
	"fmt"

	"github.com/tuannm99/novarow/internal/memory"
)

// Map is a read view over MapData.
type Map struct {
	region
	t      DataType
	keys   *Array
	values *Array
}

func NewMap(t DataType) *Map { return NewMapLayout(t, false) }

func NewMapLayout(t DataType, compressed bool) *Map {
	return &Map{
		t:      t,
		keys:   NewArrayLayout(*t.Key, compressed),
		values: NewArrayLayout(*t.Value, compressed),
	}
}

func (m *Map) Type() DataType   { return m.t }
func (m *Map) Keys() *Array     { return m.keys }
func (m *Map) Values() *Array   { return m.values }
func (m *Map) NumElements() int { return m.keys.NumElements() }

func (m *Map) PointTo(buf *memory.Buffer, offset, size int) error {
	if err := m.point(buf, offset, size); err != nil {
		return err
	}
	if size < 8 {
		return fmt.Errorf("%w: map of %d bytes has no header", ErrBounds, size)
	}
	keySize := buf.GetInt64(offset)
	if keySize < 0 || keySize > int64(size-8) {
		return fmt.Errorf("%w: key array of %d bytes in map of %d bytes", ErrBounds, keySize, size)
	}
	ks := int(keySize)
	if err := m.keys.PointTo(buf, offset+8, ks); err != nil {
		return fmt.Errorf("map keys: %w", err)
	}
	if err := m.values.PointTo(buf, offset+8+ks, size-8-ks); err != nil {
		return fmt.Errorf("map values: %w", err)
	}
	if m.keys.NumElements() != m.values.NumElements() {
		return fmt.Errorf("%w: %d keys but %d values", ErrBounds, m.keys.NumElements(), m.values.NumElements())
	}
	return nil
}

// ToGoMap converts the entries to plain Go values. Binary keys become
// strings; list, map and struct keys are not supported.
func (m *Map) ToGoMap() (map[any]any, error) {
	switch m.t.Key.Type.ID {
	case TypeList, TypeMap, TypeStruct:
		return nil, fmt.Errorf("%w: %s map keys", ErrUnsupportedType, m.t.Key.Type)
	}
	out := make(map[any]any, m.NumElements())
	for i := 0; i < m.NumElements(); i++ {
		k, err := m.keys.Get(i)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		if b, ok := k.([]byte); ok {
			k = string(b)
		}
		v, err := m.values.Get(i)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[k] = v
	}
	return out, nil
}
