package row

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// makeTestSchema builds a simple schema used across tests.
func makeTestSchema() Schema {
	return NewSchema(
		NewField("id32", Int32Type, false),
		NewField("id64", Int64Type, false),
		NewField("active", BoolType, false),
		NewField("score", Float64Type, false),
		NewField("name", StringType, true),
		NewField("blob", BinaryType, true),
	)
}

func TestEncodeDecodeValues_RoundTrip(t *testing.T) {
	schema := makeTestSchema()

	values := []any{
		int32(42),                // id32
		int64(123456789),         // id64
		true,                     // active
		3.14159,                  // score
		"hello",                  // name
		[]byte{0x01, 0x02, 0x03}, // blob
	}

	buf, err := EncodeValues(schema, values)
	require.NoError(t, err)
	require.NotEmpty(t, buf)
	require.Zero(t, len(buf)%8)

	row, err := DecodeValues(schema, buf)
	require.NoError(t, err)

	require.Len(t, row, len(values))
	require.Equal(t, int32(42), row[0].(int32))
	require.Equal(t, int64(123456789), row[1].(int64))
	require.True(t, row[2].(bool))

	// Float comparison with small epsilon
	require.InDelta(t, 3.14159, row[3].(float64), 1e-9)

	require.Equal(t, "hello", row[4].(string))
	require.Equal(t, []byte{0x01, 0x02, 0x03}, row[5].([]byte))
}

func TestEncodeDecodeValues_Nullable(t *testing.T) {
	schema := makeTestSchema()

	// Set nullable TEXT and BYTES to nil
	values := []any{int32(1), int64(2), false, 1.5, nil, nil}

	buf, err := EncodeValues(schema, values)
	require.NoError(t, err)

	row, err := DecodeValues(schema, buf)
	require.NoError(t, err)

	require.Nil(t, row[4]) // name
	require.Nil(t, row[5]) // blob
}

func TestEncodeValues_SchemaMismatch(t *testing.T) {
	schema := makeTestSchema()

	_, err := EncodeValues(schema, []any{int32(1)})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = EncodeValues(schema, []any{"x", int64(2), true, 1.0, nil, nil})
	require.ErrorIs(t, err, ErrSchemaMismatch)
	require.Contains(t, err.Error(), `field "id32"`)

	_, err = EncodeValues(schema, []any{int64(math.MaxInt32 + 1), int64(2), true, 1.0, nil, nil})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEncodeValues_NotNullable(t *testing.T) {
	schema := makeTestSchema()

	_, err := EncodeValues(schema, []any{nil, int64(2), true, 1.0, nil, nil})
	require.ErrorIs(t, err, ErrNotNullable)
}

func TestEncodeValues_LooseNumbers(t *testing.T) {
	schema := NewSchema(
		NewField("a", Int16Type, false),
		NewField("b", Int64Type, false),
		NewField("c", Float32Type, false),
		NewField("d", DecimalOf(10, 2), false),
	)

	buf, err := EncodeValues(schema, []any{float64(7), json.Number("-9"), 2, "12.5"})
	require.NoError(t, err)

	row, err := DecodeValues(schema, buf)
	require.NoError(t, err)
	require.Equal(t, int16(7), row[0])
	require.Equal(t, int64(-9), row[1])
	require.Equal(t, float32(2), row[2])
	require.Equal(t, "12.50", row[3].(Decimal).String())

	_, err = EncodeValues(schema, []any{7.5, 0, 0, 0})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestEncodeDecodeValues_Nested(t *testing.T) {
	addr := StructOf(
		NewField("city", StringType, false),
		NewField("zip", Int32Type, true),
	)
	schema := NewSchema(
		NewField("name", StringType, false),
		NewField("tags", ListOf(StringType), true),
		NewField("scores", MapOf(StringType, Int64Type), false),
		NewField("home", addr, true),
		NewField("born", DateType, false),
		NewField("seen", TimestampType, false),
	)

	seen := time.Date(2024, 3, 1, 12, 30, 0, 123000, time.UTC)
	values := []any{
		"alice",
		[]any{"x", nil, "z"},
		map[string]any{"b": 2, "a": 1},
		map[string]any{"city": "Hanoi"},
		"1990-05-17",
		seen.Format(time.RFC3339Nano),
	}

	buf, err := EncodeValues(schema, values)
	require.NoError(t, err)

	row, err := DecodeValues(schema, buf)
	require.NoError(t, err)
	require.Equal(t, "alice", row[0])
	require.Equal(t, []any{"x", nil, "z"}, row[1])
	require.Equal(t, map[any]any{"a": int64(1), "b": int64(2)}, row[2])
	require.Equal(t, map[string]any{"city": "Hanoi", "zip": nil}, row[3])
	require.Equal(t, "1990-05-17", row[4].(Date).String())
	require.True(t, seen.Equal(row[5].(time.Time)))
}

func TestEncodeValues_MapKeysSorted(t *testing.T) {
	schema := NewSchema(NewField("m", MapOf(StringType, Int32Type), false))

	var first []byte
	for i := 0; i < 10; i++ {
		buf, err := EncodeValues(schema, []any{map[string]any{"c": 3, "a": 1, "b": 2}})
		require.NoError(t, err)
		if first == nil {
			first = buf
		}
		require.Equal(t, first, buf)
	}
}

func TestDecodeValues_Truncated(t *testing.T) {
	schema := makeTestSchema()

	buf, err := EncodeValues(schema, []any{int32(1), int64(2), true, 1.0, "hello world", nil})
	require.NoError(t, err)

	_, err = DecodeValues(schema, buf[:len(buf)-8])
	require.ErrorIs(t, err, ErrBounds)

	_, err = DecodeValues(schema, buf[:4])
	require.ErrorIs(t, err, ErrBounds)
}

func TestEncodeDecodeValues_Compressed(t *testing.T) {
	inner := StructOf(
		NewField("label", StringType, false),
		NewField("n", Int64Type, false),
	)
	schema := NewSchema(
		NewField("name", StringType, false),
		NewField("id", Int64Type, false),
		NewField("rank", Int32Type, true),
		NewField("child", inner, false),
	)
	l := NewLayout(schema, true)
	require.Equal(t, 2, l.NumPacked())

	// strings come before the packed ints in field order
	values := []any{"x", int64(-5), nil, []any{"y", 300}}
	buf, err := EncodeValuesWithLayout(l, values)
	require.NoError(t, err)

	plain, err := EncodeValues(schema, values)
	require.NoError(t, err)
	require.Less(t, len(buf), len(plain))

	row, err := DecodeValuesWithLayout(l, buf)
	require.NoError(t, err)
	require.Equal(t, []any{"x", int64(-5), nil, map[string]any{"label": "y", "n": int64(300)}}, row)
}
