package codec

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novarow/internal/graph"
	"github.com/tuannm99/novarow/internal/row"
)

type person struct {
	Age      int32
	Name     string
	Nickname *string
}

type color int

const (
	red color = iota
	green
)

func (c color) MarshalText() ([]byte, error) {
	switch c {
	case red:
		return []byte("red"), nil
	case green:
		return []byte("green"), nil
	}
	return nil, fmt.Errorf("bad color %d", int(c))
}

func (c *color) UnmarshalText(b []byte) error {
	switch string(b) {
	case "red":
		*c = red
	case "green":
		*c = green
	default:
		return fmt.Errorf("bad color %q", b)
	}
	return nil
}

type address struct {
	City string
	Zip  *int32
}

type profile struct {
	ID      int64
	Score   float64
	Rank    int32
	Active  bool
	Small   int8
	Mid     int16
	U8      uint8
	U16     uint16
	U32     uint32
	U64     uint64
	Ratio   float32
	Name    string
	Color   color
	Raw     []byte
	Hash    [4]byte
	Born    row.Date
	Seen    time.Time
	Balance row.Decimal
	Big     *big.Int
	Tags    []string
	Matrix  [][]int32
	Grid    [][]int32
	Scores  map[string]int64
	Home    address
	Work    *address
	History []address
	Extra   any
	UserID  string `row:"uid"`
	Skipped string `row:"-"`
	secret  int
}

func sampleProfile() profile {
	zip := int32(10000)
	big30, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	return profile{
		ID: 1 << 40, Score: 99.5, Rank: -7, Active: true,
		Small: -8, Mid: 300, U8: 255, U16: 65535, U32: 1<<32 - 1, U64: 1<<64 - 1,
		Ratio:   0.25,
		Name:    "Ada",
		Color:   green,
		Raw:     []byte{0, 1, 2},
		Hash:    [4]byte{0xde, 0xad, 0xbe, 0xef},
		Born:    row.DateOf(time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)),
		Seen:    time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC),
		Balance: row.NewDecimal(12345, 2),
		Big:     big30,
		Tags:    []string{"math", "", "engines"},
		Matrix:  [][]int32{{1, 2}, {3}},
		Grid:    [][]int32{nil, nil},
		Scores:  map[string]int64{"b": 2, "a": 1},
		Home:    address{City: "London", Zip: &zip},
		History: []address{{City: "Paris"}, {City: "Turin", Zip: &zip}},
		Extra:   "free-form",
		UserID:  "u-1",
		Skipped: "dropped",
		secret:  42,
	}
}

func requireProfile(t *testing.T, want, got profile) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Score, got.Score)
	require.Equal(t, want.Rank, got.Rank)
	require.Equal(t, want.Active, got.Active)
	require.Equal(t, want.Small, got.Small)
	require.Equal(t, want.Mid, got.Mid)
	require.Equal(t, want.U8, got.U8)
	require.Equal(t, want.U16, got.U16)
	require.Equal(t, want.U32, got.U32)
	require.Equal(t, want.U64, got.U64)
	require.Equal(t, want.Ratio, got.Ratio)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Color, got.Color)
	require.Equal(t, want.Raw, got.Raw)
	require.Equal(t, want.Hash, got.Hash)
	require.Equal(t, want.Born, got.Born)
	require.True(t, want.Seen.Equal(got.Seen))
	require.True(t, want.Balance.Equal(got.Balance))
	require.Equal(t, int32(row.DefaultScale), got.Balance.Scale)
	require.Zero(t, want.Big.Cmp(got.Big))
	require.Equal(t, want.Tags, got.Tags)
	require.Equal(t, want.Matrix, got.Matrix)
	require.Nil(t, got.Grid)
	require.Equal(t, want.Scores, got.Scores)
	require.Equal(t, want.Home, got.Home)
	require.Nil(t, got.Work)
	require.Equal(t, want.History, got.History)
	require.Equal(t, want.Extra, got.Extra)
	require.Equal(t, want.UserID, got.UserID)
	require.Empty(t, got.Skipped)
	require.Zero(t, got.secret)
}

func TestRowCodec_Person(t *testing.T) {
	c, err := NewRowCodec[person](NewRegistry())
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, f := range c.Schema().Fields {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"age", "name", "nickname"}, names)
	require.False(t, c.Schema().Fields[0].Nullable)
	require.True(t, c.Schema().Fields[2].Nullable)

	data, err := c.Encode(person{Age: 30, Name: "Alice"})
	require.NoError(t, err)
	require.Len(t, data, 8+3*8+8)

	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, person{Age: 30, Name: "Alice"}, got)

	view := row.NewRow(c.Schema())
	require.NoError(t, view.PointTo(c.w.Buffer(), 0, len(data)))
	require.Equal(t, "{age=30, name=Alice, nickname=null}", view.String())

	nick := "Al"
	data, err = c.Encode(person{Age: 31, Name: "Alice", Nickname: &nick})
	require.NoError(t, err)
	got, err = c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "Al", *got.Nickname)
}

func TestRowCodec_AllTypes(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		t.Run(fmt.Sprintf("compressed=%v", compressed), func(t *testing.T) {
			opts := []Option{WithSchemaHash()}
			if compressed {
				opts = append(opts, WithCompressedInts())
			}
			c, err := NewRowCodec[profile](NewRegistry(opts...))
			require.NoError(t, err)

			in := sampleProfile()
			data, err := c.Encode(in)
			require.NoError(t, err)
			require.Zero(t, len(data)%8)

			out, err := c.Decode(data)
			require.NoError(t, err)
			requireProfile(t, in, out)

			// the codec is reusable
			in.Name = "Grace"
			in.Work = &address{City: "Arlington"}
			data, err = c.Encode(in)
			require.NoError(t, err)
			out, err = c.Decode(data)
			require.NoError(t, err)
			require.Equal(t, "Grace", out.Name)
			require.Equal(t, "Arlington", out.Work.City)
			require.Nil(t, out.Work.Zip)
		})
	}
}

func TestRowCodec_Schema(t *testing.T) {
	c, err := NewRowCodec[profile](NewRegistry())
	require.NoError(t, err)
	s := c.Schema()

	field := func(name string) row.Field {
		i := s.FieldIndex(name)
		require.GreaterOrEqual(t, i, 0, name)
		return s.Fields[i]
	}
	require.Equal(t, row.Int16Type, field("u8").Type)
	require.Equal(t, row.Int64Type, field("u64").Type)
	require.Equal(t, row.StringType, field("color").Type)
	require.Equal(t, row.BinaryType, field("hash").Type)
	require.Equal(t, row.DecimalOf(38, 18), field("balance").Type)
	require.Equal(t, row.DecimalOf(38, 0), field("big").Type)
	require.True(t, field("big").Nullable)
	require.Equal(t, row.TypeList, field("matrix").Type.ID)
	require.Equal(t, row.TypeList, field("matrix").Type.Elem.Type.ID)
	require.Equal(t, row.TypeMap, field("scores").Type.ID)
	require.Equal(t, row.TypeStruct, field("home").Type.ID)
	require.Equal(t, row.BinaryType, field("extra").Type)
	require.Equal(t, -1, s.FieldIndex("skipped"))
	require.Equal(t, -1, s.FieldIndex("secret"))
	require.Equal(t, -1, s.FieldIndex("user_id"))
}

type flat struct {
	A int64
	B float64
	C int32
	D bool
	S string
	N *int16
}

func TestRowCodec_GroupedSlotsMatchRowFormat(t *testing.T) {
	c, err := NewRowCodec[flat](NewRegistry())
	require.NoError(t, err)
	require.Len(t, c.plan.writes, 3) // a..d grouped, s, n

	data, err := c.Encode(flat{A: 7, B: 2.5, C: -3, D: true, S: "x"})
	require.NoError(t, err)

	want, err := row.EncodeValues(c.Schema(), []any{int64(7), 2.5, int32(-3), true, "x", nil})
	require.NoError(t, err)
	require.Equal(t, want, data)
}

type counters struct {
	A, B, C int64
	D       int32
	Name    string
}

func TestRowCodec_CompressedIsSmaller(t *testing.T) {
	plain, err := NewRowCodec[counters](NewRegistry())
	require.NoError(t, err)
	packed, err := NewRowCodec[counters](NewRegistry(WithCompressedInts()))
	require.NoError(t, err)

	in := counters{A: 1, B: -2, C: 300, D: 4, Name: "x"}
	p, err := plain.Encode(in)
	require.NoError(t, err)
	q, err := packed.Encode(in)
	require.NoError(t, err)
	require.Len(t, p, 8+5*8+8)
	require.Len(t, q, 8+8+8+8)

	out, err := packed.Decode(q)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestRowCodec_VersionMismatch(t *testing.T) {
	type v1 struct {
		A int32
		B string
	}
	type v2 struct {
		A int64
		B string
	}
	type renamed struct {
		X int32
		Y string
	}

	reg := NewRegistry(WithSchemaHash())
	c1, err := NewRowCodec[v1](reg)
	require.NoError(t, err)
	data, err := c1.Encode(v1{A: 1, B: "b"})
	require.NoError(t, err)
	require.Equal(t, c1.Hash(), row.NewSchema(c1.Schema().Fields...).Hash())

	c2, err := NewRowCodec[v2](reg)
	require.NoError(t, err)
	_, err = c2.Decode(data)
	require.ErrorIs(t, err, ErrVersionMismatch)
	var vm *VersionMismatchError
	require.True(t, errors.As(err, &vm))
	require.Equal(t, c2.Hash(), vm.Want)
	require.Equal(t, c1.Hash(), vm.Got)

	// names do not take part in the hash
	c3, err := NewRowCodec[renamed](reg)
	require.NoError(t, err)
	got, err := c3.Decode(data)
	require.NoError(t, err)
	require.Equal(t, renamed{X: 1, Y: "b"}, got)

	// nor can a compressed reader take plain data
	c4, err := NewRowCodec[v1](NewRegistry(WithSchemaHash(), WithCompressedInts()))
	require.NoError(t, err)
	_, err = c4.Decode(data)
	require.ErrorIs(t, err, ErrVersionMismatch)

	_, err = c1.Decode(data[:4])
	require.ErrorIs(t, err, ErrBounds)
}

func TestRowCodec_Truncated(t *testing.T) {
	c, err := NewRowCodec[person](NewRegistry())
	require.NoError(t, err)
	data, err := c.Encode(person{Age: 30, Name: "Alice"})
	require.NoError(t, err)

	for _, n := range []int{0, 8, 24, len(data) - 8} {
		got, err := c.Decode(data[:n])
		require.ErrorIs(t, err, ErrBounds, "len %d", n)
		require.Equal(t, person{}, got)
	}
}

func TestMapCodec_Scenario(t *testing.T) {
	c, err := NewMapCodec[map[string]int32](NewRegistry())
	require.NoError(t, err)

	data, err := c.Encode(map[string]int32{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Len(t, data, 8+48+24)
	m := row.NewMap(c.Field().Type)
	require.NoError(t, m.PointTo(c.w.Buffer(), 0, len(data)))
	require.Equal(t, 48, int(c.w.Buffer().GetInt64(0)))
	k0, err := m.Keys().GetString(0)
	require.NoError(t, err)
	require.Equal(t, "a", k0)

	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, map[string]int32{"a": 1, "b": 2}, got)
}

func TestMapCodec_Boundaries(t *testing.T) {
	c, err := NewMapCodec[map[int64]address](NewRegistry())
	require.NoError(t, err)

	data, err := c.Encode(nil)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	one := map[int64]address{7: {City: "x"}}
	data, err = c.Encode(one)
	require.NoError(t, err)
	got, err = c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, one, got)

	many := make(map[int64]address, 3000)
	for i := int64(0); i < 3000; i++ {
		many[i*i] = address{City: fmt.Sprintf("city-%d", i)}
	}
	data, err = c.Encode(many)
	require.NoError(t, err)
	got, err = c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, many, got)
}

func TestMapCodec_NaNKeys(t *testing.T) {
	c, err := NewMapCodec[map[float64]int32](NewRegistry())
	require.NoError(t, err)

	in := map[float64]int32{math.NaN(): 1, math.NaN(): 2, 2.5: 3}
	data, err := c.Encode(in)
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int32(3), got[2.5])
	var nan []int32
	for k, v := range got {
		if math.IsNaN(k) {
			nan = append(nan, v)
		}
	}
	assert.ElementsMatch(t, []int32{1, 2}, nan)
}

func TestArrayCodec(t *testing.T) {
	ints, err := NewArrayCodec[[]int32](NewRegistry())
	require.NoError(t, err)
	data, err := ints.Encode([]int32{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, data, 8+8+16)
	xs, err := ints.Decode(data)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, xs)

	grid, err := NewArrayCodec[[][]int64](NewRegistry())
	require.NoError(t, err)

	data, err = grid.Encode([][]int64{{1}, {2, 3}, nil})
	require.NoError(t, err)
	g, err := grid.Decode(data)
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1}, {2, 3}, nil}, g)

	// an all-null level makes the whole array null
	data, err = grid.Encode([][]int64{nil, nil})
	require.NoError(t, err)
	g, err = grid.Decode(data)
	require.NoError(t, err)
	require.Nil(t, g)

	fixed, err := NewArrayCodec[[3]uint16](NewRegistry())
	require.NoError(t, err)
	data, err = fixed.Encode([3]uint16{1, 2, 65535})
	require.NoError(t, err)
	f, err := fixed.Decode(data)
	require.NoError(t, err)
	require.Equal(t, [3]uint16{1, 2, 65535}, f)

	_, err = NewArrayCodec[[]byte](NewRegistry())
	require.ErrorIs(t, err, ErrSpecialization)
}

type treeNode struct {
	Name     string
	Children []*treeNode
	Parent   *treeNode
}

func TestRowCodec_RecursiveTypeGoesOpaque(t *testing.T) {
	reg := NewRegistry(WithOpaque(graph.New()))
	c, err := NewRowCodec[treeNode](reg)
	require.NoError(t, err)
	require.Equal(t, row.BinaryType, c.Schema().Fields[2].Type)
	require.Equal(t, row.BinaryType, c.Schema().Fields[1].Type.Elem.Type)

	a := &treeNode{Name: "a"}
	a.Children = []*treeNode{a}
	data, err := c.Encode(treeNode{Name: "root", Children: []*treeNode{a, nil}})
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "root", out.Name)
	require.Nil(t, out.Parent)
	require.Len(t, out.Children, 2)
	require.Nil(t, out.Children[1])
	require.Equal(t, "a", out.Children[0].Name)
	assert.Same(t, out.Children[0], out.Children[0].Children[0])

	_, err = NewRowCodec[treeNode](NewRegistry(WithOpaque(nil)))
	require.ErrorIs(t, err, ErrSpecialization)
}

func TestTypeCodec_SerializeDeserialize(t *testing.T) {
	reg := NewRegistry()
	tc, err := reg.GetOrBuild(reflect.TypeFor[person]())
	require.NoError(t, err)

	w, err := tc.NewWriter()
	require.NoError(t, err)
	require.NoError(t, tc.Serialize(reflect.ValueOf(person{Age: 30, Name: "Alice"}), w))

	v, err := tc.Deserialize(w.ToRow())
	require.NoError(t, err)
	require.Equal(t, person{Age: 30, Name: "Alice"}, v.Interface())

	it, err := reg.GetOrBuild(reflect.TypeFor[int]())
	require.NoError(t, err)
	require.Equal(t, row.Int64Type, it.Field().Type)
	_, err = it.NewWriter()
	require.ErrorIs(t, err, ErrSpecialization)
}

func TestRegistry_ConcurrentGetOrBuild(t *testing.T) {
	reg := NewRegistry()
	typ := reflect.TypeFor[profile]()

	var wg sync.WaitGroup
	got := make([]*TypeCodec, 16)
	for g := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tc, err := reg.GetOrBuild(typ)
			assert.NoError(t, err)
			got[g] = tc

			c, err := NewRowCodec[profile](reg)
			if !assert.NoError(t, err) {
				return
			}
			in := sampleProfile()
			in.ID = int64(g)
			data, err := c.Encode(in)
			if !assert.NoError(t, err) {
				return
			}
			out, err := c.Decode(data)
			if assert.NoError(t, err) {
				assert.Equal(t, int64(g), out.ID)
			}
		}()
	}
	wg.Wait()
	for _, tc := range got {
		require.Same(t, got[0], tc)
	}
}

type badFields struct {
	Name string
	C    chan int
}

type wrapsBad struct {
	ID  int64
	Bad badFields
}

func TestRegistry_PoisonedEntry(t *testing.T) {
	reg := NewRegistry()

	_, err := NewRowCodec[badFields](reg)
	require.ErrorIs(t, err, ErrSpecialization)
	var se *SpecializationError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "C", se.Field)

	_, again := reg.GetOrBuild(reflect.TypeFor[badFields]())
	require.Same(t, err, again)

	_, err = NewRowCodec[wrapsBad](reg)
	require.True(t, errors.As(err, &se))
	require.Equal(t, "Bad.C", se.Field)
	require.Equal(t, reflect.TypeFor[wrapsBad](), se.Type)

	_, err = NewRowCodec[int](reg)
	require.ErrorIs(t, err, ErrSpecialization)
	_, err = NewMapCodec[[]int](reg)
	require.ErrorIs(t, err, ErrSpecialization)
	_, err = reg.GetOrBuild(reflect.TypeFor[func()]())
	require.ErrorIs(t, err, ErrSpecialization)
	_, err = reg.GetOrBuild(reflect.TypeFor[map[*int]string]())
	require.ErrorIs(t, err, ErrSpecialization)
}

func TestFieldNames(t *testing.T) {
	cases := map[string]string{
		"Age":        "age",
		"UserID":     "user_id",
		"ID":         "id",
		"HTTPServer": "http_server",
		"U16":        "u16",
		"Field2Name": "field2_name",
		"already":    "already",
	}
	for in, want := range cases {
		require.Equal(t, want, snakeCase(in), in)
	}

	type tagged struct {
		A string `row:"alpha,omitempty"`
		B string `row:"-"`
		C string `row:""`
	}
	tc, err := NewRegistry().GetOrBuild(reflect.TypeFor[tagged]())
	require.NoError(t, err)
	require.Equal(t, "schema<alpha: string not null, c: string not null>", tc.Schema().String())

	type dup struct {
		UserID string
		Other  string `row:"user_id"`
	}
	_, err = NewRegistry().GetOrBuild(reflect.TypeFor[dup]())
	var se *SpecializationError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "Other", se.Field)
}

func TestRowCodec_EnumErrors(t *testing.T) {
	type painted struct{ C color }
	c, err := NewRowCodec[painted](NewRegistry())
	require.NoError(t, err)

	_, err = c.Encode(painted{C: color(9)})
	require.Error(t, err)

	other, err := NewRowCodec[struct{ C string }](NewRegistry())
	require.NoError(t, err)
	data, err := other.Encode(struct{ C string }{C: "blue"})
	require.NoError(t, err)
	_, err = c.Decode(data)
	require.Error(t, err)
}
