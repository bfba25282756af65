package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name     string
	Parent   *node
	Children []*node
	hidden   int
}

type bag struct {
	A, B   *int
	S1, S2 []string
	M      map[string][]byte
	Arr    [2]uint16
	F      float32
	C      complex128
	Empty  []int
	Nil    []int
}

func TestSerializer_Cycle(t *testing.T) {
	s := New()

	root := &node{Name: "root", hidden: 7}
	a := &node{Name: "a", Parent: root}
	b := &node{Name: "b", Parent: root}
	root.Children = []*node{a, b, a}

	data, err := s.Marshal(root)
	require.NoError(t, err)

	var got *node
	require.NoError(t, s.Unmarshal(data, &got))
	require.Equal(t, "root", got.Name)
	require.Zero(t, got.hidden)
	require.Len(t, got.Children, 3)
	assert.Same(t, got, got.Children[0].Parent)
	assert.Same(t, got, got.Children[1].Parent)
	assert.Same(t, got.Children[0], got.Children[2])
	assert.NotSame(t, got.Children[0], got.Children[1])
}

type inner struct{ V int }

type outer struct {
	In  inner
	Tag string
}

type interior struct {
	O, Again *outer
	I        *inner
}

func TestSerializer_InteriorPointer(t *testing.T) {
	s := New()

	o := &outer{In: inner{V: 5}, Tag: "o"}
	in := interior{O: o, Again: o, I: &o.In}

	data, err := s.Marshal(in)
	require.NoError(t, err)

	var got interior
	require.NoError(t, s.Unmarshal(data, &got))
	require.NotNil(t, got.O)
	require.NotNil(t, got.I)
	assert.Equal(t, "o", got.O.Tag)
	assert.Equal(t, 5, got.O.In.V)
	assert.Equal(t, 5, got.I.V)
	assert.Same(t, got.O, got.Again)
}

func TestSerializer_SharedValues(t *testing.T) {
	s := New()

	n := 42
	names := []string{"x", "y"}
	in := bag{
		A: &n, B: &n,
		S1: names, S2: names,
		M:     map[string][]byte{"k": {1, 2}, "empty": {}},
		Arr:   [2]uint16{3, 65535},
		F:     1.25,
		C:     complex(1, -2),
		Empty: []int{},
	}

	data, err := s.Marshal(in)
	require.NoError(t, err)

	var out bag
	require.NoError(t, s.Unmarshal(data, &out))
	require.Equal(t, 42, *out.A)
	assert.Same(t, out.A, out.B)
	require.Equal(t, names, out.S1)
	assert.Same(t, &out.S1[0], &out.S2[0])
	require.Equal(t, in.M, out.M)
	require.Equal(t, in.Arr, out.Arr)
	require.Equal(t, in.F, out.F)
	require.Equal(t, in.C, out.C)
	require.NotNil(t, out.Empty)
	require.Empty(t, out.Empty)
	require.Nil(t, out.Nil)
}

func TestSerializer_DistinctEqualValues(t *testing.T) {
	s := New()

	x, y := 1, 1
	in := bag{A: &x, B: &y}
	data, err := s.Marshal(in)
	require.NoError(t, err)

	var out bag
	require.NoError(t, s.Unmarshal(data, &out))
	assert.NotSame(t, out.A, out.B)
	assert.Equal(t, *out.A, *out.B)
}

func TestSerializer_Rejects(t *testing.T) {
	s := New()

	_, err := s.Marshal(nil)
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = s.Marshal(struct{ V any }{V: 1})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = s.Marshal(make(chan int))
	require.ErrorIs(t, err, ErrUnsupported)

	var n node
	require.ErrorIs(t, s.Unmarshal([]byte{0}, n), ErrTarget)
	require.ErrorIs(t, s.Unmarshal([]byte{0}, (*node)(nil)), ErrTarget)
}

func TestSerializer_Corrupt(t *testing.T) {
	s := New()

	data, err := s.Marshal(&node{Name: "a long enough name", Children: []*node{{Name: "c"}}})
	require.NoError(t, err)

	for _, cut := range []int{1, 3, len(data) - 1} {
		var got *node
		err := s.Unmarshal(data[:cut], &got)
		require.ErrorIs(t, err, ErrCorrupt, "cut at %d", cut)
	}

	var got *node
	require.ErrorIs(t, s.Unmarshal(append(data, 0), &got), ErrCorrupt)

	// a reference to an id never written
	require.ErrorIs(t, s.Unmarshal([]byte{0xfe, 0x05}, &got), ErrCorrupt)

	// huge length prefix
	var xs []int
	require.ErrorIs(t, s.Unmarshal([]byte{0x00, 0xff, 0xff, 0xff, 0x7f}, &xs), ErrCorrupt)
}

func TestSerializer_Concurrent(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				root := &node{Name: "r"}
				root.Children = []*node{{Name: "c", Parent: root}}
				data, err := s.Marshal(root)
				if !assert.NoError(t, err) {
					return
				}
				var got *node
				if !assert.NoError(t, s.Unmarshal(data, &got)) {
					return
				}
				assert.Same(t, got, got.Children[0].Parent)
			}
		}()
	}
	wg.Wait()
}
