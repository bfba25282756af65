// Package refs tracks object identities during one graph traversal.
//
// IdentityTable maps an identity to a small integer id. It is a probing
// table with 3-slot buckets; unresolved collisions cascade into smaller
// child levels and, past a fixed depth, into a plain linear-scan list.
// A table belongs to a single traversal and is not safe for concurrent use.
package refs

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/tuannm99/novarow/internal/alias/bx"
)

const (
	reserve     = 4
	maxDepth    = 4
	growFactor  = 2
	bucketSlots = 3
	scratchLen  = 10000

	notFound int32 = math.MinInt32
)

// sizes biases capacities toward primes to spread clustered addresses.
var sizes = []int{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 37, 67, 97, 139, 211, 331, 641, 1097, 1531, 2207,
	3121, 5059, 7607, 10891, 15901, 19993, 30223, 50077, 74231, 99991, 150001, 300017,
	1000033, 1500041, 2000033, 3000077, 5000077, 10000019,
}

// pre-zeroed scratch copied over occupied arrays by Clear
var (
	zeroKeys [scratchLen]Key
	zeroVals [scratchLen]int32
)

// Hasher hashes an identity. Only the low 31 bits are used.
type Hasher func(Key) uint32

// DefaultHasher hashes the address and length words with xxhash.
func DefaultHasher(k Key) uint32 {
	var b [16]byte
	bx.PutU64(b[:8], uint64(uintptr(k.ptr)))
	bx.PutU64(b[8:], uint64(k.n))
	return uint32(xxhash.Sum64(b[:]))
}

type Option func(*IdentityTable)

// WithHasher replaces the identity hash. Tests use it to force collisions.
func WithHasher(h Hasher) Option {
	return func(t *IdentityTable) { t.hash = h }
}

type IdentityTable struct {
	keys  []Key
	vals  []int32
	mask  int
	klen  int // usable bucket starts; the last reserve slots only hold spill-over
	count int
	depth int // 0 for the root level

	next *IdentityTable
	list *linearList // set on levels past maxDepth; terminal
	hash Hasher
}

// Stats describes the shape of a table chain.
type Stats struct {
	Levels        int
	Capacity      int
	LinearEntries int
}

func NewIdentityTable(initialSize int, opts ...Option) *IdentityTable {
	t := &IdentityTable{hash: DefaultHasher}
	for _, o := range opts {
		o(t)
	}
	t.init(initialSize)
	return t
}

func (t *IdentityTable) init(initialSize int) {
	if initialSize < 2 {
		initialSize = 2
	}
	t.alloc(adjustSize(initialSize * growFactor))
}

func (t *IdentityTable) alloc(size int) {
	t.keys = make([]Key, size)
	t.vals = make([]int32, size)
	t.count = 0
	t.mask = highestOneBit(size)<<1 - 1
	t.klen = size - reserve
}

func adjustSize(size int) int {
	for _, p := range sizes {
		if size < p {
			return p + reserve
		}
	}
	return size + reserve
}

func highestOneBit(n int) int {
	return 1 << (bits.Len(uint(n)) - 1)
}

func (t *IdentityTable) hashOf(k Key) int {
	return int(t.hash(k) & 0x7fffffff)
}

// index folds the hash into [0, klen) without a modulo.
func (t *IdentityTable) index(h int) int {
	i := h & t.mask
	for i >= t.klen {
		i >>= 1
	}
	return i
}

// PutOrGet inserts key with id unless it is already present. It returns
// the stored id and whether key was found. id must not be math.MinInt32.
func (t *IdentityTable) PutOrGet(key Key, id int32) (int32, bool) {
	v := t.putOrGet(key, id, t.hashOf(key), t)
	if v == notFound {
		return id, false
	}
	return v, true
}

// Put stores id for key, replacing any previous id.
func (t *IdentityTable) Put(key Key, id int32) {
	t.put(key, id, t.hashOf(key), t)
}

// Get returns the id stored for key.
func (t *IdentityTable) Get(key Key) (int32, bool) {
	v := t.get(key, t.hashOf(key))
	return v, v != notFound
}

func (t *IdentityTable) putOrGet(key Key, id int32, h int, parent *IdentityTable) int32 {
	if t.list != nil {
		return t.list.putOrGet(key, id)
	}
	if t.count*growFactor > len(t.keys) {
		if parent.nearFull(t.count) {
			parent.resize(len(parent.keys) * growFactor)
			return parent.putOrGet(key, id, h, parent)
		}
		t.resize(len(t.keys) * growFactor)
	}

	idx := t.index(h)
	for i := idx; i < idx+bucketSlots; i++ {
		k := t.keys[i]
		if k.ptr == nil {
			t.keys[i], t.vals[i] = key, id
			t.count++
			return notFound
		}
		if k == key {
			return t.vals[i]
		}
	}

	if t.next == nil {
		t.next = t.child()
		t.next.put(key, id, h, t)
		return notFound
	}
	return t.next.putOrGet(key, id, h, t)
}

func (t *IdentityTable) put(key Key, id int32, h int, parent *IdentityTable) {
	if t.list != nil {
		t.list.put(key, id)
		return
	}
	if t.count*growFactor > len(t.keys) {
		if parent.nearFull(t.count) {
			parent.resize(len(parent.keys) * growFactor)
			parent.put(key, id, h, parent)
			return
		}
		t.resize(len(t.keys) * growFactor)
	}

	idx := t.index(h)
	for i := idx; i < idx+bucketSlots; i++ {
		k := t.keys[i]
		if k.ptr == nil {
			t.keys[i], t.vals[i] = key, id
			t.count++
			return
		}
		if k == key {
			t.vals[i] = id
			return
		}
	}

	if t.next == nil {
		t.next = t.child()
	}
	t.next.put(key, id, h, t)
}

func (t *IdentityTable) get(key Key, h int) int32 {
	if t.list != nil {
		return t.list.get(key)
	}
	idx := t.index(h)
	for i := idx; i < idx+bucketSlots; i++ {
		k := t.keys[i]
		if k.ptr == nil {
			return notFound
		}
		if k == key {
			return t.vals[i]
		}
	}
	if t.next == nil {
		return notFound
	}
	return t.next.get(key, h)
}

// nearFull reports whether the level would pass its load limit if it
// absorbed extra more entries.
func (t *IdentityTable) nearFull(extra int) bool {
	return (t.count+extra)*growFactor > len(t.keys)
}

// child creates the level below t.
func (t *IdentityTable) child() *IdentityTable {
	c := &IdentityTable{hash: t.hash, depth: t.depth + 1}
	if c.depth > maxDepth {
		c.list = &linearList{}
		return c
	}
	c.init(len(t.keys) / 10)
	return c
}

// resize reallocates the level and re-inserts its entries together with
// every entry of its child chain.
func (t *IdentityTable) resize(newSize int) {
	oldKeys, oldVals, oldNext := t.keys, t.vals, t.next
	t.alloc(adjustSize(newSize))
	t.next = nil
	for i, k := range oldKeys {
		if k.ptr != nil {
			t.put(k, oldVals[i], t.hashOf(k), t)
		}
	}
	if oldNext != nil {
		oldNext.rePut(t)
	}
}

func (t *IdentityTable) rePut(dst *IdentityTable) {
	if t.list != nil {
		for i, k := range t.list.keys {
			dst.put(k, t.list.vals[i], dst.hashOf(k), dst)
		}
		return
	}
	for i, k := range t.keys {
		if k.ptr != nil {
			dst.put(k, t.vals[i], dst.hashOf(k), dst)
		}
	}
	if t.next != nil {
		t.next.rePut(dst)
	}
}

// Size is the number of entries across the whole chain.
func (t *IdentityTable) Size() int {
	n := t.count
	if t.list != nil {
		n = len(t.list.keys)
	}
	if t.next != nil {
		n += t.next.Size()
	}
	return n
}

// Clear empties every level while keeping the allocated arrays.
func (t *IdentityTable) Clear() {
	if t.list != nil {
		t.list.reset()
	}
	if t.count > 0 {
		clearKeys(t.keys)
		clearVals(t.vals)
		t.count = 0
	}
	if t.next != nil {
		t.next.Clear()
	}
}

func (t *IdentityTable) Stats() Stats {
	var s Stats
	for l := t; l != nil; l = l.next {
		s.Levels++
		s.Capacity += len(l.keys)
		if l.list != nil {
			s.LinearEntries += len(l.list.keys)
		}
	}
	return s
}

func clearKeys(a []Key) {
	for len(a) > 0 {
		a = a[copy(a, zeroKeys[:]):]
	}
}

func clearVals(a []int32) {
	for len(a) > 0 {
		a = a[copy(a, zeroVals[:]):]
	}
}

// ---- linear scan ----

type linearList struct {
	keys []Key
	vals []int32
}

func (l *linearList) putOrGet(key Key, id int32) int32 {
	if v := l.get(key); v != notFound {
		return v
	}
	l.keys = append(l.keys, key)
	l.vals = append(l.vals, id)
	return notFound
}

func (l *linearList) put(key Key, id int32) {
	for i, k := range l.keys {
		if k == key {
			l.vals[i] = id
			return
		}
	}
	l.keys = append(l.keys, key)
	l.vals = append(l.vals, id)
}

func (l *linearList) get(key Key) int32 {
	for i, k := range l.keys {
		if k == key {
			return l.vals[i]
		}
	}
	return notFound
}

func (l *linearList) reset() {
	clearKeys(l.keys)
	l.keys = l.keys[:0]
	l.vals = l.vals[:0]
}
