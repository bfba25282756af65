package row

import "github.com/tuannm99/novarow/internal/memory"

// BitmapWidth is the null bitmap size in bytes for n fields, rounded up to
// whole 64-bit words.
func BitmapWidth(n int) int {
	return ((n + 63) / 64) * 8
}

func setBit(b *memory.Buffer, base, i int) {
	off := base + i>>3
	b.PutByte(off, b.GetByte(off)|1<<(i&7))
}

func unsetBit(b *memory.Buffer, base, i int) {
	off := base + i>>3
	b.PutByte(off, b.GetByte(off)&^(1<<(i&7)))
}

func isSet(b *memory.Buffer, base, i int) bool {
	return b.GetByte(base+i>>3)&(1<<(i&7)) != 0
}

func anySet(b *memory.Buffer, base, width int) bool {
	for off := base; off < base+width; off += 8 {
		if b.GetInt64(off) != 0 {
			return true
		}
	}
	return false
}
