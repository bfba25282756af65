package row

import (
	"fmt"

	"github.com/tuannm99/novarow/internal/memory"
)

// region is a bounds-checked window of a buffer shared by the readers.
type region struct {
	buf  *memory.Buffer
	base int
	size int
}

func (r *region) point(buf *memory.Buffer, offset, size int) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrBounds)
	}
	if offset < 0 || size < 0 || offset+size > buf.Len() {
		return fmt.Errorf("%w: region [%d, %d) outside buffer of %d bytes", ErrBounds, offset, offset+size, buf.Len())
	}
	r.buf, r.base, r.size = buf, offset, size
	return nil
}

// locate decodes the offset+size word stored at abs.
func (r *region) locate(abs int) (int, int, error) {
	word := r.buf.GetInt64(abs)
	rel, n := int(int32(word>>32)), int(int32(word))
	if rel < 0 || n < 0 || rel+n > r.size {
		return 0, 0, fmt.Errorf("%w: value at +%d of %d bytes overflows region of %d bytes", ErrBounds, rel, n, r.size)
	}
	return r.base + rel, n, nil
}

func (r *region) Buffer() *memory.Buffer { return r.buf }
func (r *region) BaseOffset() int        { return r.base }
func (r *region) SizeInBytes() int       { return r.size }

// ToBytes copies the region out of the buffer.
func (r *region) ToBytes() []byte { return r.buf.CopyBytes(r.base, r.size) }
