package pe

import "encoding/binary"

// buffer is the immutable byte range every structure decodes from. All reads
// are bounds-checked and little-endian regardless of the host byte order.
type buffer []byte

// check reports whether [off, off+size) lies inside the buffer. The sum is
// guarded against wrap-around, so a hostile offset cannot pass the test.
func (b buffer) check(off, size uint64) error {
	end := off + size
	if end < off || end < size || end > uint64(len(b)) {
		return ErrUnexpectedEOF
	}
	return nil
}

func (b buffer) u8(off uint64) (uint8, error) {
	if err := b.check(off, 1); err != nil {
		return 0, err
	}
	return b[off], nil
}

func (b buffer) u16(off uint64) (uint16, error) {
	if err := b.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

func (b buffer) u32(off uint64) (uint32, error) {
	if err := b.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

func (b buffer) u64(off uint64) (uint64, error) {
	if err := b.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[off:]), nil
}

// bytes returns the sub-slice [off, off+size). The slice aliases the file
// buffer; callers must not modify it.
func (b buffer) bytes(off, size uint64) ([]byte, error) {
	if err := b.check(off, size); err != nil {
		return nil, err
	}
	return b[off : off+size : off+size], nil
}

// cstring reads a NUL-terminated string starting at off. A string running off
// the end of the buffer without a terminator is an EOF condition.
func (b buffer) cstring(off uint64) (string, error) {
	if err := b.check(off, 0); err != nil {
		return "", err
	}
	for i := off; i < uint64(len(b)); i++ {
		if b[i] == 0 {
			return string(b[off:i]), nil
		}
	}
	return "", ErrUnexpectedEOF
}
