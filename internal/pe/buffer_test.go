package pe

import (
	"errors"
	"testing"
)

func TestBufferReads(t *testing.T) {
	b := buffer{0x78, 0x56, 0x34, 0x12, 0xEF, 0xCD, 0xAB, 0x89}

	if v, err := b.u8(0); err != nil || v != 0x78 {
		t.Errorf("u8(0) = %#x, %v", v, err)
	}
	if v, err := b.u16(0); err != nil || v != 0x5678 {
		t.Errorf("u16(0) = %#x, %v", v, err)
	}
	if v, err := b.u32(0); err != nil || v != 0x12345678 {
		t.Errorf("u32(0) = %#x, %v", v, err)
	}
	if v, err := b.u64(0); err != nil || v != 0x89ABCDEF12345678 {
		t.Errorf("u64(0) = %#x, %v", v, err)
	}
}

func TestBufferBounds(t *testing.T) {
	b := buffer{1, 2, 3, 4}

	tests := []struct {
		name string
		err  error
	}{
		{"u32 at end", func() error { _, err := b.u32(1); return err }()},
		{"u16 past end", func() error { _, err := b.u16(4); return err }()},
		{"u64 on short buffer", func() error { _, err := b.u64(0); return err }()},
		{"bytes past end", func() error { _, err := b.bytes(2, 3); return err }()},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, ErrUnexpectedEOF) {
			t.Errorf("%s: got %v, want ErrUnexpectedEOF", tt.name, tt.err)
		}
	}

	if v, err := b.u32(0); err != nil || v != 0x04030201 {
		t.Errorf("u32(0) = %#x, %v", v, err)
	}
}

func TestBufferOverflowGuard(t *testing.T) {
	b := buffer{1, 2, 3, 4}

	// An offset near the top of the address space must not wrap past the
	// bounds check.
	if err := b.check(^uint64(0)-1, 8); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("check(max-1, 8) = %v, want ErrUnexpectedEOF", err)
	}
	if err := b.check(^uint64(0), ^uint64(0)); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("check(max, max) = %v, want ErrUnexpectedEOF", err)
	}
}

func TestBufferCString(t *testing.T) {
	b := buffer("hello\x00world")

	s, err := b.cstring(0)
	if err != nil || s != "hello" {
		t.Errorf("cstring(0) = %q, %v", s, err)
	}

	// "world" runs off the end of the buffer without a terminator.
	if _, err := b.cstring(6); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("cstring(6) = %v, want ErrUnexpectedEOF", err)
	}

	// Empty string right at the terminator.
	s, err = b.cstring(5)
	if err != nil || s != "" {
		t.Errorf("cstring(5) = %q, %v", s, err)
	}
}
