package pe

import (
	"fmt"
	"math"
)

// RVAToOffset translates a relative virtual address into a file offset by
// scanning the section table. PE structures reference each other by RVA, so
// every directory reader funnels through here. The first section containing
// the address wins, in table order.
func (f *File) RVAToOffset(rva uint32) (uint64, error) {
	for i := range f.sections {
		s := &f.sections[i]
		if s.VirtualAddress <= rva && rva < s.VirtualAddress+s.VirtualSize {
			return uint64(s.PointerToRawData) + uint64(rva-s.VirtualAddress), nil
		}
	}
	return 0, fmt.Errorf("RVA 0x%X 不在任何节区内: %w", rva, ErrParseFailed)
}

// VAToOffset translates an absolute virtual address into a file offset by
// subtracting the image base and delegating to RVAToOffset.
func (f *File) VAToOffset(va uint64) (uint64, error) {
	rva := va - f.ImageBase()
	if rva > math.MaxUint32 {
		return 0, fmt.Errorf("VA 0x%X 超出镜像范围: %w", va, ErrParseFailed)
	}
	return f.RVAToOffset(uint32(rva))
}

// ImageBase returns the preferred load address from whichever optional header
// is present, or 0 for plain object files.
func (f *File) ImageBase() uint64 {
	switch {
	case f.opt32 != nil:
		return uint64(f.opt32.ImageBase)
	case f.opt64 != nil:
		return f.opt64.ImageBase
	}
	return 0
}
