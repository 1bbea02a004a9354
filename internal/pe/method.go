package pe

import "fmt"

// MethodBody describes an IL method body header.
type MethodBody struct {
	Fat       bool
	CodeSize  uint32
	TotalSize uint32 // header plus code
}

// IL method header sizes.
const (
	tinyMethodHeaderSize = 1
	fatMethodHeaderSize  = 12
)

// MethodSize probes the IL method body at the given file offset. The low two
// bits of the first byte select the header: 0b10 is a tiny header whose
// remaining six bits are the code size, 0b11 is a fat header carrying a
// 32-bit code size at offset 4. Any other pattern is malformed.
func (f *File) MethodSize(off uint64) (MethodBody, error) {
	h, err := f.data.u8(off)
	if err != nil {
		return MethodBody{}, fmt.Errorf("读取方法头失败: %w", err)
	}
	switch h & 0x3 {
	case 0x2:
		code := uint32(h >> 2)
		return MethodBody{
			CodeSize:  code,
			TotalSize: code + tinyMethodHeaderSize,
		}, nil
	case 0x3:
		code, err := f.data.u32(off + 4)
		if err != nil {
			return MethodBody{}, fmt.Errorf("读取fat方法头失败: %w", err)
		}
		return MethodBody{
			Fat:       true,
			CodeSize:  code,
			TotalSize: code + fatMethodHeaderSize,
		}, nil
	}
	return MethodBody{}, fmt.Errorf("方法头标志 0x%X 非法: %w", h, ErrParseFailed)
}
