package pe

import "fmt"

// initSymbolTable locates the symbol table and the string table that
// immediately follows it.
func (f *File) initSymbolTable() error {
	f.symTabOff = uint64(f.coffHeader.PointerToSymbolTable)
	symSize := uint64(f.coffHeader.NumberOfSymbols) * symbolRecordSize
	if err := f.data.check(f.symTabOff, symSize); err != nil {
		return fmt.Errorf("符号表越界: %w", err)
	}

	// The first four bytes of the string table hold its total size,
	// including the size field itself. An empty table stores 4.
	f.strTabOff = f.symTabOff + symSize
	size, err := f.data.u32(f.strTabOff)
	if err != nil {
		return fmt.Errorf("读取字符串表长度失败: %w", err)
	}
	if err := f.data.check(f.strTabOff, uint64(size)); err != nil {
		return fmt.Errorf("字符串表越界: %w", err)
	}

	// Some producers (cvtres) write 0 for an empty table instead of 4,
	// contrary to the PECOFF spec. Coerce small sizes to empty.
	if size < 4 {
		size = 4
	}
	f.strTabSize = size

	if size > 4 {
		end, err := f.data.u8(f.strTabOff + uint64(size) - 1)
		if err != nil {
			return err
		}
		if end != 0 {
			return fmt.Errorf("字符串表缺少NUL结尾: %w", ErrParseFailed)
		}
	}
	return nil
}

// String looks up a string-table entry by byte offset. Offsets inside the
// 4-byte length field are rejected, as is any lookup into an empty table.
func (f *File) String(offset uint32) (string, error) {
	if f.strTabSize <= 4 {
		return "", fmt.Errorf("字符串表为空: %w", ErrParseFailed)
	}
	if offset < 4 {
		return "", fmt.Errorf("字符串表偏移 %d 落在长度字段内: %w", offset, ErrParseFailed)
	}
	if offset >= f.strTabSize {
		return "", fmt.Errorf("字符串表偏移 %d 越界: %w", offset, ErrUnexpectedEOF)
	}
	return f.data.cstring(f.strTabOff + uint64(offset))
}
