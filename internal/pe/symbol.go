package pe

import (
	"encoding/binary"
	"fmt"
)

// UnknownAddressOrSize is returned for queries that have no meaningful
// answer, such as the address of an undefined symbol.
const UnknownAddressOrSize = ^uint64(0)

// SymbolType classifies a symbol for generic object-file consumers.
type SymbolType int

const (
	SymbolTypeUnknown SymbolType = iota
	SymbolTypeFunction
	SymbolTypeData
	SymbolTypeOther
)

// SymbolFlags is a bitmap of generic symbol properties.
type SymbolFlags uint32

const (
	SymbolFlagUndefined SymbolFlags = 1 << iota
	SymbolFlagCommon
	SymbolFlagGlobal
	SymbolFlagWeak
	SymbolFlagAbsolute
)

// Symbol is a view over one symbol table record, identified by its raw table
// index. Auxiliary records occupy indices of their own, so consecutive
// symbols differ by 1+aux.
type Symbol struct {
	f     *File
	index uint32
}

// SymbolAt returns the symbol at the given raw table index. Relocations
// reference symbols this way.
func (f *File) SymbolAt(index uint32) (Symbol, error) {
	if f.symTabOff == 0 || index >= f.coffHeader.NumberOfSymbols {
		return Symbol{}, fmt.Errorf("符号索引 %d 越界: %w", index, ErrParseFailed)
	}
	return Symbol{f: f, index: index}, nil
}

// Record decodes the raw 18-byte symbol record. The table range was verified
// at construction, so the read cannot fail.
func (s Symbol) Record() *SymbolRecord {
	off := s.f.symTabOff + uint64(s.index)*symbolRecordSize
	b := s.f.data[off : off+symbolRecordSize]
	r := &SymbolRecord{
		Value:              binary.LittleEndian.Uint32(b[8:]),
		SectionNumber:      int16(binary.LittleEndian.Uint16(b[12:])),
		Type:               binary.LittleEndian.Uint16(b[14:]),
		StorageClass:       b[16],
		NumberOfAuxSymbols: b[17],
	}
	copy(r.Name[:], b[:8])
	return r
}

// Name resolves the symbol name. Short names are stored inline in the 8-byte
// field; long names store zero in the first four bytes and a string-table
// offset in the next four.
func (s Symbol) Name() (string, error) {
	rec := s.Record()
	if binary.LittleEndian.Uint32(rec.Name[:4]) == 0 {
		offset := binary.LittleEndian.Uint32(rec.Name[4:])
		return s.f.String(offset)
	}
	if rec.Name[7] == 0 {
		return cstr(rec.Name[:]), nil
	}
	// Not NUL-terminated, the name uses all 8 bytes.
	return string(rec.Name[:]), nil
}

// Address returns the symbol's RVA, UnknownAddressOrSize for undefined
// symbols, or the raw value for absolute/debug symbols.
func (s Symbol) Address() (uint64, error) {
	rec := s.Record()
	sec, err := s.f.Section(rec.SectionNumber)
	if err != nil {
		return 0, err
	}
	switch {
	case rec.SectionNumber == IMAGE_SYM_UNDEFINED:
		return UnknownAddressOrSize, nil
	case sec != nil:
		return uint64(sec.Header().VirtualAddress) + uint64(rec.Value), nil
	}
	return uint64(rec.Value), nil
}

// FileOffset is the file-offset analogue of Address.
func (s Symbol) FileOffset() (uint64, error) {
	rec := s.Record()
	sec, err := s.f.Section(rec.SectionNumber)
	if err != nil {
		return 0, err
	}
	switch {
	case rec.SectionNumber == IMAGE_SYM_UNDEFINED:
		return UnknownAddressOrSize, nil
	case sec != nil:
		return uint64(sec.Header().PointerToRawData) + uint64(rec.Value), nil
	}
	return uint64(rec.Value), nil
}

// Type classifies the symbol. External undefined symbols are unknown;
// function-typed symbols are functions; symbols resident in readable,
// non-writable sections count as data.
func (s Symbol) Type() (SymbolType, error) {
	rec := s.Record()
	if rec.StorageClass == IMAGE_SYM_CLASS_EXTERNAL &&
		rec.SectionNumber == IMAGE_SYM_UNDEFINED {
		return SymbolTypeUnknown, nil
	}
	if rec.ComplexType() == IMAGE_SYM_DTYPE_FUNCTION {
		return SymbolTypeFunction, nil
	}
	var characteristics uint32
	if rec.SectionNumber > 0 {
		sec, err := s.f.Section(rec.SectionNumber)
		if err != nil {
			return SymbolTypeOther, err
		}
		characteristics = sec.Header().Characteristics
	}
	if characteristics&IMAGE_SCN_MEM_READ != 0 &&
		characteristics&IMAGE_SCN_MEM_WRITE == 0 {
		return SymbolTypeData, nil
	}
	return SymbolTypeOther, nil
}

// Flags returns the generic property bitmap of the symbol.
func (s Symbol) Flags() SymbolFlags {
	rec := s.Record()
	var flags SymbolFlags

	if rec.SectionNumber == IMAGE_SYM_UNDEFINED {
		if rec.Value == 0 {
			flags |= SymbolFlagUndefined
		} else {
			flags |= SymbolFlagCommon
		}
	}
	if rec.StorageClass == IMAGE_SYM_CLASS_EXTERNAL {
		flags |= SymbolFlagGlobal
	}
	if rec.StorageClass == IMAGE_SYM_CLASS_WEAK_EXTERNAL {
		flags |= SymbolFlagWeak
	}
	if rec.SectionNumber == IMAGE_SYM_ABSOLUTE {
		flags |= SymbolFlagAbsolute
	}
	return flags
}

// Size reports the symbol's size as the distance from its value to the end of
// its section. This over-approximates: the true size would need the next
// symbol in the same section.
func (s Symbol) Size() (uint64, error) {
	rec := s.Record()
	sec, err := s.f.Section(rec.SectionNumber)
	if err != nil {
		return 0, err
	}
	switch {
	case rec.SectionNumber == IMAGE_SYM_UNDEFINED:
		return UnknownAddressOrSize, nil
	case sec != nil:
		return uint64(sec.Header().SizeOfRawData) - uint64(rec.Value), nil
	}
	return 0, nil
}

// Value is deliberately not provided for COFF symbols.
func (s Symbol) Value() (uint64, error) {
	return 0, fmt.Errorf("COFF符号value未提供: %w", ErrUnimplemented)
}

// Section returns the section the symbol is defined in, or nil for the
// undefined/absolute/debug sentinels.
func (s Symbol) Section() (*Section, error) {
	return s.f.Section(s.Record().SectionNumber)
}

// AuxData returns the raw bytes of the symbol's auxiliary records.
func (s Symbol) AuxData() []byte {
	rec := s.Record()
	if rec.NumberOfAuxSymbols == 0 {
		return nil
	}
	off := s.f.symTabOff + uint64(s.index+1)*symbolRecordSize
	size := uint64(rec.NumberOfAuxSymbols) * symbolRecordSize
	b, err := s.f.data.bytes(off, size)
	if err != nil {
		return nil
	}
	return b
}

// SymbolCursor iterates the symbol table, stepping over auxiliary records.
type SymbolCursor struct {
	f    *File
	next uint32
}

// Symbols returns a cursor over all symbols. Files without a symbol table
// produce an empty cursor.
func (f *File) Symbols() *SymbolCursor {
	return &SymbolCursor{f: f}
}

// Next returns the next symbol. The stride is 1 plus the record's auxiliary
// count, which keeps the cursor aligned on primary records.
func (c *SymbolCursor) Next() (Symbol, bool) {
	if c.f.symTabOff == 0 || c.next >= c.f.coffHeader.NumberOfSymbols {
		return Symbol{}, false
	}
	s := Symbol{f: c.f, index: c.next}
	c.next += 1 + uint32(s.Record().NumberOfAuxSymbols)
	return s, true
}
