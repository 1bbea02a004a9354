package pe

import (
	"encoding/binary"
	"fmt"
)

// RelocationRef is a view over one relocation record of a section.
type RelocationRef struct {
	f   *File
	off uint64 // file offset of the 10-byte record
}

// Record decodes the raw relocation.
func (r RelocationRef) Record() (*Relocation, error) {
	b, err := r.f.data.bytes(r.off, relocationSize)
	if err != nil {
		return nil, fmt.Errorf("重定位记录越界: %w", err)
	}
	return &Relocation{
		VirtualAddress:   binary.LittleEndian.Uint32(b),
		SymbolTableIndex: binary.LittleEndian.Uint32(b[4:]),
		Type:             binary.LittleEndian.Uint16(b[8:]),
	}, nil
}

// Offset returns the relocation's virtual address field.
func (r RelocationRef) Offset() (uint32, error) {
	rec, err := r.Record()
	if err != nil {
		return 0, err
	}
	return rec.VirtualAddress, nil
}

// Address is deliberately not provided; relocation addresses have no
// meaning before the image is laid out.
func (r RelocationRef) Address() (uint64, error) {
	return 0, fmt.Errorf("重定位address未提供: %w", ErrUnimplemented)
}

// Symbol returns the symbol the relocation references.
func (r RelocationRef) Symbol() (Symbol, error) {
	rec, err := r.Record()
	if err != nil {
		return Symbol{}, err
	}
	return r.f.SymbolAt(rec.SymbolTableIndex)
}

// ValueString returns the name of the referenced symbol, which is how
// relocations are conventionally displayed.
func (r RelocationRef) ValueString() (string, error) {
	sym, err := r.Symbol()
	if err != nil {
		return "", err
	}
	return sym.Name()
}

// TypeName maps the relocation type to its IMAGE_REL_* name. The mapping
// depends on the file's machine; unhandled machines and types yield
// "Unknown".
func (r RelocationRef) TypeName() (string, error) {
	rec, err := r.Record()
	if err != nil {
		return "", err
	}
	return relocationTypeName(r.f.coffHeader.Machine, rec.Type), nil
}

func relocationTypeName(machine uint16, typ uint16) string {
	switch machine {
	case IMAGE_FILE_MACHINE_AMD64:
		switch typ {
		case IMAGE_REL_AMD64_ABSOLUTE:
			return "IMAGE_REL_AMD64_ABSOLUTE"
		case IMAGE_REL_AMD64_ADDR64:
			return "IMAGE_REL_AMD64_ADDR64"
		case IMAGE_REL_AMD64_ADDR32:
			return "IMAGE_REL_AMD64_ADDR32"
		case IMAGE_REL_AMD64_ADDR32NB:
			return "IMAGE_REL_AMD64_ADDR32NB"
		case IMAGE_REL_AMD64_REL32:
			return "IMAGE_REL_AMD64_REL32"
		case IMAGE_REL_AMD64_REL32_1:
			return "IMAGE_REL_AMD64_REL32_1"
		case IMAGE_REL_AMD64_REL32_2:
			return "IMAGE_REL_AMD64_REL32_2"
		case IMAGE_REL_AMD64_REL32_3:
			return "IMAGE_REL_AMD64_REL32_3"
		case IMAGE_REL_AMD64_REL32_4:
			return "IMAGE_REL_AMD64_REL32_4"
		case IMAGE_REL_AMD64_REL32_5:
			return "IMAGE_REL_AMD64_REL32_5"
		case IMAGE_REL_AMD64_SECTION:
			return "IMAGE_REL_AMD64_SECTION"
		case IMAGE_REL_AMD64_SECREL:
			return "IMAGE_REL_AMD64_SECREL"
		case IMAGE_REL_AMD64_SECREL7:
			return "IMAGE_REL_AMD64_SECREL7"
		case IMAGE_REL_AMD64_TOKEN:
			return "IMAGE_REL_AMD64_TOKEN"
		case IMAGE_REL_AMD64_SREL32:
			return "IMAGE_REL_AMD64_SREL32"
		case IMAGE_REL_AMD64_PAIR:
			return "IMAGE_REL_AMD64_PAIR"
		case IMAGE_REL_AMD64_SSPAN32:
			return "IMAGE_REL_AMD64_SSPAN32"
		}
	case IMAGE_FILE_MACHINE_I386:
		switch typ {
		case IMAGE_REL_I386_ABSOLUTE:
			return "IMAGE_REL_I386_ABSOLUTE"
		case IMAGE_REL_I386_DIR16:
			return "IMAGE_REL_I386_DIR16"
		case IMAGE_REL_I386_REL16:
			return "IMAGE_REL_I386_REL16"
		case IMAGE_REL_I386_DIR32:
			return "IMAGE_REL_I386_DIR32"
		case IMAGE_REL_I386_DIR32NB:
			return "IMAGE_REL_I386_DIR32NB"
		case IMAGE_REL_I386_SEG12:
			return "IMAGE_REL_I386_SEG12"
		case IMAGE_REL_I386_SECTION:
			return "IMAGE_REL_I386_SECTION"
		case IMAGE_REL_I386_SECREL:
			return "IMAGE_REL_I386_SECREL"
		case IMAGE_REL_I386_TOKEN:
			return "IMAGE_REL_I386_TOKEN"
		case IMAGE_REL_I386_SECREL7:
			return "IMAGE_REL_I386_SECREL7"
		case IMAGE_REL_I386_REL32:
			return "IMAGE_REL_I386_REL32"
		}
	}
	return "Unknown"
}

// RelocationCursor iterates the relocations of a single section.
type RelocationCursor struct {
	f         *File
	off       uint64
	remaining uint16
}

// Relocations returns a cursor over the section's relocation records.
// Sections without relocations produce an empty cursor.
func (s Section) Relocations() *RelocationCursor {
	hdr := s.Header()
	if hdr.NumberOfRelocations == 0 {
		return &RelocationCursor{f: s.f}
	}
	return &RelocationCursor{
		f:         s.f,
		off:       uint64(hdr.PointerToRelocations),
		remaining: hdr.NumberOfRelocations,
	}
}

// Next returns the next relocation. ok is false when the section's records
// are exhausted.
func (c *RelocationCursor) Next() (RelocationRef, bool) {
	if c.remaining == 0 {
		return RelocationRef{}, false
	}
	r := RelocationRef{f: c.f, off: c.off}
	c.off += relocationSize
	c.remaining--
	return r, true
}
