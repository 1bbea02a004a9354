package pe

import "encoding/binary"

// blob is a growable byte image with write-at-offset helpers for building
// synthetic test files.
type blob []byte

func (b *blob) ensure(n int) {
	if n > len(*b) {
		*b = append(*b, make([]byte, n-len(*b))...)
	}
}

func (b *blob) put(off int, p []byte) {
	b.ensure(off + len(p))
	copy((*b)[off:], p)
}

func (b *blob) put16(off int, v uint16) {
	b.ensure(off + 2)
	binary.LittleEndian.PutUint16((*b)[off:], v)
}

func (b *blob) put32(off int, v uint32) {
	b.ensure(off + 4)
	binary.LittleEndian.PutUint32((*b)[off:], v)
}

func (b *blob) put64(off int, v uint64) {
	b.ensure(off + 8)
	binary.LittleEndian.PutUint64((*b)[off:], v)
}

// Fixed layout of the synthetic PE32 image built by newPE32:
//
//	0x000 DOS header ("MZ", e_lfanew = 0x80)
//	0x080 "PE\0\0"
//	0x084 COFF file header
//	0x098 PE32 optional header (96 bytes, 16 data directories)
//	0x0F8 data directory array
//	0x178 section table (one .text entry)
//	0x200 .text raw data
const (
	testPESigOff  = 0x80
	testCoffOff   = 0x84
	testOptOff    = 0x98
	testDirsOff   = 0xF8
	testSecTabOff = 0x178
	testRawOff    = 0x200

	testTextVA = 0x1000
)

// testDirOff returns the file offset of data directory entry i.
func testDirOff(i int) int {
	return testDirsOff + i*dataDirectorySize
}

// testRVA maps a file offset inside the .text raw data to its RVA.
func testRVA(fileOff int) uint32 {
	return testTextVA + uint32(fileOff-testRawOff)
}

// newPE32 builds a minimal PE32 image with one .text section mapped at RVA
// 0x1000. rawSize bytes of section data start at file offset 0x200; data
// directory entries are zero until the caller patches them.
func newPE32(machine uint16, rawSize uint32) blob {
	var b blob
	b.put(0, []byte("MZ"))
	b.put32(0x3C, testPESigOff)
	b.put(testPESigOff, []byte("PE\x00\x00"))

	// COFF file header.
	b.put16(testCoffOff, machine)
	b.put16(testCoffOff+2, 1) // NumberOfSections
	b.put16(testCoffOff+16, optionalHeader32Size+16*dataDirectorySize)

	// PE32 optional header.
	b.put16(testOptOff, PE32Magic)
	b.put32(testOptOff+28, 0x400000) // ImageBase
	b.put32(testOptOff+92, 16)       // NumberOfRvaAndSize

	// Section table: .text
	b.put(testSecTabOff, []byte(".text\x00\x00\x00"))
	b.put32(testSecTabOff+8, rawSize)     // VirtualSize
	b.put32(testSecTabOff+12, testTextVA) // VirtualAddress
	b.put32(testSecTabOff+16, rawSize)    // SizeOfRawData
	b.put32(testSecTabOff+20, testRawOff) // PointerToRawData
	b.put32(testSecTabOff+36, IMAGE_SCN_CNT_CODE|IMAGE_SCN_MEM_READ|IMAGE_SCN_MEM_EXECUTE)

	b.ensure(testRawOff + int(rawSize))
	return b
}

// objSection describes one section of a synthetic COFF object file.
type objSection struct {
	name            [8]byte
	characteristics uint32
	data            []byte
	relocs          []Relocation
}

// newObject builds a COFF object file (no DOS stub, no optional header).
// Section raw data and relocations are laid out after the section table, the
// symbol table blob after that. nsyms counts records including auxiliaries.
func newObject(machine uint16, secs []objSection, symtab []byte, nsyms uint32) blob {
	var b blob
	b.put16(0, machine)
	b.put16(2, uint16(len(secs)))

	cur := fileHeaderSize + len(secs)*sectionHeaderSize
	for i, s := range secs {
		base := fileHeaderSize + i*sectionHeaderSize
		b.put(base, s.name[:])
		b.put32(base+8, uint32(len(s.data)))  // VirtualSize
		b.put32(base+12, uint32(0x1000*(i+1))) // VirtualAddress
		b.put32(base+16, uint32(len(s.data))) // SizeOfRawData
		b.put32(base+20, uint32(cur))         // PointerToRawData
		b.put(cur, s.data)
		cur += len(s.data)

		if len(s.relocs) > 0 {
			b.put32(base+24, uint32(cur)) // PointerToRelocations
			b.put16(base+32, uint16(len(s.relocs)))
			for _, r := range s.relocs {
				b.put32(cur, r.VirtualAddress)
				b.put32(cur+4, r.SymbolTableIndex)
				b.put16(cur+8, r.Type)
				cur += relocationSize
			}
		}
		b.put32(base+36, s.characteristics)
	}

	if symtab != nil {
		b.put32(8, uint32(cur)) // PointerToSymbolTable
		b.put32(12, nsyms)
		b.put(cur, symtab)
	}
	return b
}

// symRecord appends one raw 18-byte symbol record to the blob.
func symRecord(b *blob, index int, name [8]byte, value uint32, section int16, typ uint16, class, aux uint8) {
	base := index * symbolRecordSize
	b.put(base, name[:])
	b.put32(base+8, value)
	b.put16(base+12, uint16(section))
	b.put16(base+14, typ)
	b.put(base+16, []byte{class, aux})
}

func name8(s string) [8]byte {
	var n [8]byte
	copy(n[:], s)
	return n
}
