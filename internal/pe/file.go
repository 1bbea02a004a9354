// Package pe implements a read-only parser for PE/COFF images, object files
// and import libraries, including the CLR metadata carried by .NET
// assemblies. All structures are typed views into the caller's byte buffer;
// nothing is copied beyond small decoded headers and nothing is ever written
// back.
package pe

import (
	"fmt"
	"os"
)

// File is the parsed root of a PE/COFF buffer. It is immutable after Open
// and safe for concurrent readers.
type File struct {
	data buffer

	hasPEHeader bool
	coffHeader  FileHeader
	opt32       *OptionalHeader32
	opt64       *OptionalHeader64
	dataDirs    []DataDirectory

	sections []SectionHeader

	symTabOff  uint64 // PointerToSymbolTable, 0 when absent
	strTabOff  uint64 // first byte of the string table
	strTabSize uint32 // includes the 4-byte length field, coerced to >= 4

	importOff   uint64 // file offset of the import directory, 0 when absent
	importCount uint32 // upper bound from the data directory size

	exportOff uint64 // file offset of the export directory, 0 when absent
	exportDir *ExportDirectory

	clrHeader *CLRHeader
	clrMeta   *CLRMetadata
	clrErr    error // metadata decode failure, surfaced on access
}

// Open parses the given buffer as a PE/COFF image, object file, or import
// library. The buffer must stay alive and unmodified for as long as the File
// is used; the File holds views into it.
func Open(data []byte) (*File, error) {
	f := &File{data: data}

	if err := f.data.check(0, fileHeaderSize); err != nil {
		return nil, fmt.Errorf("文件太小, 连COFF头都放不下: %w", err)
	}

	// The current decode position inside the file.
	var cur uint64

	// Executables start with the MS-DOS stub; object files go straight to
	// the COFF header. "MZ" decides which shape we have.
	if f.data[0] == 'M' && f.data[1] == 'Z' {
		if err := f.data.check(0, 0x3C+8); err != nil {
			return nil, fmt.Errorf("DOS头不完整: %w", err)
		}
		peOff, err := f.data.u32(0x3C)
		if err != nil {
			return nil, err
		}
		cur = uint64(peOff)
		sig, err := f.data.bytes(cur, 4)
		if err != nil {
			return nil, fmt.Errorf("读取PE签名失败: %w", err)
		}
		if sig[0] != 'P' || sig[1] != 'E' || sig[2] != 0 || sig[3] != 0 {
			return nil, fmt.Errorf("PE签名错误: %w", ErrParseFailed)
		}
		cur += 4
		f.hasPEHeader = true
	}

	if err := f.readFileHeader(cur); err != nil {
		return nil, err
	}
	cur += fileHeaderSize

	if f.hasPEHeader {
		if err := f.readOptionalHeader(cur); err != nil {
			return nil, err
		}
		// SizeOfOptionalHeader may exceed the fixed layout; the surplus
		// is padding between the data directory and the section table.
		cur += uint64(f.coffHeader.SizeOfOptionalHeader)
	}

	// Import libraries carry no section table, symbols or directories.
	if f.coffHeader.IsImportLibrary() {
		return f, nil
	}

	if err := f.readSectionTable(cur); err != nil {
		return nil, err
	}

	if f.coffHeader.PointerToSymbolTable != 0 {
		if err := f.initSymbolTable(); err != nil {
			return nil, err
		}
	}

	if err := f.initImportDirectory(); err != nil {
		return nil, err
	}
	if err := f.initExportDirectory(); err != nil {
		return nil, err
	}
	if err := f.initCLR(); err != nil {
		return nil, err
	}

	return f, nil
}

// OpenFile reads path into memory and parses it.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return Open(data)
}

func (f *File) readFileHeader(off uint64) error {
	b, err := f.data.bytes(off, fileHeaderSize)
	if err != nil {
		return fmt.Errorf("读取COFF文件头失败: %w", err)
	}
	v := buffer(b)
	f.coffHeader.Machine, _ = v.u16(0)
	f.coffHeader.NumberOfSections, _ = v.u16(2)
	f.coffHeader.TimeDateStamp, _ = v.u32(4)
	f.coffHeader.PointerToSymbolTable, _ = v.u32(8)
	f.coffHeader.NumberOfSymbols, _ = v.u32(12)
	f.coffHeader.SizeOfOptionalHeader, _ = v.u16(16)
	f.coffHeader.Characteristics, _ = v.u16(18)
	return nil
}

func (f *File) readOptionalHeader(off uint64) error {
	magic, err := f.data.u16(off)
	if err != nil {
		return fmt.Errorf("读取可选头失败: %w", err)
	}

	var dirOff uint64
	var dirCount uint32
	switch magic {
	case PE32Magic:
		opt, err := f.readOptionalHeader32(off)
		if err != nil {
			return err
		}
		f.opt32 = opt
		dirOff = off + optionalHeader32Size
		dirCount = opt.NumberOfRvaAndSize
	case PE32PlusMagic:
		opt, err := f.readOptionalHeader64(off)
		if err != nil {
			return err
		}
		f.opt64 = opt
		dirOff = off + optionalHeader64Size
		dirCount = opt.NumberOfRvaAndSize
	default:
		return fmt.Errorf("可选头magic未知 0x%X: %w", magic, ErrParseFailed)
	}

	return f.readDataDirectories(dirOff, dirCount)
}

func (f *File) readOptionalHeader32(off uint64) (*OptionalHeader32, error) {
	b, err := f.data.bytes(off, optionalHeader32Size)
	if err != nil {
		return nil, fmt.Errorf("读取PE32可选头失败: %w", err)
	}
	v := buffer(b)
	h := &OptionalHeader32{}
	h.Magic, _ = v.u16(0)
	h.MajorLinkerVersion, _ = v.u8(2)
	h.MinorLinkerVersion, _ = v.u8(3)
	h.SizeOfCode, _ = v.u32(4)
	h.SizeOfInitializedData, _ = v.u32(8)
	h.SizeOfUninitializedData, _ = v.u32(12)
	h.AddressOfEntryPoint, _ = v.u32(16)
	h.BaseOfCode, _ = v.u32(20)
	h.BaseOfData, _ = v.u32(24)
	h.ImageBase, _ = v.u32(28)
	h.SectionAlignment, _ = v.u32(32)
	h.FileAlignment, _ = v.u32(36)
	h.MajorOperatingSystemVersion, _ = v.u16(40)
	h.MinorOperatingSystemVersion, _ = v.u16(42)
	h.MajorImageVersion, _ = v.u16(44)
	h.MinorImageVersion, _ = v.u16(46)
	h.MajorSubsystemVersion, _ = v.u16(48)
	h.MinorSubsystemVersion, _ = v.u16(50)
	h.Win32VersionValue, _ = v.u32(52)
	h.SizeOfImage, _ = v.u32(56)
	h.SizeOfHeaders, _ = v.u32(60)
	h.CheckSum, _ = v.u32(64)
	h.Subsystem, _ = v.u16(68)
	h.DLLCharacteristics, _ = v.u16(70)
	h.SizeOfStackReserve, _ = v.u32(72)
	h.SizeOfStackCommit, _ = v.u32(76)
	h.SizeOfHeapReserve, _ = v.u32(80)
	h.SizeOfHeapCommit, _ = v.u32(84)
	h.LoaderFlags, _ = v.u32(88)
	h.NumberOfRvaAndSize, _ = v.u32(92)
	return h, nil
}

func (f *File) readOptionalHeader64(off uint64) (*OptionalHeader64, error) {
	b, err := f.data.bytes(off, optionalHeader64Size)
	if err != nil {
		return nil, fmt.Errorf("读取PE32+可选头失败: %w", err)
	}
	v := buffer(b)
	h := &OptionalHeader64{}
	h.Magic, _ = v.u16(0)
	h.MajorLinkerVersion, _ = v.u8(2)
	h.MinorLinkerVersion, _ = v.u8(3)
	h.SizeOfCode, _ = v.u32(4)
	h.SizeOfInitializedData, _ = v.u32(8)
	h.SizeOfUninitializedData, _ = v.u32(12)
	h.AddressOfEntryPoint, _ = v.u32(16)
	h.BaseOfCode, _ = v.u32(20)
	h.ImageBase, _ = v.u64(24)
	h.SectionAlignment, _ = v.u32(32)
	h.FileAlignment, _ = v.u32(36)
	h.MajorOperatingSystemVersion, _ = v.u16(40)
	h.MinorOperatingSystemVersion, _ = v.u16(42)
	h.MajorImageVersion, _ = v.u16(44)
	h.MinorImageVersion, _ = v.u16(46)
	h.MajorSubsystemVersion, _ = v.u16(48)
	h.MinorSubsystemVersion, _ = v.u16(50)
	h.Win32VersionValue, _ = v.u32(52)
	h.SizeOfImage, _ = v.u32(56)
	h.SizeOfHeaders, _ = v.u32(60)
	h.CheckSum, _ = v.u32(64)
	h.Subsystem, _ = v.u16(68)
	h.DLLCharacteristics, _ = v.u16(70)
	h.SizeOfStackReserve, _ = v.u64(72)
	h.SizeOfStackCommit, _ = v.u64(80)
	h.SizeOfHeapReserve, _ = v.u64(88)
	h.SizeOfHeapCommit, _ = v.u64(96)
	h.LoaderFlags, _ = v.u32(104)
	h.NumberOfRvaAndSize, _ = v.u32(108)
	return h, nil
}

func (f *File) readDataDirectories(off uint64, count uint32) error {
	b, err := f.data.bytes(off, uint64(count)*dataDirectorySize)
	if err != nil {
		return fmt.Errorf("读取数据目录失败: %w", err)
	}
	v := buffer(b)
	f.dataDirs = make([]DataDirectory, count)
	for i := range f.dataDirs {
		f.dataDirs[i].VirtualAddress, _ = v.u32(uint64(i) * dataDirectorySize)
		f.dataDirs[i].Size, _ = v.u32(uint64(i)*dataDirectorySize + 4)
	}
	return nil
}

func (f *File) readSectionTable(off uint64) error {
	count := uint64(f.coffHeader.NumberOfSections)
	b, err := f.data.bytes(off, count*sectionHeaderSize)
	if err != nil {
		return fmt.Errorf("读取节区表失败: %w", err)
	}
	v := buffer(b)
	f.sections = make([]SectionHeader, count)
	for i := range f.sections {
		base := uint64(i) * sectionHeaderSize
		s := &f.sections[i]
		copy(s.Name[:], b[base:base+8])
		s.VirtualSize, _ = v.u32(base + 8)
		s.VirtualAddress, _ = v.u32(base + 12)
		s.SizeOfRawData, _ = v.u32(base + 16)
		s.PointerToRawData, _ = v.u32(base + 20)
		s.PointerToRelocations, _ = v.u32(base + 24)
		s.PointerToLinenumbers, _ = v.u32(base + 28)
		s.NumberOfRelocations, _ = v.u16(base + 32)
		s.NumberOfLinenumbers, _ = v.u16(base + 34)
		s.Characteristics, _ = v.u32(base + 36)
	}
	return nil
}

// CoffHeader returns the COFF file header.
func (f *File) CoffHeader() *FileHeader {
	return &f.coffHeader
}

// PE32Header returns the PE32 optional header, or nil for PE32+ images and
// plain object files.
func (f *File) PE32Header() *OptionalHeader32 {
	return f.opt32
}

// PE32PlusHeader returns the PE32+ optional header, or nil.
func (f *File) PE32PlusHeader() *OptionalHeader64 {
	return f.opt64
}

// DataDirectoryEntry returns the index'th data directory entry, or nil when
// the image has no data directory or the index is out of range.
func (f *File) DataDirectoryEntry(index int) *DataDirectory {
	if f.dataDirs == nil || index < 0 || index >= len(f.dataDirs) {
		return nil
	}
	return &f.dataDirs[index]
}

// NumSections returns the number of section table entries. Import libraries
// report zero.
func (f *File) NumSections() int {
	return len(f.sections)
}

// LoadName returns the image's load name. COFF has no such field.
func (f *File) LoadName() string {
	return ""
}

// NeededLibraries is deliberately not provided for COFF.
func (f *File) NeededLibraries() ([]string, error) {
	return nil, fmt.Errorf("COFF依赖库枚举未提供: %w", ErrUnimplemented)
}
