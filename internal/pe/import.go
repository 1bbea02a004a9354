package pe

import (
	"encoding/binary"
	"fmt"
)

// initImportDirectory locates the import directory named by the data
// directory. Absent or zero entries leave the file without imports, which is
// not an error.
func (f *File) initImportDirectory() error {
	dir := f.DataDirectoryEntry(IMAGE_DIRECTORY_ENTRY_IMPORT)
	if dir == nil || dir.VirtualAddress == 0 {
		return nil
	}
	off, err := f.RVAToOffset(dir.VirtualAddress)
	if err != nil {
		return fmt.Errorf("无法定位导入表: %w", err)
	}
	f.importOff = off
	f.importCount = dir.Size / importDirEntrySize
	return nil
}

// ImportEntry is a view over one import directory entry.
type ImportEntry struct {
	f     *File
	entry ImportDirectoryEntry
}

// Entry returns the raw directory entry.
func (e ImportEntry) Entry() *ImportDirectoryEntry {
	entry := e.entry
	return &entry
}

// Name returns the imported DLL's name.
func (e ImportEntry) Name() (string, error) {
	off, err := e.f.RVAToOffset(e.entry.NameRVA)
	if err != nil {
		return "", fmt.Errorf("无法定位DLL名称: %w", err)
	}
	return e.f.data.cstring(off)
}

// ImportLookupEntry is one 32-bit import lookup table slot. Bit 31 selects
// import-by-ordinal; otherwise the value is the RVA of a hint/name pair.
type ImportLookupEntry uint32

// IsOrdinal reports whether the import is by ordinal.
func (e ImportLookupEntry) IsOrdinal() bool {
	return e&importOrdinalFlag != 0
}

// Ordinal returns the import ordinal. Meaningful only when IsOrdinal.
func (e ImportLookupEntry) Ordinal() uint16 {
	return uint16(e)
}

// HintNameRVA returns the RVA of the hint/name pair. Meaningful only when
// !IsOrdinal.
func (e ImportLookupEntry) HintNameRVA() uint32 {
	return uint32(e)
}

// LookupEntries walks the entry's import lookup table up to its zero
// terminator.
func (e ImportEntry) LookupEntries() ([]ImportLookupEntry, error) {
	off, err := e.f.RVAToOffset(e.entry.ImportLookupTableRVA)
	if err != nil {
		return nil, fmt.Errorf("无法定位导入查找表: %w", err)
	}
	var entries []ImportLookupEntry
	for {
		v, err := e.f.data.u32(off)
		if err != nil {
			return nil, fmt.Errorf("导入查找表越界: %w", err)
		}
		if v == 0 {
			return entries, nil
		}
		entries = append(entries, ImportLookupEntry(v))
		off += 4
	}
}

// HintName reads the (hint, name) pair an import lookup entry points at.
func (f *File) HintName(rva uint32) (uint16, string, error) {
	off, err := f.RVAToOffset(rva)
	if err != nil {
		return 0, "", err
	}
	hint, err := f.data.u16(off)
	if err != nil {
		return 0, "", err
	}
	name, err := f.data.cstring(off + 2)
	if err != nil {
		return 0, "", err
	}
	return hint, name, nil
}

// ImportCursor iterates import directory entries up to the all-zero
// terminator (or the count implied by the data directory size, whichever
// comes first).
type ImportCursor struct {
	f     *File
	index uint32
}

// Imports returns a cursor over the import directory. Files without one
// produce an empty cursor.
func (f *File) Imports() *ImportCursor {
	return &ImportCursor{f: f}
}

// Next returns the next import directory entry.
func (c *ImportCursor) Next() (ImportEntry, bool) {
	if c.f.importOff == 0 || c.index >= c.f.importCount {
		return ImportEntry{}, false
	}
	off := c.f.importOff + uint64(c.index)*importDirEntrySize
	b, err := c.f.data.bytes(off, importDirEntrySize)
	if err != nil {
		return ImportEntry{}, false
	}
	entry := ImportDirectoryEntry{
		ImportLookupTableRVA:  binary.LittleEndian.Uint32(b),
		TimeDateStamp:         binary.LittleEndian.Uint32(b[4:]),
		ForwarderChain:        binary.LittleEndian.Uint32(b[8:]),
		NameRVA:               binary.LittleEndian.Uint32(b[12:]),
		ImportAddressTableRVA: binary.LittleEndian.Uint32(b[16:]),
	}
	if entry.isZero() {
		return ImportEntry{}, false
	}
	c.index++
	return ImportEntry{f: c.f, entry: entry}, true
}
