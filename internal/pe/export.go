package pe

import "fmt"

// initExportDirectory locates and decodes the export directory named by the
// data directory. Absent or zero entries leave the file without exports.
func (f *File) initExportDirectory() error {
	dir := f.DataDirectoryEntry(IMAGE_DIRECTORY_ENTRY_EXPORT)
	if dir == nil || dir.VirtualAddress == 0 {
		return nil
	}
	off, err := f.RVAToOffset(dir.VirtualAddress)
	if err != nil {
		return fmt.Errorf("无法定位导出表: %w", err)
	}
	b, err := f.data.bytes(off, exportDirectorySize)
	if err != nil {
		return fmt.Errorf("读取导出目录失败: %w", err)
	}
	v := buffer(b)
	d := &ExportDirectory{}
	d.ExportFlags, _ = v.u32(0)
	d.TimeDateStamp, _ = v.u32(4)
	d.MajorVersion, _ = v.u16(8)
	d.MinorVersion, _ = v.u16(10)
	d.NameRVA, _ = v.u32(12)
	d.OrdinalBase, _ = v.u32(16)
	d.AddressTableEntries, _ = v.u32(20)
	d.NumberOfNamePointers, _ = v.u32(24)
	d.ExportAddressTableRVA, _ = v.u32(28)
	d.NamePointerRVA, _ = v.u32(32)
	d.OrdinalTableRVA, _ = v.u32(36)
	f.exportOff = off
	f.exportDir = d
	return nil
}

// ExportDirectoryTable returns the decoded export directory, or nil when the
// file exports nothing.
func (f *File) ExportDirectoryTable() *ExportDirectory {
	return f.exportDir
}

// ExportEntry is a view over one slot of the export address table.
type ExportEntry struct {
	f     *File
	index uint32
}

// Ordinal returns the export's ordinal: the ordinal base plus the address
// table index.
func (e ExportEntry) Ordinal() uint32 {
	return e.f.exportDir.OrdinalBase + e.index
}

// RVA returns the exported symbol's RVA from the export address table.
func (e ExportEntry) RVA() (uint32, error) {
	off, err := e.f.RVAToOffset(e.f.exportDir.ExportAddressTableRVA)
	if err != nil {
		return 0, err
	}
	return e.f.data.u32(off + uint64(e.index)*4)
}

// DLLName returns the exporting module's own name.
func (e ExportEntry) DLLName() (string, error) {
	off, err := e.f.RVAToOffset(e.f.exportDir.NameRVA)
	if err != nil {
		return "", err
	}
	return e.f.data.cstring(off)
}

// Name returns the export's name. The ordinal table is scanned for an entry
// equal to this index; its position selects the name pointer. Ordinal-only
// exports return the empty string.
func (e ExportEntry) Name() (string, error) {
	d := e.f.exportDir
	ordOff, err := e.f.RVAToOffset(d.OrdinalTableRVA)
	if err != nil {
		return "", err
	}
	for k := uint32(0); k < d.NumberOfNamePointers; k++ {
		ord, err := e.f.data.u16(ordOff + uint64(k)*2)
		if err != nil {
			return "", err
		}
		if uint32(ord) != e.index {
			continue
		}
		nameTabOff, err := e.f.RVAToOffset(d.NamePointerRVA)
		if err != nil {
			return "", err
		}
		nameRVA, err := e.f.data.u32(nameTabOff + uint64(k)*4)
		if err != nil {
			return "", err
		}
		nameOff, err := e.f.RVAToOffset(nameRVA)
		if err != nil {
			return "", err
		}
		return e.f.data.cstring(nameOff)
	}
	return "", nil
}

// ExportCursor iterates the export address table.
type ExportCursor struct {
	f     *File
	index uint32
}

// Exports returns a cursor over the export address table. Files without an
// export directory produce an empty cursor.
func (f *File) Exports() *ExportCursor {
	return &ExportCursor{f: f}
}

// Next returns the next export entry.
func (c *ExportCursor) Next() (ExportEntry, bool) {
	if c.f.exportDir == nil || c.index >= c.f.exportDir.AddressTableEntries {
		return ExportEntry{}, false
	}
	e := ExportEntry{f: c.f, index: c.index}
	c.index++
	return e, true
}
