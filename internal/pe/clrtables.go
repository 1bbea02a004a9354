package pe

import (
	"fmt"
	"math/bits"
)

// Metadata table ids (ECMA-335 II.22). The decoder materializes the tables
// below; all other ids are rejected when their Valid bit is set.
//
// TODO: extend the row schema to the full 38-table ECMA-335 set, including
// 4-byte heap indices under HeapSizes and dynamic coded-index widths.
const (
	TableModule        = 0x00
	TableTypeRef       = 0x01
	TableTypeDef       = 0x02
	TableMethodDef     = 0x06
	TableMemberRef     = 0x0A
	TableStandAloneSig = 0x11
	TableAssemblyRef   = 0x23
)

// Heap-size flag bits: a set bit widens the heap index from 2 to 4 bytes.
const (
	HeapSizeStrings = 1 << 0
	HeapSizeGUID    = 1 << 1
	HeapSizeBlob    = 1 << 2
)

// ModuleRow is a Module table row (0x00).
type ModuleRow struct {
	Generation uint16
	Name       uint16
	Mvid       uint16
	EncID      uint16
	EncBaseID  uint16
}

// TypeRefRow is a TypeRef table row (0x01).
type TypeRefRow struct {
	ResolutionScope uint16
	TypeName        uint16
	TypeNamespace   uint16
}

// TypeDefRow is a TypeDef table row (0x02).
type TypeDefRow struct {
	Flags         uint32
	TypeName      uint16
	TypeNamespace uint16
	Extends       uint16
	FieldList     uint16
	MethodList    uint16
}

// MethodDefRow is a MethodDef table row (0x06).
type MethodDefRow struct {
	RVA       uint32
	ImplFlags uint16
	Flags     uint16
	Name      uint16
	Signature uint16
	ParamList uint16
}

// MemberRefRow is a MemberRef table row (0x0A).
type MemberRefRow struct {
	Class     uint16
	Name      uint16
	Signature uint16
}

// StandAloneSigRow is a StandAloneSig table row (0x11).
type StandAloneSigRow struct {
	Signature uint16
}

// AssemblyRefRow is an AssemblyRef table row (0x23).
type AssemblyRefRow struct {
	MajorVersion     uint16
	MinorVersion     uint16
	BuildNumber      uint16
	RevisionNumber   uint16
	Flags            uint32
	PublicKeyOrToken uint16
	Name             uint16
	Culture          uint16
	HashValue        uint16
}

// Row widths in bytes for the 2-byte-heap-index layouts above.
const (
	moduleRowSize        = 10
	typeRefRowSize       = 6
	typeDefRowSize       = 14
	methodDefRowSize     = 14
	memberRefRowSize     = 6
	standAloneSigRowSize = 2
	assemblyRefRowSize   = 20
)

// rowWidth returns the byte width of one row of the given table, or 0 for a
// table the decoder does not handle. Widths are centralized so the cursor
// stays correct when tables are added.
func rowWidth(table int) uint64 {
	switch table {
	case TableModule:
		return moduleRowSize
	case TableTypeRef:
		return typeRefRowSize
	case TableTypeDef:
		return typeDefRowSize
	case TableMethodDef:
		return methodDefRowSize
	case TableMemberRef:
		return memberRefRowSize
	case TableStandAloneSig:
		return standAloneSigRowSize
	case TableAssemblyRef:
		return assemblyRefRowSize
	}
	return 0
}

// CLRTables is the decoded #~ stream: its header, the row-count vector, and
// one typed slice per materialized table.
type CLRTables struct {
	Reserved     uint32
	MajorVersion uint8
	MinorVersion uint8
	HeapSizes    uint8
	Valid        uint64
	Sorted       uint64

	// Rows holds the row count of each present table, in ascending
	// table-id order of the Valid bits.
	Rows []uint32

	Modules        []ModuleRow
	TypeRefs       []TypeRefRow
	TypeDefs       []TypeDefRow
	MethodDefs     []MethodDefRow
	MemberRefs     []MemberRefRow
	StandAloneSigs []StandAloneSigRow
	AssemblyRefs   []AssemblyRefRow
}

// readCLRTables locates the #~ stream inside the metadata root and decodes
// the tables header and every present table. Images without a #~ stream are
// left without tables.
func (f *File) readCLRTables(m *CLRMetadata) error {
	stream := m.Stream("#~")
	if stream == nil {
		return nil
	}
	cur := m.rootOff + uint64(stream.Offset)

	t := &CLRTables{}
	var err error
	if t.Reserved, err = f.data.u32(cur); err != nil {
		return fmt.Errorf("读取#~头失败: %w", err)
	}
	cur += 4
	if t.MajorVersion, err = f.data.u8(cur); err != nil {
		return err
	}
	cur++
	if t.MinorVersion, err = f.data.u8(cur); err != nil {
		return err
	}
	cur++
	if t.HeapSizes, err = f.data.u8(cur); err != nil {
		return err
	}
	cur += 2 // heap sizes byte plus the reserved byte
	if t.Valid, err = f.data.u64(cur); err != nil {
		return err
	}
	cur += 8
	if t.Sorted, err = f.data.u64(cur); err != nil {
		return err
	}
	cur += 8

	// One row count per set Valid bit, ascending table-id order.
	count := bits.OnesCount64(t.Valid)
	t.Rows = make([]uint32, count)
	for i := 0; i < count; i++ {
		if t.Rows[i], err = f.data.u32(cur); err != nil {
			return fmt.Errorf("读取行数向量失败: %w", err)
		}
		cur += 4
	}

	// The row arrays follow back to back. The cursor advances by
	// rows*width for every present table, so each table starts exactly
	// where the previous one ended.
	k := 0
	for table := 0; table < 64; table++ {
		if t.Valid&(1<<table) == 0 {
			continue
		}
		rows := uint64(t.Rows[k])
		k++

		width := rowWidth(table)
		if width == 0 {
			return fmt.Errorf("元数据表 0x%02X 未支持: %w", table, ErrParseFailed)
		}
		if err := f.data.check(cur, rows*width); err != nil {
			return fmt.Errorf("元数据表 0x%02X 越界: %w", table, err)
		}
		if err := t.readTable(f.data, cur, table, rows); err != nil {
			return err
		}
		cur += rows * width
	}

	m.Tables = t
	return nil
}

// readTable decodes rows of one table starting at off. Bounds were checked
// by the caller.
func (t *CLRTables) readTable(b buffer, off uint64, table int, rows uint64) error {
	switch table {
	case TableModule:
		t.Modules = make([]ModuleRow, rows)
		for i := range t.Modules {
			r := &t.Modules[i]
			r.Generation, _ = b.u16(off + 0)
			r.Name, _ = b.u16(off + 2)
			r.Mvid, _ = b.u16(off + 4)
			r.EncID, _ = b.u16(off + 6)
			r.EncBaseID, _ = b.u16(off + 8)
			off += moduleRowSize
		}
	case TableTypeRef:
		t.TypeRefs = make([]TypeRefRow, rows)
		for i := range t.TypeRefs {
			r := &t.TypeRefs[i]
			r.ResolutionScope, _ = b.u16(off + 0)
			r.TypeName, _ = b.u16(off + 2)
			r.TypeNamespace, _ = b.u16(off + 4)
			off += typeRefRowSize
		}
	case TableTypeDef:
		t.TypeDefs = make([]TypeDefRow, rows)
		for i := range t.TypeDefs {
			r := &t.TypeDefs[i]
			r.Flags, _ = b.u32(off + 0)
			r.TypeName, _ = b.u16(off + 4)
			r.TypeNamespace, _ = b.u16(off + 6)
			r.Extends, _ = b.u16(off + 8)
			r.FieldList, _ = b.u16(off + 10)
			r.MethodList, _ = b.u16(off + 12)
			off += typeDefRowSize
		}
	case TableMethodDef:
		t.MethodDefs = make([]MethodDefRow, rows)
		for i := range t.MethodDefs {
			r := &t.MethodDefs[i]
			r.RVA, _ = b.u32(off + 0)
			r.ImplFlags, _ = b.u16(off + 4)
			r.Flags, _ = b.u16(off + 6)
			r.Name, _ = b.u16(off + 8)
			r.Signature, _ = b.u16(off + 10)
			r.ParamList, _ = b.u16(off + 12)
			off += methodDefRowSize
		}
	case TableMemberRef:
		t.MemberRefs = make([]MemberRefRow, rows)
		for i := range t.MemberRefs {
			r := &t.MemberRefs[i]
			r.Class, _ = b.u16(off + 0)
			r.Name, _ = b.u16(off + 2)
			r.Signature, _ = b.u16(off + 4)
			off += memberRefRowSize
		}
	case TableStandAloneSig:
		t.StandAloneSigs = make([]StandAloneSigRow, rows)
		for i := range t.StandAloneSigs {
			t.StandAloneSigs[i].Signature, _ = b.u16(off)
			off += standAloneSigRowSize
		}
	case TableAssemblyRef:
		t.AssemblyRefs = make([]AssemblyRefRow, rows)
		for i := range t.AssemblyRefs {
			r := &t.AssemblyRefs[i]
			r.MajorVersion, _ = b.u16(off + 0)
			r.MinorVersion, _ = b.u16(off + 2)
			r.BuildNumber, _ = b.u16(off + 4)
			r.RevisionNumber, _ = b.u16(off + 6)
			r.Flags, _ = b.u32(off + 8)
			r.PublicKeyOrToken, _ = b.u16(off + 12)
			r.Name, _ = b.u16(off + 14)
			r.Culture, _ = b.u16(off + 16)
			r.HashValue, _ = b.u16(off + 18)
			off += assemblyRefRowSize
		}
	}
	return nil
}
