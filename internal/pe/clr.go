package pe

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// CLRMetadataSignature is the magic at the start of the metadata root
// ("BSJB" little-endian).
const CLRMetadataSignature = 0x424A5342

// CLRHeader is the CLR runtime header (IMAGE_COR20_HEADER) referenced by the
// COM descriptor data directory.
type CLRHeader struct {
	Cb                      uint32
	MajorRuntimeVersion     uint16
	MinorRuntimeVersion     uint16
	MetadataRVA             uint32
	MetadataSize            uint32
	ImageFlags              uint32
	EntryToken              uint32
	ResourcesRVA            uint32
	ResourcesSize           uint32
	StrongNameSignature     uint64
	CodeManagerTable        uint64
	VTableFixups            uint64
	ExportAddressTableJumps uint64
	ManagedNativeHeader     uint64
}

// CLRStreamHeader describes one stream of the metadata root. The offset is
// relative to the metadata root, not to the image.
type CLRStreamHeader struct {
	Offset uint32
	Size   uint32
	Name   string
}

// CLRMetadata is the decoded metadata root: version, stream directory, and
// the logical tables of the #~ stream when present.
type CLRMetadata struct {
	Signature           uint32
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16
	Reserved            uint32
	Version             string
	Flags               uint16
	StreamCount         uint16
	Streams             []CLRStreamHeader

	rootOff uint64 // file offset of the metadata root

	Tables *CLRTables // nil when the image has no #~ stream
}

// Stream returns the stream header with the given name, or nil.
func (m *CLRMetadata) Stream(name string) *CLRStreamHeader {
	for i := range m.Streams {
		if m.Streams[i].Name == name {
			return &m.Streams[i]
		}
	}
	return nil
}

// initCLR follows the COM descriptor data directory to the CLR header and,
// when the header names a metadata root, decodes the metadata. A metadata
// decode failure does not fail construction; it is stored and surfaced when
// the metadata is asked for.
func (f *File) initCLR() error {
	dir := f.DataDirectoryEntry(IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR)
	if dir == nil || dir.VirtualAddress == 0 {
		return nil
	}
	off, err := f.RVAToOffset(dir.VirtualAddress)
	if err != nil {
		return fmt.Errorf("无法定位CLR头: %w", err)
	}
	hdr, err := f.readCLRHeader(off)
	if err != nil {
		return err
	}
	f.clrHeader = hdr

	if hdr.MetadataRVA == 0 {
		return nil
	}
	metaOff, err := f.RVAToOffset(hdr.MetadataRVA)
	if err != nil {
		return fmt.Errorf("无法定位CLR元数据: %w", err)
	}
	f.clrMeta, f.clrErr = f.readCLRMetadata(metaOff)
	return nil
}

func (f *File) readCLRHeader(off uint64) (*CLRHeader, error) {
	b, err := f.data.bytes(off, clrHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("读取CLR头失败: %w", err)
	}
	v := buffer(b)
	h := &CLRHeader{}
	h.Cb, _ = v.u32(0)
	h.MajorRuntimeVersion, _ = v.u16(4)
	h.MinorRuntimeVersion, _ = v.u16(6)
	h.MetadataRVA, _ = v.u32(8)
	h.MetadataSize, _ = v.u32(12)
	h.ImageFlags, _ = v.u32(16)
	h.EntryToken, _ = v.u32(20)
	h.ResourcesRVA, _ = v.u32(24)
	h.ResourcesSize, _ = v.u32(28)
	h.StrongNameSignature, _ = v.u64(32)
	h.CodeManagerTable, _ = v.u64(40)
	h.VTableFixups, _ = v.u64(48)
	h.ExportAddressTableJumps, _ = v.u64(56)
	h.ManagedNativeHeader, _ = v.u64(64)
	return h, nil
}

// readCLRMetadata decodes the metadata root at the given file offset. The
// layout is positional: fixed fields, a version string padded to 4 bytes,
// then the stream directory.
func (f *File) readCLRMetadata(rootOff uint64) (*CLRMetadata, error) {
	m := &CLRMetadata{rootOff: rootOff}
	cur := rootOff

	var err error
	if m.Signature, err = f.data.u32(cur); err != nil {
		return nil, fmt.Errorf("读取元数据签名失败: %w", err)
	}
	if m.Signature != CLRMetadataSignature {
		return nil, fmt.Errorf("元数据签名错误 0x%X: %w", m.Signature, ErrParseFailed)
	}
	cur += 4
	if m.MajorRuntimeVersion, err = f.data.u16(cur); err != nil {
		return nil, err
	}
	cur += 2
	if m.MinorRuntimeVersion, err = f.data.u16(cur); err != nil {
		return nil, err
	}
	cur += 2
	if m.Reserved, err = f.data.u32(cur); err != nil {
		return nil, err
	}
	cur += 4

	length, err := f.data.u32(cur)
	if err != nil {
		return nil, err
	}
	cur += 4

	// The version string occupies its length rounded up to a 4-byte
	// boundary; the padding is NUL.
	padded := align4(uint64(length))
	verBytes, err := f.data.bytes(cur, padded)
	if err != nil {
		return nil, fmt.Errorf("读取元数据版本串失败: %w", err)
	}
	m.Version = cstr(verBytes)
	cur += padded

	if m.Flags, err = f.data.u16(cur); err != nil {
		return nil, err
	}
	cur += 2
	if m.StreamCount, err = f.data.u16(cur); err != nil {
		return nil, err
	}
	cur += 2

	m.Streams = make([]CLRStreamHeader, 0, m.StreamCount)
	for i := 0; i < int(m.StreamCount); i++ {
		var sh CLRStreamHeader
		if sh.Offset, err = f.data.u32(cur); err != nil {
			return nil, fmt.Errorf("读取流目录失败: %w", err)
		}
		cur += 4
		if sh.Size, err = f.data.u32(cur); err != nil {
			return nil, fmt.Errorf("读取流目录失败: %w", err)
		}
		cur += 4
		if sh.Name, err = f.data.cstring(cur); err != nil {
			return nil, fmt.Errorf("读取流名称失败: %w", err)
		}
		// Stream names are NUL-terminated and padded to 4 bytes.
		cur += align4(uint64(len(sh.Name)) + 1)
		m.Streams = append(m.Streams, sh)
	}

	if err := f.readCLRTables(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CLRHeaderTable returns the CLR runtime header, or nil for native images.
func (f *File) CLRHeaderTable() *CLRHeader {
	return f.clrHeader
}

// IsPureCIL reports whether the image carries a CLR runtime header.
func (f *File) IsPureCIL() bool {
	return f.clrHeader != nil
}

// CLRMetadata returns the decoded metadata root. Images whose metadata failed
// to decode return the stored error; native images return nil, nil.
func (f *File) CLRMetadata() (*CLRMetadata, error) {
	if f.clrErr != nil {
		return nil, f.clrErr
	}
	return f.clrMeta, nil
}

// CLRTables returns the decoded #~ tables, or nil when the image has none.
func (f *File) CLRTables() (*CLRTables, error) {
	m, err := f.CLRMetadata()
	if err != nil || m == nil {
		return nil, err
	}
	return m.Tables, nil
}

// align4 rounds up to the next multiple of 4.
func align4[T constraints.Unsigned](v T) T {
	return (v + 3) &^ 3
}
