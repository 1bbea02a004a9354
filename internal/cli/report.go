// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"strings"

	"github.com/ZacharyZcR/PEView/internal/pe"
	"github.com/fatih/color"
)

// Info contains everything the report shows, gathered from a parsed file.
type Info struct {
	FilePath   string
	FileSize   int64
	Format     string
	ImportLib  bool
	ImageBase  uint64
	EntryPoint uint64
	Sections   []SectionInfo
	Symbols    []string
	Imports    []ImportInfo
	Exports    []ExportInfo
	CLR        *CLRInfo
}

// SectionInfo is one row of the section listing.
type SectionInfo struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	RawSize         uint32
	Characteristics uint32
	Permissions     string
	Relocations     int
}

// ImportInfo groups imported functions per DLL.
type ImportInfo struct {
	DLL       string
	Functions []string
}

// ExportInfo is one export table entry.
type ExportInfo struct {
	Ordinal uint32
	RVA     uint32
	Name    string
}

// CLRInfo summarizes the managed metadata of a .NET image.
type CLRInfo struct {
	RuntimeVersion  string
	MetadataVersion string
	EntryToken      uint32
	Streams         []string
	TableRows       []TableRows
	MetadataErr     error
}

// TableRows is the row count of one metadata table.
type TableRows struct {
	Name string
	Rows int
}

// Gather walks the parsed file and collects the report data. Section, symbol
// and DLL names and the CLR metadata that fail to resolve are reported inline
// instead of failing the whole report; import functions that fail to resolve
// are left out, and export RVAs or names that fail to resolve are left zero
// or empty.
func Gather(f *pe.File, path string, size int64) *Info {
	info := &Info{
		FilePath:  path,
		FileSize:  size,
		Format:    f.FileFormatName(),
		ImportLib: f.CoffHeader().IsImportLibrary(),
		ImageBase: f.ImageBase(),
	}
	if h := f.PE32Header(); h != nil {
		info.EntryPoint = uint64(h.AddressOfEntryPoint)
	} else if h := f.PE32PlusHeader(); h != nil {
		info.EntryPoint = uint64(h.AddressOfEntryPoint)
	}

	gatherSections(f, info)
	gatherSymbols(f, info)
	gatherImports(f, info)
	gatherExports(f, info)
	gatherCLR(f, info)
	return info
}

func gatherSections(f *pe.File, info *Info) {
	cur := f.Sections()
	for {
		sec, ok := cur.Next()
		if !ok {
			return
		}
		name, err := sec.Name()
		if err != nil {
			name = fmt.Sprintf("<无法解析: %v>", err)
		}
		hdr := sec.Header()

		relocs := 0
		rc := sec.Relocations()
		for {
			if _, ok := rc.Next(); !ok {
				break
			}
			relocs++
		}

		info.Sections = append(info.Sections, SectionInfo{
			Name:            name,
			VirtualAddress:  hdr.VirtualAddress,
			VirtualSize:     hdr.VirtualSize,
			RawSize:         hdr.SizeOfRawData,
			Characteristics: hdr.Characteristics,
			Permissions:     sec.Permissions(),
			Relocations:     relocs,
		})
	}
}

func gatherSymbols(f *pe.File, info *Info) {
	cur := f.Symbols()
	for {
		sym, ok := cur.Next()
		if !ok {
			return
		}
		name, err := sym.Name()
		if err != nil {
			name = fmt.Sprintf("<无法解析: %v>", err)
		}
		info.Symbols = append(info.Symbols, name)
	}
}

func gatherImports(f *pe.File, info *Info) {
	cur := f.Imports()
	for {
		entry, ok := cur.Next()
		if !ok {
			return
		}
		imp := ImportInfo{}
		if name, err := entry.Name(); err == nil {
			imp.DLL = name
		} else {
			imp.DLL = fmt.Sprintf("<无法解析: %v>", err)
		}

		lookups, err := entry.LookupEntries()
		if err == nil {
			for _, l := range lookups {
				if l.IsOrdinal() {
					imp.Functions = append(imp.Functions, fmt.Sprintf("#%d", l.Ordinal()))
					continue
				}
				if _, fn, err := f.HintName(l.HintNameRVA()); err == nil {
					imp.Functions = append(imp.Functions, fn)
				}
			}
		}
		info.Imports = append(info.Imports, imp)
	}
}

func gatherExports(f *pe.File, info *Info) {
	cur := f.Exports()
	for {
		entry, ok := cur.Next()
		if !ok {
			return
		}
		e := ExportInfo{Ordinal: entry.Ordinal()}
		e.RVA, _ = entry.RVA()
		e.Name, _ = entry.Name()
		info.Exports = append(info.Exports, e)
	}
}

var clrTableNames = []struct {
	id   int
	name string
}{
	{pe.TableModule, "Module"},
	{pe.TableTypeRef, "TypeRef"},
	{pe.TableTypeDef, "TypeDef"},
	{pe.TableMethodDef, "MethodDef"},
	{pe.TableMemberRef, "MemberRef"},
	{pe.TableStandAloneSig, "StandAloneSig"},
	{pe.TableAssemblyRef, "AssemblyRef"},
}

func gatherCLR(f *pe.File, info *Info) {
	hdr := f.CLRHeaderTable()
	if hdr == nil {
		return
	}
	clr := &CLRInfo{
		RuntimeVersion: fmt.Sprintf("%d.%d", hdr.MajorRuntimeVersion, hdr.MinorRuntimeVersion),
		EntryToken:     hdr.EntryToken,
	}
	info.CLR = clr

	meta, err := f.CLRMetadata()
	if err != nil {
		clr.MetadataErr = err
		return
	}
	if meta == nil {
		return
	}
	clr.MetadataVersion = meta.Version
	for _, s := range meta.Streams {
		clr.Streams = append(clr.Streams, fmt.Sprintf("%s (%d B)", s.Name, s.Size))
	}

	tables := meta.Tables
	if tables == nil {
		return
	}
	rows := map[int]int{
		pe.TableModule:        len(tables.Modules),
		pe.TableTypeRef:       len(tables.TypeRefs),
		pe.TableTypeDef:       len(tables.TypeDefs),
		pe.TableMethodDef:     len(tables.MethodDefs),
		pe.TableMemberRef:     len(tables.MemberRefs),
		pe.TableStandAloneSig: len(tables.StandAloneSigs),
		pe.TableAssemblyRef:   len(tables.AssemblyRefs),
	}
	for _, t := range clrTableNames {
		if tables.Valid&(1<<t.id) != 0 {
			clr.TableRows = append(clr.TableRows, TableRows{Name: t.name, Rows: rows[t.id]})
		}
	}
}

// Reporter formats and prints PE analysis results.
type Reporter struct {
	info        *Info
	verbose     bool
	showSymbols bool
}

// NewReporter creates a new reporter for the given info.
func NewReporter(info *Info) *Reporter {
	return &Reporter{info: info}
}

// SetVerbose enables verbose mode (show all functions).
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// SetShowSymbols enables the COFF symbol listing.
func (r *Reporter) SetShowSymbols(show bool) {
	r.showSymbols = show
}

// Print outputs the complete analysis report.
func (r *Reporter) Print() {
	r.printHeader()
	r.printBasicInfo()
	if r.info.ImportLib {
		return
	}
	r.printSections()
	if r.showSymbols {
		r.printSymbols()
	}
	r.printImports()
	r.printExports()
	r.printCLR()
}

func (r *Reporter) printHeader() {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("\n╔════════════════════════════════════════╗")
	cyan.Println("║          PEView 分析报告               ║")
	cyan.Println("╚════════════════════════════════════════╝")
}

func (r *Reporter) printBasicInfo() {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Println("\n【基本信息】")

	fmt.Printf("  %-20s: %s\n", "文件路径", r.info.FilePath)
	fmt.Printf("  %-20s: %s\n", "文件大小", formatSize(r.info.FileSize))
	fmt.Printf("  %-20s: %s\n", "文件格式", r.info.Format)
	if r.info.ImportLib {
		gray := color.New(color.FgHiBlack)
		gray.Println("  导入库：无节区和符号信息")
		return
	}
	fmt.Printf("  %-20s: 0x%X\n", "入口点", r.info.EntryPoint)
	fmt.Printf("  %-20s: 0x%X\n", "镜像基址", r.info.ImageBase)
}

func (r *Reporter) printSections() {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("\n【节区信息】(共 %d 个)\n", len(r.info.Sections))

	if len(r.info.Sections) == 0 {
		fmt.Println("  未发现节区")
		return
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("  %-10s %-12s %-15s %-15s %-8s %-10s %s\n",
		"名称", "虚拟地址", "虚拟大小", "原始大小", "权限", "重定位数", "特征")
	fmt.Println(strings.Repeat("-", 100))

	for _, section := range r.info.Sections {
		permColor := color.New(color.FgWhite)
		if section.Permissions == "RWX" {
			permColor = color.New(color.FgRed, color.Bold)
		} else if strings.Contains(section.Permissions, "X") {
			permColor = color.New(color.FgYellow)
		}

		fmt.Printf("  %-10s 0x%08X   %-15s %-15s ",
			section.Name,
			section.VirtualAddress,
			formatSize(int64(section.VirtualSize)),
			formatSize(int64(section.RawSize)),
		)
		permColor.Printf("%-8s", section.Permissions)
		fmt.Printf(" %-10d 0x%08X\n", section.Relocations, section.Characteristics)
	}
	fmt.Println(strings.Repeat("-", 100))
}

func (r *Reporter) printSymbols() {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("\n【符号表】(共 %d 个)\n", len(r.info.Symbols))

	if len(r.info.Symbols) == 0 {
		fmt.Println("  未发现符号")
		return
	}

	maxDisplay := 30
	if r.verbose {
		maxDisplay = len(r.info.Symbols)
	}
	displayCount := min(len(r.info.Symbols), maxDisplay)
	for i := 0; i < displayCount; i++ {
		fmt.Printf("  %4d. %s\n", i+1, r.info.Symbols[i])
	}
	if len(r.info.Symbols) > maxDisplay {
		gray := color.New(color.FgHiBlack)
		gray.Printf("  ... (还有 %d 个符号)\n", len(r.info.Symbols)-maxDisplay)
	}
}

func (r *Reporter) printImports() {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("\n【导入表】(共 %d 个DLL)\n", len(r.info.Imports))

	if len(r.info.Imports) == 0 {
		fmt.Println("  未发现导入")
		return
	}

	for i, imp := range r.info.Imports {
		green := color.New(color.FgGreen)
		funcCount := len(imp.Functions)
		green.Printf("  %3d. %s (%d 个函数)\n", i+1, imp.DLL, funcCount)

		maxDisplay := 10
		if r.verbose {
			maxDisplay = funcCount
		}
		displayCount := min(funcCount, maxDisplay)
		for j := 0; j < displayCount; j++ {
			fmt.Printf("       - %s\n", imp.Functions[j])
		}
		if funcCount > maxDisplay {
			gray := color.New(color.FgHiBlack)
			gray.Printf("       ... (还有 %d 个函数)\n", funcCount-maxDisplay)
		}
	}
	fmt.Println()
}

func (r *Reporter) printExports() {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Printf("\n【导出表】(共 %d 个函数)\n", len(r.info.Exports))

	if len(r.info.Exports) == 0 {
		fmt.Println("  未发现导出")
		return
	}

	maxDisplay := 20
	if r.verbose {
		maxDisplay = len(r.info.Exports)
	}
	displayCount := min(len(r.info.Exports), maxDisplay)
	for i := 0; i < displayCount; i++ {
		green := color.New(color.FgGreen)
		e := r.info.Exports[i]
		name := e.Name
		if name == "" {
			name = "(仅序号)"
		}
		green.Printf("  %3d. #%d 0x%08X %s\n", i+1, e.Ordinal, e.RVA, name)
	}
	if len(r.info.Exports) > maxDisplay {
		gray := color.New(color.FgHiBlack)
		gray.Printf("  ... (还有 %d 个函数)\n", len(r.info.Exports)-maxDisplay)
	}
	fmt.Println()
}

func (r *Reporter) printCLR() {
	if r.info.CLR == nil {
		return
	}
	clr := r.info.CLR

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Println("\n【CLR元数据】")

	fmt.Printf("  %-20s: %s\n", "运行时版本", clr.RuntimeVersion)
	fmt.Printf("  %-20s: 0x%08X\n", "入口Token", clr.EntryToken)

	if clr.MetadataErr != nil {
		red := color.New(color.FgRed, color.Bold)
		red.Printf("  元数据解析失败: %v\n", clr.MetadataErr)
		return
	}
	fmt.Printf("  %-20s: %s\n", "元数据版本", clr.MetadataVersion)

	if len(clr.Streams) > 0 {
		fmt.Printf("  %-20s: %s\n", "流", strings.Join(clr.Streams, ", "))
	}
	if len(clr.TableRows) > 0 {
		fmt.Println("  元数据表:")
		for _, t := range clr.TableRows {
			fmt.Printf("    %-15s %d 行\n", t.Name, t.Rows)
		}
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
