package pe

import (
	"errors"
	"testing"
)

// testSymbolObject builds a COFF object with a .text section and a symbol
// table exercising every name/sentinel shape:
//
//	0 "main"  inline name, function, external, in .text
//	1 "hello" string-table name, static, in .text, one aux record
//	2         aux record of 1
//	3 "ext"   undefined external
//	4 "comm"  undefined external with value (common)
//	5 "abs"   absolute sentinel
func testSymbolObject(t *testing.T) *File {
	t.Helper()

	var symtab blob
	symRecord(&symtab, 0, name8("main"), 0x10, 1, IMAGE_SYM_DTYPE_FUNCTION<<sctComplexTypeShift, IMAGE_SYM_CLASS_EXTERNAL, 0)

	var longName [8]byte
	longName[4] = 12 // string-table offset of "hello"
	symRecord(&symtab, 1, longName, 0x4, 1, 0, IMAGE_SYM_CLASS_STATIC, 1)
	symRecord(&symtab, 2, name8("auxdata"), 0, 0, 0, 0, 0)

	symRecord(&symtab, 3, name8("ext"), 0, IMAGE_SYM_UNDEFINED, 0, IMAGE_SYM_CLASS_EXTERNAL, 0)
	symRecord(&symtab, 4, name8("comm"), 8, IMAGE_SYM_UNDEFINED, 0, IMAGE_SYM_CLASS_EXTERNAL, 0)
	symRecord(&symtab, 5, name8("abs"), 0x7F, IMAGE_SYM_ABSOLUTE, 0, IMAGE_SYM_CLASS_STATIC, 0)

	symtab.put(6*symbolRecordSize, strTabBlob())

	f, err := Open(newObject(IMAGE_FILE_MACHINE_AMD64, []objSection{
		{
			name:            name8(".text"),
			characteristics: IMAGE_SCN_CNT_CODE | IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_EXECUTE,
			data:            make([]byte, 32),
		},
	}, symtab, 6))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return f
}

func TestSymbolIterationStride(t *testing.T) {
	f := testSymbolObject(t)

	var names []string
	var strides uint32
	cur := f.Symbols()
	for {
		sym, ok := cur.Next()
		if !ok {
			break
		}
		name, err := sym.Name()
		if err != nil {
			t.Fatalf("Name() = %v", err)
		}
		names = append(names, name)
		strides += 1 + uint32(sym.Record().NumberOfAuxSymbols)
	}

	want := []string{"main", "hello", "ext", "comm", "abs"}
	if len(names) != len(want) {
		t.Fatalf("symbols = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q", i, names[i], want[i])
		}
	}

	// The strides must cover the table exactly.
	if strides != f.CoffHeader().NumberOfSymbols {
		t.Errorf("stride sum = %d, want %d", strides, f.CoffHeader().NumberOfSymbols)
	}
}

func TestSymbolQueries(t *testing.T) {
	f := testSymbolObject(t)

	main, err := f.SymbolAt(0)
	if err != nil {
		t.Fatalf("SymbolAt(0) = %v", err)
	}

	if addr, err := main.Address(); err != nil || addr != 0x1000+0x10 {
		t.Errorf("Address() = %#x, %v", addr, err)
	}
	sec, _ := f.SectionAt(0)
	wantOff := uint64(sec.Header().PointerToRawData) + 0x10
	if off, err := main.FileOffset(); err != nil || off != wantOff {
		t.Errorf("FileOffset() = %#x, %v, want %#x", off, err, wantOff)
	}
	if typ, err := main.Type(); err != nil || typ != SymbolTypeFunction {
		t.Errorf("Type() = %v, %v, want function", typ, err)
	}
	if flags := main.Flags(); flags != SymbolFlagGlobal {
		t.Errorf("Flags() = %#x, want global", flags)
	}
	if size, err := main.Size(); err != nil || size != 32-0x10 {
		t.Errorf("Size() = %d, %v, want %d", size, err, 32-0x10)
	}
	if _, err := main.Value(); !errors.Is(err, ErrUnimplemented) {
		t.Errorf("Value() = %v, want ErrUnimplemented", err)
	}

	if ok, err := sec.Contains(main); err != nil || !ok {
		t.Errorf("Contains(main) = %v, %v", ok, err)
	}

	hello, _ := f.SymbolAt(1)
	if typ, err := hello.Type(); err != nil || typ != SymbolTypeData {
		t.Errorf("hello Type() = %v, %v, want data", typ, err)
	}
	if aux := hello.AuxData(); len(aux) != symbolRecordSize {
		t.Errorf("AuxData() length = %d, want %d", len(aux), symbolRecordSize)
	}

	ext, _ := f.SymbolAt(3)
	if addr, err := ext.Address(); err != nil || addr != UnknownAddressOrSize {
		t.Errorf("ext Address() = %#x, %v", addr, err)
	}
	if typ, err := ext.Type(); err != nil || typ != SymbolTypeUnknown {
		t.Errorf("ext Type() = %v, %v, want unknown", typ, err)
	}
	if flags := ext.Flags(); flags != SymbolFlagUndefined|SymbolFlagGlobal {
		t.Errorf("ext Flags() = %#x", flags)
	}
	if ok, err := sec.Contains(ext); err != nil || ok {
		t.Errorf("Contains(ext) = %v, %v", ok, err)
	}

	comm, _ := f.SymbolAt(4)
	if flags := comm.Flags(); flags&SymbolFlagCommon == 0 {
		t.Errorf("comm Flags() = %#x, want common", flags)
	}

	abs, _ := f.SymbolAt(5)
	if flags := abs.Flags(); flags != SymbolFlagAbsolute {
		t.Errorf("abs Flags() = %#x, want absolute", flags)
	}
	if addr, err := abs.Address(); err != nil || addr != 0x7F {
		t.Errorf("abs Address() = %#x, %v", addr, err)
	}
	if absSec, err := abs.Section(); err != nil || absSec != nil {
		t.Errorf("abs Section() = %v, %v, want nil", absSec, err)
	}
}

func TestSymbolAtOutOfRange(t *testing.T) {
	f := testSymbolObject(t)
	if _, err := f.SymbolAt(6); !errors.Is(err, ErrParseFailed) {
		t.Errorf("SymbolAt(6) = %v, want ErrParseFailed", err)
	}
}
