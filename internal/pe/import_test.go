package pe

import (
	"testing"
)

// testImportImage builds a PE32 image whose import directory has one real
// entry, the all-zero terminator, and one stray non-zero entry after it. The
// directory size admits all three, so iteration must stop at the terminator.
func testImportImage(t *testing.T) *File {
	t.Helper()
	b := newPE32(IMAGE_FILE_MACHINE_I386, 0x400)

	const (
		dirOff      = testRawOff          // import directory
		iltOff      = testRawOff + 0x100  // import lookup table
		dllNameOff  = testRawOff + 0x200  // "KERNEL32.dll"
		hintNameOff = testRawOff + 0x300  // hint/name pair
	)

	// Entry 0.
	b.put32(dirOff, testRVA(iltOff))
	b.put32(dirOff+12, testRVA(dllNameOff))
	b.put32(dirOff+16, testRVA(iltOff))
	// Entry 1 is the all-zero terminator. Entry 2 is stray garbage.
	b.put32(dirOff+2*importDirEntrySize, 0xDEADBEEF)

	// Lookup table: one ordinal import, one hint/name import, terminator.
	b.put32(iltOff, importOrdinalFlag|1)
	b.put32(iltOff+4, testRVA(hintNameOff))
	b.put32(iltOff+8, 0)

	b.put(dllNameOff, []byte("KERNEL32.dll\x00"))
	b.put16(hintNameOff, 5)
	b.put(hintNameOff+2, []byte("GetProcAddress\x00"))

	b.put32(testDirOff(IMAGE_DIRECTORY_ENTRY_IMPORT), testRVA(dirOff))
	b.put32(testDirOff(IMAGE_DIRECTORY_ENTRY_IMPORT)+4, 3*importDirEntrySize)

	f, err := Open(b)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	return f
}

func TestImportIterationStopsAtTerminator(t *testing.T) {
	f := testImportImage(t)

	var count int
	cur := f.Imports()
	for {
		if _, ok := cur.Next(); !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Errorf("import entries = %d, want 1", count)
	}
}

func TestImportEntry(t *testing.T) {
	f := testImportImage(t)

	entry, ok := f.Imports().Next()
	if !ok {
		t.Fatal("no import entries")
	}

	name, err := entry.Name()
	if err != nil || name != "KERNEL32.dll" {
		t.Errorf("Name() = %q, %v", name, err)
	}

	lookups, err := entry.LookupEntries()
	if err != nil {
		t.Fatalf("LookupEntries() = %v", err)
	}
	if len(lookups) != 2 {
		t.Fatalf("LookupEntries() length = %d, want 2", len(lookups))
	}

	if !lookups[0].IsOrdinal() || lookups[0].Ordinal() != 1 {
		t.Errorf("lookup 0 = %#x, want ordinal 1", uint32(lookups[0]))
	}

	if lookups[1].IsOrdinal() {
		t.Fatalf("lookup 1 = %#x, want hint/name", uint32(lookups[1]))
	}
	hint, fn, err := f.HintName(lookups[1].HintNameRVA())
	if err != nil {
		t.Fatalf("HintName() = %v", err)
	}
	if hint != 5 || fn != "GetProcAddress" {
		t.Errorf("HintName() = %d, %q", hint, fn)
	}
}

func TestNoImports(t *testing.T) {
	f, err := Open(newPE32(IMAGE_FILE_MACHINE_I386, 0x200))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if _, ok := f.Imports().Next(); ok {
		t.Error("image without import directory has imports")
	}
}
