package pe

import (
	"errors"
	"testing"
)

// strTabBlob is a string table with "hello" at offset 12:
// 4-byte size, 8 filler bytes, "hello\x00".
func strTabBlob() []byte {
	var b blob
	b.put32(0, 18)
	b.put(4, []byte("AAAAAAA\x00"))
	b.put(12, []byte("hello\x00"))
	return b
}

func TestSectionNameEscapes(t *testing.T) {
	tests := []struct {
		name    string
		rawName [8]byte
		want    string
	}{
		{"short name", name8(".data"), ".data"},
		{"decimal escape", name8("/12"), "hello"},
		{"base64 escape", [8]byte{'/', '/', 'A', 'A', 'A', 'A', 'A', 'M'}, "hello"},
		{"full 8 bytes", [8]byte{'.', 'l', 'o', 'n', 'g', 'n', 'm', 'e'}, ".longnme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Open(newObject(IMAGE_FILE_MACHINE_I386, []objSection{
				{name: tt.rawName, data: make([]byte, 8)},
			}, strTabBlob(), 0))
			if err != nil {
				t.Fatalf("Open() = %v", err)
			}
			sec, ok := f.Sections().Next()
			if !ok {
				t.Fatal("no sections")
			}
			got, err := sec.Name()
			if err != nil {
				t.Fatalf("Name() = %v", err)
			}
			if got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSectionNameBadEscape(t *testing.T) {
	f, err := Open(newObject(IMAGE_FILE_MACHINE_I386, []objSection{
		{name: name8("/xyz"), data: make([]byte, 8)},
	}, strTabBlob(), 0))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	sec, _ := f.Sections().Next()
	if _, err := sec.Name(); !errors.Is(err, ErrParseFailed) {
		t.Errorf("Name() = %v, want ErrParseFailed", err)
	}
}

func TestDecodeBase64StringEntry(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"AAAAAA", 0, false},
		{"AAAAAB", 1, false},
		{"AAAAA/", 63, false},
		{"AAAAB/", 127, false},
		{"AAAABA", 64, false},
		{"AAAAAa", 26, false},
		{"AAAAA0", 52, false},
		{"AAAAA+", 62, false},
		{"D/////", 0xFFFFFFFF, false},
		{"EAAAAA", 0, true},  // 4 * 64^5 == 2^32, overflows
		{"AAAAAAA", 0, true}, // too long
		{"AAAA-A", 0, true},  // bad character
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := decodeBase64StringEntry(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrParseFailed) {
					t.Errorf("decodeBase64StringEntry(%q) = %v, want ErrParseFailed", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeBase64StringEntry(%q) = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("decodeBase64StringEntry(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSectionData(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := Open(newObject(IMAGE_FILE_MACHINE_I386, []objSection{
		{name: name8(".rdata"), characteristics: IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ, data: payload},
	}, nil, 0))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	sec, _ := f.Sections().Next()
	data, err := sec.Data()
	if err != nil {
		t.Fatalf("Data() = %v", err)
	}
	if len(data) != len(payload) || data[0] != 0xDE || data[3] != 0xEF {
		t.Errorf("Data() = % x", data)
	}
	if !sec.IsData() || sec.IsText() || sec.IsBSS() {
		t.Error("section kind predicates wrong for .rdata")
	}
	if got := sec.Permissions(); got != "R--" {
		t.Errorf("Permissions() = %q, want R--", got)
	}
}

func TestSectionDataOutOfBounds(t *testing.T) {
	b := newObject(IMAGE_FILE_MACHINE_I386, []objSection{
		{name: name8(".text"), data: make([]byte, 8)},
	}, nil, 0)
	// Point the raw data past the end of the file.
	b.put32(fileHeaderSize+20, 0x1000)

	f, err := Open(b)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	sec, _ := f.Sections().Next()
	if _, err := sec.Data(); !errors.Is(err, ErrParseFailed) {
		t.Errorf("Data() = %v, want ErrParseFailed", err)
	}
}
