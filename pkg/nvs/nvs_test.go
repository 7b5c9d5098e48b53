package nvs

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"eeprom", TypeEEPROM, false},
		{"FRAM", TypeFRAM, false},
		{"flash", TypeFlash, false},
		{"none", TypeNone, false},
		{"", TypeNone, false},
		{"nvram", TypeNone, true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSupportsRewrite(t *testing.T) {
	if !TypeEEPROM.SupportsRewrite() || !TypeFRAM.SupportsRewrite() {
		t.Error("EEPROM/FRAM must support rewrite")
	}
	if TypeFlash.SupportsRewrite() || TypeNone.SupportsRewrite() {
		t.Error("flash/none must not support rewrite")
	}
}

func TestChecksumStable(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0xff}
	if Checksum(data) != Checksum(data) {
		t.Error("checksum not deterministic")
	}
	tweaked := []byte{0x01, 0x02, 0x03, 0xfe}
	if Checksum(data) == Checksum(tweaked) {
		t.Error("checksum did not change with data")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(TypeFRAM, 128)

	data := []byte("odometer record")
	if err := m.Write(16, data, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := m.Read(16, uint32(len(data)), true)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestMemoryChecksumDetectsCorruption(t *testing.T) {
	m := NewMemory(TypeEEPROM, 64)

	data := []byte{1, 2, 3, 4}
	if err := m.Write(0, data, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m.Corrupt(2)

	_, err := m.Read(0, 4, true)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestMemoryUninitializedFailsChecksum(t *testing.T) {
	m := NewMemory(TypeFRAM, 64)
	if _, err := m.Read(0, 28, true); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum on erased read, got %v", err)
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(TypeFRAM, 32)

	if _, err := m.Read(30, 4, true); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Read past end: got %v", err)
	}
	if err := m.Write(31, []byte{1, 2}, false); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Write past end: got %v", err)
	}
}

func TestMemoryFailNextWrite(t *testing.T) {
	m := NewMemory(TypeFRAM, 64)
	m.FailNextWrite(ErrWriteFailed)

	if err := m.Write(0, []byte{1}, false); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected injected failure, got %v", err)
	}
	// Failure is one-shot.
	if err := m.Write(0, []byte{1}, false); err != nil {
		t.Errorf("second write failed: %v", err)
	}
}

func TestMemorySnapshotRestore(t *testing.T) {
	m := NewMemory(TypeFRAM, 64)
	m.Write(8, []byte{9, 9, 9}, true)

	snap := m.Snapshot()

	m2 := NewMemory(TypeFRAM, 64)
	m2.Restore(snap)
	got, err := m2.Read(8, 3, true)
	if err != nil {
		t.Fatalf("Read after restore: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 9, 9}) {
		t.Errorf("restored data mismatch: %v", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odometer.nvs")

	s, err := OpenFile(path, TypeFRAM, 256)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	data := []byte("persisted")
	if err := s.Write(100, data, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: data must survive.
	s2, err := OpenFile(path, TypeFRAM, 256)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Read(100, uint32(len(data)), true)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("reopened data mismatch: %q", got)
	}
}

func TestFileOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odometer.nvs")
	s, err := OpenFile(path, TypeEEPROM, 64)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	if err := s.Write(62, []byte{1, 2, 3}, true); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}
