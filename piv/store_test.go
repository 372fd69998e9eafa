package piv

import "testing"

func TestMemoryStore_FileRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.ReadFile("missing"); err == nil {
		t.Fatal("expected error reading a missing file")
	}

	if err := s.WriteFile("obj", []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile("obj")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestMemoryStore_AttrRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.ReadAttr("obj", 0x00); err == nil {
		t.Fatal("expected error reading an attribute on an unknown object")
	}

	if err := s.WriteAttr("obj", 0x00, []byte{0x07}); err != nil {
		t.Fatalf("WriteAttr: %v", err)
	}
	got, err := s.ReadAttr("obj", 0x00)
	if err != nil {
		t.Fatalf("ReadAttr: %v", err)
	}
	if len(got) != 1 || got[0] != 0x07 {
		t.Errorf("got %v, want [07]", got)
	}

	if _, err := s.ReadAttr("obj", 0x01); err == nil {
		t.Fatal("expected error reading an unset attribute tag")
	}
}

func TestMemoryStore_ReadIsDefensiveCopy(t *testing.T) {
	s := NewMemoryStore()
	s.WriteFile("obj", []byte{1, 2, 3})
	got, _ := s.ReadFile("obj")
	got[0] = 0xFF

	again, _ := s.ReadFile("obj")
	if again[0] != 1 {
		t.Error("mutating a read result must not affect the stored value")
	}
}
