package piv

import "testing"

func newTestAuthHandler() *authHandler {
	return &authHandler{
		userPIN: func() *PIN {
			p := NewPIN(NewMemoryStore(), "piv-pin", 8, 8, 3)
			p.Install([]byte("123456\xFF\xFF"))
			return p
		}(),
		puk: func() *PIN {
			p := NewPIN(NewMemoryStore(), "piv-puk", 8, 8, 3)
			p.Install([]byte("12345678"))
			return p
		}(),
	}
}

func TestAuthHandler_Verify_Success(t *testing.T) {
	h := newTestAuthHandler()
	if err := h.verify(0x00, 0x80, []byte("123456\xFF\xFF")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthHandler_Verify_WrongP2(t *testing.T) {
	h := newTestAuthHandler()
	if err := h.verify(0x00, 0x81, []byte("123456\xFF\xFF")); err != errReferenceDataNotFound {
		t.Fatalf("got %v, want errReferenceDataNotFound", err)
	}
}

func TestAuthHandler_Verify_ClearFlag(t *testing.T) {
	h := newTestAuthHandler()
	h.verify(0x00, 0x80, []byte("123456\xFF\xFF"))
	if !h.userPIN.IsValidated() {
		t.Fatal("expected validated PIN before clearing")
	}
	if err := h.verify(0xFF, 0x80, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.userPIN.IsValidated() {
		t.Error("P1=0xFF must clear validation")
	}
}

func TestAuthHandler_Verify_QueryWithoutData(t *testing.T) {
	h := newTestAuthHandler()
	if err := h.verify(0x00, 0x80, nil); err == nil {
		t.Fatal("expected a 63Cn error before validation")
	}
	h.verify(0x00, 0x80, []byte("123456\xFF\xFF"))
	if err := h.verify(0x00, 0x80, nil); err != nil {
		t.Fatalf("expected success once validated: %v", err)
	}
}

func TestAuthHandler_Verify_WrongLength(t *testing.T) {
	h := newTestAuthHandler()
	if err := h.verify(0x00, 0x80, []byte("short")); err != errWrongLength {
		t.Fatalf("got %v, want errWrongLength", err)
	}
}

func TestAuthHandler_ChangeReferenceData(t *testing.T) {
	h := newTestAuthHandler()
	data := append(append([]byte{}, []byte("123456\xFF\xFF")...), []byte("87654321")...)
	if err := h.changeReferenceData(0x00, 0x80, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.verify(0x00, 0x80, []byte("87654321")); err != nil {
		t.Fatalf("new PIN did not take effect: %v", err)
	}
}

func TestAuthHandler_ResetRetryCounter_VerifiesPUK(t *testing.T) {
	// Resolves the Open Question in spec.md §9/DESIGN.md: this must verify
	// the PUK, not the user PIN, against the first 8 bytes.
	h := newTestAuthHandler()
	newPIN := []byte("11112222")
	data := append(append([]byte{}, []byte("123456\xFF\xFF")...), newPIN...)

	// Using the user PIN's value where a PUK is expected must fail.
	if err := h.resetRetryCounter(0x00, 0x80, data); err == nil {
		t.Fatal("expected failure when the PUK slot is verified with the user PIN's value")
	}

	correct := append(append([]byte{}, []byte("12345678")...), newPIN...)
	if err := h.resetRetryCounter(0x00, 0x80, correct); err != nil {
		t.Fatalf("unexpected error verifying the real PUK: %v", err)
	}
	if err := h.verify(0x00, 0x80, newPIN); err != nil {
		t.Fatalf("user PIN was not updated by RESET RETRY COUNTER: %v", err)
	}
}

func TestAuthHandler_ResetRetryCounter_UnknownReference(t *testing.T) {
	h := newTestAuthHandler()
	data := append(append([]byte{}, []byte("12345678")...), []byte("11112222")...)
	if err := h.resetRetryCounter(0x00, 0x82, data); err != errReferenceDataNotFound {
		t.Fatalf("got %v, want errReferenceDataNotFound", err)
	}
}
