package piv

import "crypto/subtle"

// PIN MODULE (C2):
// A length-constrained secret with a monotonic retry counter, backed by the
// same ObjectStore as everything else (spec.md §4.6). Two instances exist:
// the user PIN (reference 0x80) and the PUK (reference 0x81).
//
// This module never logs or returns the secret itself; only outcomes and
// retry counts cross the boundary into the dispatcher.

// VerifyOutcome is the result of a PIN verification attempt.
type VerifyOutcome int

const (
	VerifyOK VerifyOutcome = iota
	VerifyAuthFail
	VerifyLengthInvalid
	VerifyIOFail
)

// PIN is a persisted, length-checked secret with a retry counter.
type PIN struct {
	path        string
	minLength   int
	maxLength   int
	maxRetries  int
	isValidated bool
	store       ObjectStore
}

const attrRetriesLeft byte = 0x01

// NewPIN creates a PIN bound to store at path, with the given length bounds
// and retry limit. Install must be called once before use to seed the
// initial secret and retry counter.
func NewPIN(store ObjectStore, path string, minLength, maxLength, maxRetries int) *PIN {
	return &PIN{
		path:       path,
		minLength:  minLength,
		maxLength:  maxLength,
		maxRetries: maxRetries,
		store:      store,
	}
}

// Install seeds the PIN's initial secret and resets its retry counter to the
// maximum, per spec.md §3 Lifecycles.
func (p *PIN) Install(initial []byte) error {
	if err := p.store.WriteFile(p.path, initial); err != nil {
		return err
	}
	return p.store.WriteAttr(p.path, attrRetriesLeft, []byte{byte(p.maxRetries)})
}

// Retries returns the number of verification attempts remaining.
func (p *PIN) Retries() int {
	raw, err := p.store.ReadAttr(p.path, attrRetriesLeft)
	if err != nil || len(raw) == 0 {
		return 0
	}
	return int(raw[0])
}

func (p *PIN) setRetries(n int) error {
	return p.store.WriteAttr(p.path, attrRetriesLeft, []byte{byte(n)})
}

// IsValidated reports whether the most recent verify succeeded and nothing
// has invalidated it since (VERIFY P1=0xFF, a failed verify, or application
// reset/select).
func (p *PIN) IsValidated() bool {
	return p.isValidated
}

// Invalidate clears the validated flag without touching the retry counter,
// as VERIFY with P1=0xFF does.
func (p *PIN) Invalidate() {
	p.isValidated = false
}

// Verify checks candidate against the stored secret. On success, it resets
// the retry counter to the maximum and marks the PIN validated. On failure,
// it decrements the retry counter (never below zero) and leaves the PIN
// unvalidated. A PIN already at zero retries always reports VerifyAuthFail
// with zero retries left, without consulting the stored secret (spec.md §3
// invariant 4: blocked PINs absorb every further attempt).
func (p *PIN) Verify(candidate []byte) (outcome VerifyOutcome, retriesLeft int) {
	if len(candidate) < p.minLength || len(candidate) > p.maxLength {
		return VerifyLengthInvalid, p.Retries()
	}

	retries := p.Retries()
	if retries == 0 {
		p.isValidated = false
		return VerifyAuthFail, 0
	}

	stored, err := p.store.ReadFile(p.path)
	if err != nil {
		return VerifyIOFail, retries
	}

	if constantTimeEqual(stored, candidate) {
		if err := p.setRetries(p.maxRetries); err != nil {
			return VerifyIOFail, retries
		}
		p.isValidated = true
		return VerifyOK, p.maxRetries
	}

	retries--
	if err := p.setRetries(retries); err != nil {
		return VerifyIOFail, retries + 1
	}
	p.isValidated = false
	return VerifyAuthFail, retries
}

// Update replaces the stored secret with newSecret and resets the retry
// counter to the maximum, as a successful CHANGE REFERENCE DATA or RESET
// RETRY COUNTER does.
func (p *PIN) Update(newSecret []byte) (outcome VerifyOutcome) {
	if len(newSecret) < p.minLength || len(newSecret) > p.maxLength {
		return VerifyLengthInvalid
	}
	if err := p.store.WriteFile(p.path, newSecret); err != nil {
		return VerifyIOFail
	}
	if err := p.setRetries(p.maxRetries); err != nil {
		return VerifyIOFail
	}
	return VerifyOK
}

// constantTimeEqual compares two byte slices without leaking timing
// information about the position of the first differing byte, required by
// spec.md's Testable Property 9 for secret comparison.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
