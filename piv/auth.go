package piv

import "pivcard/pkg/iso7816"

// PIN-RELATED HANDLERS (C8): VERIFY, CHANGE REFERENCE DATA, RESET RETRY
// COUNTER. Each wraps a PIN (C2) with the INS-specific P1/P2/Lc validation
// and Status Word mapping spec.md §4.7 spells out.

// authHandler groups the user PIN and PUK this card instance manages.
type authHandler struct {
	userPIN *PIN
	puk     *PIN
}

// verify implements the VERIFY instruction (P2 is always the user PIN
// reference, 0x80 — the PUK has no VERIFY of its own in this card
// application, only RESET RETRY COUNTER).
func (h *authHandler) verify(p1, p2 byte, data []byte) error {
	if p1 != 0x00 && p1 != 0xFF {
		return errWrongP1P2
	}
	if p2 != 0x80 {
		return errReferenceDataNotFound
	}

	if p1 == 0xFF {
		if len(data) != 0 {
			return errWrongLength
		}
		h.userPIN.Invalidate()
		return nil
	}

	if len(data) == 0 {
		if h.userPIN.IsValidated() {
			return nil
		}
		return errAuthFailed(h.userPIN.Retries())
	}
	if len(data) != 8 {
		return errWrongLength
	}

	outcome, retries := h.userPIN.Verify(data)
	return verifyOutcomeToError(outcome, retries)
}

// changeReferenceData implements CHANGE REFERENCE DATA for the user PIN:
// the first 8 bytes of data verify the current PIN, the next 8 become the
// new one.
func (h *authHandler) changeReferenceData(p1, p2 byte, data []byte) error {
	if p1 != 0x00 {
		return errWrongP1P2
	}
	if p2 != 0x80 {
		return errReferenceDataNotFound
	}
	if len(data) != 16 {
		return errWrongLength
	}

	outcome, retries := h.userPIN.Verify(data[:8])
	if err := verifyOutcomeToError(outcome, retries); err != nil {
		return err
	}

	if outcome := h.userPIN.Update(data[8:]); outcome == VerifyLengthInvalid {
		return errWrongLength
	} else if outcome == VerifyIOFail {
		return newCardError(iso7816.SW_ERR_UNKNOWN, "piv: pin store write failed")
	}
	return nil
}

// resetRetryCounter implements RESET RETRY COUNTER. Per the resolution of
// spec.md §9's Open Question, the first 8 bytes of data verify the PUK (not
// the user PIN, as the reference implementation does by mistake); the next
// 8 bytes become the new secret on the reference named by P2.
func (h *authHandler) resetRetryCounter(p1, p2 byte, data []byte) error {
	if p1 != 0x00 {
		return errWrongP1P2
	}
	var target *PIN
	switch p2 {
	case 0x80:
		target = h.userPIN
	case 0x81:
		target = h.puk
	default:
		return errReferenceDataNotFound
	}
	if len(data) != 16 {
		return errWrongLength
	}

	outcome, retries := h.puk.Verify(data[:8])
	if err := verifyOutcomeToError(outcome, retries); err != nil {
		return err
	}

	switch target.Update(data[8:]) {
	case VerifyLengthInvalid:
		return errWrongLength
	case VerifyIOFail:
		return newCardError(iso7816.SW_ERR_UNKNOWN, "piv: pin store write failed")
	default:
		return nil
	}
}

// verifyOutcomeToError maps a PIN VerifyOutcome plus its accompanying
// retries-left count to the Status Word spec.md §4.7/§7 requires.
func verifyOutcomeToError(outcome VerifyOutcome, retriesLeft int) error {
	switch outcome {
	case VerifyOK:
		return nil
	case VerifyLengthInvalid:
		return errWrongLength
	case VerifyIOFail:
		return newCardError(iso7816.SW_ERR_UNKNOWN, "piv: pin store read failed")
	case VerifyAuthFail:
		if retriesLeft == 0 {
			return errAuthenticationBlocked
		}
		return errAuthFailed(retriesLeft)
	default:
		return errAuthenticationBlocked
	}
}
