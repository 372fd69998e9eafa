package piv

import "pivcard/pkg/tlv"

// GENERAL AUTHENTICATE STATE MACHINE (C9):
// The multiplexed internal/external/mutual authenticate protocol over the
// `7C` dynamic authentication template. Child tags live in a sparse 6-slot
// index keyed by `tag - 0x80` (0x80 witness, 0x81 challenge, 0x82 response,
// 0x85 exp; 0x83 and 0x84 are recorded but not used), mirroring
// piv_general_authenticate's pos[]/len[] arrays — a direct array beats a map
// here because the tag space is fixed and tiny, and the reference firmware's
// own indexing trick (`tag - 0x80`) is exactly what this models.

const (
	idxWitness   = 0x80 - 0x80
	idxChallenge = 0x81 - 0x80
	idxResponse  = 0x82 - 0x80
	idxExp       = 0x85 - 0x80
)

// authChild records one child TLV's value slice within the command buffer;
// present distinguishes "absent" from "present with zero length" (the two
// carry different meanings throughout this protocol).
type authChild struct {
	present bool
	value   []byte
}

// authChildTags lists every child tag this protocol ever looks for, in
// tag - 0x80 index order.
var authChildTags = [6]byte{0x80, 0x81, 0x82, 0x83, 0x84, 0x85}

// parseAuthTemplate indexes the children of a `7C`-tagged dynamic
// authentication template by tag - 0x80, decoding the children via
// tlv.GetValue (which wraps bertlv.Decode) instead of hand-walking
// tag/length bytes; only the outer `7C` length is read with tlv.LengthOf.
func parseAuthTemplate(data []byte) (children [6]authChild, err error) {
	if len(data) == 0 || data[0] != 0x7C {
		return children, errWrongData
	}
	outerLen, outerHeader, err := tlv.LengthOf(data[1:])
	if err != nil {
		return children, errWrongData
	}
	pos := 1 + outerHeader
	end := pos + outerLen
	if end > len(data) {
		return children, errWrongData
	}
	inner := data[pos:end]

	for _, tag := range authChildTags {
		value, err := tlv.GetValue(inner, uint(tag))
		if err != nil {
			continue
		}
		children[tag-0x80] = authChild{present: true, value: value}
	}
	return children, nil
}

// keyPathForReference maps P2's key reference byte to its ObjectStore path.
func keyPathForReference(p2 byte) (string, bool) {
	switch p2 {
	case 0x9A:
		return keyPIVAuth, true
	case 0x9B:
		return keyCardAdmin, true
	case 0x9C:
		return keySig, true
	case 0x9D:
		return keyKeyManagement, true
	case 0x9E:
		return keyCardAuth, true
	default:
		return "", false
	}
}

// blockSizeForAlg returns the symmetric block size used by challenge/
// response/witness exchanges for alg, or 0 if alg has no fixed block size
// (the RSA path instead uses the modulus size, handled separately).
func blockSizeForAlg(alg byte) int {
	switch alg {
	case algDefault, algTDEA3Key:
		return 8
	case algAES128:
		return 16
	default:
		return 0
	}
}

const (
	algDefault  = 0x00
	algTDEA3Key = 0x03
	algRSA2048  = 0x07
	algAES128   = 0x08
	algECC256   = 0x11
)

// rsa2048ModulusSize is the byte length of an RSA-2048 modulus, the required
// internal-authenticate challenge length for algRSA2048 (spec.md:148).
const rsa2048ModulusSize = 256

// expectedChallengeLen returns the exact challenge length internal
// authenticate requires for alg: the symmetric block size, or the modulus
// size for RSA. A challenge of any other length is case 6 (invalid), per
// spec.md:148/161.
func expectedChallengeLen(alg byte) int {
	if alg == algRSA2048 {
		return rsa2048ModulusSize
	}
	return blockSizeForAlg(alg)
}

// generalAuthHandler implements GENERAL AUTHENTICATE's case-multiplexed
// state machine over a CryptoBackend and the volatile Auth Context.
type generalAuthHandler struct {
	store  ObjectStore
	crypto CryptoBackend
	admin  *bool
}

// generalAuthenticate dispatches to the appropriate authenticate case and
// returns the framed `7C ...` response bytes, mutating authCtx in place.
func (h *generalAuthHandler) generalAuthenticate(p1, p2 byte, data []byte, authCtx *AuthContext) ([]byte, error) {
	children, err := parseAuthTemplate(data)
	if err != nil {
		return nil, err
	}

	keyPath, ok := keyPathForReference(p2)
	if !ok {
		return nil, errWrongP1P2
	}
	algRaw, err := h.store.ReadAttr(keyPath, attrKeyAlg)
	if err != nil || len(algRaw) == 0 {
		return nil, errInternal("piv: key algorithm unreadable")
	}
	alg := algRaw[0]
	if !(p1 == algDefault && alg == algTDEA3Key) && p1 != alg {
		return nil, errWrongP1P2
	}

	witness := children[idxWitness]
	challenge := children[idxChallenge]
	response := children[idxResponse]

	switch {
	case challenge.present && len(challenge.value) == expectedChallengeLen(alg) && response.present && len(response.value) == 0:
		return h.internalAuthenticate(p1, p2, alg, keyPath, challenge.value, authCtx)

	case challenge.present && len(challenge.value) == 0:
		return h.externalAuthRequest(p2, alg, keyPath, authCtx)

	case response.present && len(response.value) > 0:
		return h.externalAuthResponse(p2, alg, response.value, authCtx)

	case witness.present && len(witness.value) == 0:
		return h.mutualAuthRequest(p2, alg, keyPath, authCtx)

	case witness.present && len(witness.value) > 0 && challenge.present && len(challenge.value) > 0:
		return h.mutualAuthResponse(p2, alg, keyPath, witness.value, challenge.value, authCtx)

	default:
		authCtx.Reset()
		return nil, errWrongData
	}
}

// internalAuthenticate is GENERAL AUTHENTICATE case 1: the card applies its
// private key to a host-supplied challenge (sign or decrypt), used for
// PIV_AUTH (0x9A) and CARD_AUTH (0x9E) only.
func (h *generalAuthHandler) internalAuthenticate(p1, p2, alg byte, keyPath string, challenge []byte, authCtx *AuthContext) ([]byte, error) {
	authCtx.Reset()
	if p2 != 0x9A && p2 != 0x9E {
		return nil, errSecurityStatusNotSat
	}

	result, err := h.applyPrivateKey(alg, keyPath, challenge)
	if err != nil {
		return nil, err
	}
	return frameAuthResponse(0x82, result), nil
}

// externalAuthRequest is GENERAL AUTHENTICATE case 2: the card issues a
// fresh random challenge and remembers the expected encrypted response.
func (h *generalAuthHandler) externalAuthRequest(p2, alg byte, keyPath string, authCtx *AuthContext) ([]byte, error) {
	authCtx.Reset()
	if p2 != 0x9B {
		return nil, errSecurityStatusNotSat
	}

	length := blockSizeForAlg(alg)
	if length == 0 {
		return nil, errSecurityStatusNotSat
	}
	challenge := make([]byte, length)
	if err := h.crypto.RandFill(challenge); err != nil {
		return nil, errInternal("piv: rng failure")
	}

	expected, err := h.encryptBlock(alg, keyPath, challenge)
	if err != nil {
		return nil, err
	}

	authCtx.State = AuthStateExternal
	authCtx.KeyID = p2
	authCtx.Algo = alg
	authCtx.Challenge = expected

	return frameAuthResponse(0x81, challenge), nil
}

// externalAuthResponse is GENERAL AUTHENTICATE case 3: the host returns the
// encrypted challenge; on an exact constant-time match, the card admits
// admin status.
func (h *generalAuthHandler) externalAuthResponse(p2, alg byte, response []byte, authCtx *AuthContext) ([]byte, error) {
	length := blockSizeForAlg(alg)
	ok := authCtx.State == AuthStateExternal &&
		authCtx.KeyID == p2 &&
		authCtx.Algo == alg &&
		len(response) == length &&
		constantTimeEqual(authCtx.Challenge, response)

	authCtx.Reset()
	if !ok {
		return nil, errSecurityStatusNotSat
	}
	*h.admin = true
	return nil, nil
}

// mutualAuthRequest is GENERAL AUTHENTICATE case 4 (supplemented per
// SPEC_FULL.md §4.8): the card generates a witness, returns it encrypted,
// and remembers the plaintext for the client to echo back.
func (h *generalAuthHandler) mutualAuthRequest(p2, alg byte, keyPath string, authCtx *AuthContext) ([]byte, error) {
	authCtx.Reset()
	if p2 != 0x9B {
		return nil, errSecurityStatusNotSat
	}

	length := blockSizeForAlg(alg)
	if length == 0 {
		return nil, errSecurityStatusNotSat
	}
	witness := make([]byte, length)
	if err := h.crypto.RandFill(witness); err != nil {
		return nil, errInternal("piv: rng failure")
	}

	encryptedWitness, err := h.encryptBlock(alg, keyPath, witness)
	if err != nil {
		return nil, err
	}

	authCtx.State = AuthStateMutual
	authCtx.KeyID = p2
	authCtx.Algo = alg
	authCtx.Challenge = witness

	return frameAuthResponse(0x80, encryptedWitness), nil
}

// mutualAuthResponse is GENERAL AUTHENTICATE case 5 (supplemented): the host
// returns the decrypted witness plus its own challenge; on a match the card
// encrypts the host's challenge back. This never sets admin status —
// invariant 7 restricts that to external authenticate alone.
func (h *generalAuthHandler) mutualAuthResponse(p2, alg byte, keyPath string, witness, hostChallenge []byte, authCtx *AuthContext) ([]byte, error) {
	length := blockSizeForAlg(alg)
	ok := authCtx.State == AuthStateMutual &&
		authCtx.KeyID == p2 &&
		authCtx.Algo == alg &&
		len(witness) == length &&
		constantTimeEqual(authCtx.Challenge, witness)

	authCtx.Reset()
	if !ok {
		return nil, errSecurityStatusNotSat
	}
	if len(hostChallenge) != length {
		return nil, errSecurityStatusNotSat
	}

	encryptedChallenge, err := h.encryptBlock(alg, keyPath, hostChallenge)
	if err != nil {
		return nil, err
	}
	return frameAuthResponse(0x82, encryptedChallenge), nil
}

// applyPrivateKey performs the asymmetric private-key operation for
// internal authenticate. Only RSA-2048 is meaningful here (3DES/AES-128
// internal authenticate has no PIV use case in this module).
func (h *generalAuthHandler) applyPrivateKey(alg byte, keyPath string, challenge []byte) ([]byte, error) {
	if alg != algRSA2048 {
		return nil, errSecurityStatusNotSat
	}
	key, err := loadRSAPrivateKey(h.store, keyPath)
	if err != nil {
		return nil, errInternal("piv: key material unreadable")
	}
	result, err := h.crypto.RSAPrivate(key, challenge)
	if err != nil {
		return nil, errInternal("piv: rsa operation failed")
	}
	return result, nil
}

// encryptBlock applies the single-block symmetric cipher selected by alg
// (3DES or AES-128) to encrypt a challenge/witness under the key at
// keyPath, implementing the AES-128 branch the reference firmware leaves
// as a TODO.
func (h *generalAuthHandler) encryptBlock(alg byte, keyPath string, plain []byte) ([]byte, error) {
	switch alg {
	case algTDEA3Key:
		key, err := h.store.ReadFile(keyPath)
		if err != nil {
			return nil, errInternal("piv: key material unreadable")
		}
		out, err := h.crypto.TDESEncrypt(key, plain)
		if err != nil {
			return nil, errInternal("piv: 3des operation failed")
		}
		return out, nil
	case algAES128:
		key, err := h.store.ReadFile(keyPath)
		if err != nil {
			return nil, errInternal("piv: key material unreadable")
		}
		out, err := h.crypto.AESEncrypt(key, plain)
		if err != nil {
			return nil, errInternal("piv: aes operation failed")
		}
		return out, nil
	default:
		return nil, errSecurityStatusNotSat
	}
}

// frameAuthResponse wraps value under childTag inside the `7C` dynamic
// authentication template the protocol always replies with, encoding both
// lengths in their shortest valid BER-TLV form (the RSA-2048 response
// alone runs to 256 bytes, past the single-byte length form).
func frameAuthResponse(childTag byte, value []byte) []byte {
	innerLen, err := tlv.EncodeLength(len(value), false)
	if err != nil {
		return nil
	}
	inner := make([]byte, 0, 1+len(innerLen)+len(value))
	inner = append(inner, childTag)
	inner = append(inner, innerLen...)
	inner = append(inner, value...)

	outerLen, err := tlv.EncodeLength(len(inner), false)
	if err != nil {
		return nil
	}
	out := make([]byte, 0, 1+len(outerLen)+len(inner))
	out = append(out, 0x7C)
	out = append(out, outerLen...)
	out = append(out, inner...)
	return out
}

// AuthContext is the volatile multi-phase authenticate state spec.md §3
// names: which protocol is mid-flight, against which key, and the
// challenge/witness value the next phase must match.
type AuthContext struct {
	State     AuthState
	KeyID     byte
	Algo      byte
	Challenge []byte
}

// Reset clears the Auth Context to AuthStateNone, as required on
// completion, abandonment, or any protocol violation.
func (a *AuthContext) Reset() {
	a.State = AuthStateNone
	a.KeyID = 0
	a.Algo = 0
	a.Challenge = nil
}

// AuthState names which phase of a multi-step authenticate protocol is
// pending, if any.
type AuthState int

const (
	AuthStateNone AuthState = iota
	AuthStateExternal
	AuthStateMutual
)
