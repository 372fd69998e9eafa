package piv

import (
	"crypto/aes"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
)

// attrKeyAlg is the attribute tag carrying a key object's algorithm id,
// matching TAG_KEY_ALG in the reference firmware.
const attrKeyAlg byte = 0x00

// loadRSAPrivateKey reads and decodes the PKCS#1 DER-encoded RSA private key
// stored at path. PIV leaves key-material encoding as a card-internal
// concern (spec.md §1 treats the crypto back-end as an external
// collaborator); PKCS#1 DER is the encoding the Go ecosystem's own
// crypto/x509 speaks natively, so objects are persisted in that form rather
// than a bespoke binary layout.
func loadRSAPrivateKey(store ObjectStore, path string) (*rsa.PrivateKey, error) {
	der, err := store.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return x509.ParsePKCS1PrivateKey(der)
}

// CRYPTO PRIMITIVES (C3):
// Out of scope per spec.md §1 ("the cryptographic primitives ... interfaces
// only"). CryptoBackend is the capability object this module consumes
// (spec.md §9's Redesign Flag); DefaultCryptoBackend implements it directly
// on top of the standard library the way the scwallet secure-channel
// example in this corpus builds AES-CBC directly on crypto/aes — no
// third-party crypto library is idiomatic here, the standard library *is*
// the ecosystem's primitive layer for RSA/DES/AES/RNG.

// CryptoBackend supplies the symmetric/asymmetric primitives PIV's
// authentication handlers need. Every method operates on exactly one block
// (ECB, no chaining) since every PIV challenge/response/witness in this
// module is a single block.
type CryptoBackend interface {
	// RSAPrivate applies the RSA private-key operation (raw, unpadded) used
	// by INTERNAL AUTHENTICATE for sign/decrypt, over a modulus-sized block.
	RSAPrivate(key *rsa.PrivateKey, block []byte) ([]byte, error)
	// TDESEncrypt/TDESDecrypt apply single-block 3DES-ECB under a 24-byte key.
	TDESEncrypt(key, block []byte) ([]byte, error)
	TDESDecrypt(key, block []byte) ([]byte, error)
	// AESEncrypt/AESDecrypt apply single-block AES-128-ECB under a 16-byte key.
	AESEncrypt(key, block []byte) ([]byte, error)
	AESDecrypt(key, block []byte) ([]byte, error)
	// RandFill fills buf with cryptographically random bytes.
	RandFill(buf []byte) error
}

// DefaultCryptoBackend implements CryptoBackend over the Go standard
// library's crypto/rsa, crypto/des, crypto/aes and crypto/rand packages.
type DefaultCryptoBackend struct{}

func (DefaultCryptoBackend) RSAPrivate(key *rsa.PrivateKey, block []byte) ([]byte, error) {
	modulusSize := (key.N.BitLen() + 7) / 8
	if len(block) != modulusSize {
		return nil, fmt.Errorf("piv: rsa block size %d does not match modulus size %d", len(block), modulusSize)
	}
	return rsaPrivateRaw(key, block)
}

func (DefaultCryptoBackend) TDESEncrypt(key, block []byte) ([]byte, error) {
	return tdesCrypt(key, block, true)
}

func (DefaultCryptoBackend) TDESDecrypt(key, block []byte) ([]byte, error) {
	return tdesCrypt(key, block, false)
}

func (DefaultCryptoBackend) AESEncrypt(key, block []byte) ([]byte, error) {
	return aesCrypt(key, block, true)
}

func (DefaultCryptoBackend) AESDecrypt(key, block []byte) ([]byte, error) {
	return aesCrypt(key, block, false)
}

func (DefaultCryptoBackend) RandFill(buf []byte) error {
	_, err := io.ReadFull(rand.Reader, buf)
	return err
}

// tdesCrypt applies single-block (ECB) 3DES under a 24-byte three-key
// (K1||K2||K3) key, matching the admin key layout of spec.md §6.3.
func tdesCrypt(key, block []byte, encrypt bool) ([]byte, error) {
	if len(key) != 24 {
		return nil, fmt.Errorf("piv: 3DES key must be 24 bytes, got %d", len(key))
	}
	cipherBlock, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, err
	}
	if len(block) != cipherBlock.BlockSize() {
		return nil, fmt.Errorf("piv: 3DES block must be %d bytes, got %d", cipherBlock.BlockSize(), len(block))
	}
	out := make([]byte, len(block))
	if encrypt {
		cipherBlock.Encrypt(out, block)
	} else {
		cipherBlock.Decrypt(out, block)
	}
	return out, nil
}

// aesCrypt applies single-block (ECB) AES-128 under a 16-byte key.
func aesCrypt(key, block []byte, encrypt bool) ([]byte, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("piv: AES-128 key must be 16 bytes, got %d", len(key))
	}
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(block) != cipherBlock.BlockSize() {
		return nil, fmt.Errorf("piv: AES block must be %d bytes, got %d", cipherBlock.BlockSize(), len(block))
	}
	out := make([]byte, len(block))
	if encrypt {
		cipherBlock.Encrypt(out, block)
	} else {
		cipherBlock.Decrypt(out, block)
	}
	return out, nil
}

// rsaPrivateRaw performs the unpadded RSA private-key exponentiation
// (m = c^d mod n) used by PIV's INTERNAL AUTHENTICATE for sign/decrypt — the
// host is responsible for padding/unpadding per SP 800-73-4's conventions, so
// this module never touches PKCS#1 padding itself. crypto/rsa exposes only
// padded operations (DecryptPKCS1v15, SignPKCS1v15, ...), none of which fit
// PIV's raw exchange, so the exponentiation is done directly against the
// key's Precomputed CRT parameters when available, falling back to the
// plain d/n pair.
func rsaPrivateRaw(key *rsa.PrivateKey, block []byte) ([]byte, error) {
	c := new(big.Int).SetBytes(block)
	if c.Cmp(key.N) >= 0 {
		return nil, fmt.Errorf("piv: rsa input out of range of modulus")
	}

	var m *big.Int
	if key.Precomputed.Dp != nil && len(key.Primes) == 2 {
		p, q := key.Primes[0], key.Primes[1]
		m1 := new(big.Int).Exp(c, key.Precomputed.Dp, p)
		m2 := new(big.Int).Exp(c, key.Precomputed.Dq, q)
		h := new(big.Int).Sub(m1, m2)
		h.Mul(h, key.Precomputed.Qinv)
		h.Mod(h, p)
		m = new(big.Int).Mul(h, q)
		m.Add(m, m2)
	} else {
		m = new(big.Int).Exp(c, key.D, key.N)
	}

	modulusSize := (key.N.BitLen() + 7) / 8
	out := make([]byte, modulusSize)
	mBytes := m.Bytes()
	if len(mBytes) > modulusSize {
		return nil, fmt.Errorf("piv: rsa result overflows modulus size")
	}
	copy(out[modulusSize-len(mBytes):], mBytes)
	return out, nil
}
