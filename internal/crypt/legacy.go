package crypt

import (
	"bytes"
	"crypto/md5" //nolint:gosec // Mandated by the legacy key derivation algorithms.
)

// passwordPad is the 32-byte padding string appended to (or standing in
// for) passwords in revisions 2 through 4.
//
// Reference: PDF 1.7 specification, Section 7.6.3.3, Algorithm 2.
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// keyStrengthenRounds is the MD5 re-hash count for revision 3 and up.
const keyStrengthenRounds = 50

// padPassword truncates the password to 32 bytes or pads it with the
// standard padding string up to 32 bytes.
func padPassword(password string) []byte {
	padded := make([]byte, 32)
	n := copy(padded, password)
	copy(padded[n:], passwordPad)
	return padded
}

// legacyKeyLen returns the file key length in bytes: 5 for revision 2,
// /Length-derived otherwise.
func (h *StandardHandler) legacyKeyLen() int {
	if h.params.R == 2 {
		return 5
	}
	return h.params.Length / 8
}

// computeLegacyFileKey derives the file encryption key from a padded
// password.
//
// Reference: PDF 1.7 specification, Section 7.6.3.3, Algorithm 2.
func (h *StandardHandler) computeLegacyFileKey(paddedPassword []byte) []byte {
	hash := md5.New() //nolint:gosec
	hash.Write(paddedPassword)
	hash.Write(h.params.O[:32])

	// /P as a 4-byte little-endian signed value.
	p := uint32(h.params.P) //nolint:gosec // Deliberate truncation to the stored 32-bit form.
	hash.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})

	hash.Write(h.params.ID)

	if h.params.R >= 4 && !h.params.EncryptMetadata {
		hash.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}

	digest := hash.Sum(nil)
	keyLen := h.legacyKeyLen()

	if h.params.R >= 3 {
		for i := 0; i < keyStrengthenRounds; i++ {
			digest2 := md5.Sum(digest[:keyLen]) //nolint:gosec
			digest = digest2[:]
		}
	}

	return digest[:keyLen]
}

// computeUserValidation computes the /U value for a file key.
//
// Revision 2 encrypts the padding string directly (Algorithm 4);
// revision 3 and up hash the padding string with the file ID and run 20
// RC4 passes with XOR-varied keys (Algorithm 5).
func (h *StandardHandler) computeUserValidation(fileKey []byte) []byte {
	if h.params.R == 2 {
		out, _ := rc4Crypt(fileKey, passwordPad)
		return out
	}

	hash := md5.New() //nolint:gosec
	hash.Write(passwordPad)
	hash.Write(h.params.ID)
	digest := hash.Sum(nil)

	out, _ := rc4Crypt(fileKey, digest)
	for i := 1; i <= 19; i++ {
		out, _ = rc4Crypt(xorKey(fileKey, byte(i)), out)
	}

	// The stored /U is 32 bytes; the last 16 are arbitrary padding and
	// are not compared.
	result := make([]byte, 32)
	copy(result, out)
	return result
}

// authenticateLegacy runs the revision 2..4 password checks: user
// password first (Algorithm 6), then owner password (Algorithm 7).
func (h *StandardHandler) authenticateLegacy(password string) (AuthResult, []byte, error) {
	// User password check: derive the key and recompute /U.
	padded := padPassword(password)
	fileKey := h.computeLegacyFileKey(padded)
	computed := h.computeUserValidation(fileKey)

	if legacyUserMatch(h.params.R, computed, h.params.U) {
		return AuthUser, fileKey, nil
	}

	// Owner password check: decrypt /O with the owner-derived RC4 key to
	// recover the user password, then run the user check on that.
	ownerKey := h.computeOwnerKey(padded)

	userPassword := make([]byte, 32)
	copy(userPassword, h.params.O[:32])
	if h.params.R == 2 {
		userPassword, _ = rc4Crypt(ownerKey, userPassword)
	} else {
		for i := 19; i >= 0; i-- {
			userPassword, _ = rc4Crypt(xorKey(ownerKey, byte(i)), userPassword)
		}
	}

	fileKey = h.computeLegacyFileKey(userPassword)
	computed = h.computeUserValidation(fileKey)
	if legacyUserMatch(h.params.R, computed, h.params.U) {
		return AuthOwner, fileKey, nil
	}

	return AuthFailed, nil, nil
}

// computeOwnerKey derives the RC4 key used to wrap the user password
// into /O.
//
// Reference: PDF 1.7 specification, Section 7.6.3.4, Algorithm 3 (steps
// a through d).
func (h *StandardHandler) computeOwnerKey(paddedOwnerPassword []byte) []byte {
	digest := md5.Sum(paddedOwnerPassword) //nolint:gosec
	out := digest[:]

	if h.params.R >= 3 {
		for i := 0; i < keyStrengthenRounds; i++ {
			next := md5.Sum(out) //nolint:gosec
			out = next[:]
		}
	}

	return out[:h.legacyKeyLen()]
}

// legacyUserMatch compares a computed /U against the stored one.
// Revision 3 and up compare only the first 16 bytes.
func legacyUserMatch(revision int, computed, stored []byte) bool {
	if revision == 2 {
		return bytes.Equal(computed[:32], stored[:32])
	}
	return bytes.Equal(computed[:16], stored[:16])
}

// objectKey derives the per-object key for revisions 2 through 4: the
// file key extended with the low bytes of the object and generation
// numbers, plus the AES salt for AESV2, hashed and clamped to 16 bytes.
//
// Reference: PDF 1.7 specification, Section 7.6.2, Algorithm 1.
func (h *StandardHandler) objectKey(objNum, gen int, aes bool) []byte {
	if h.params.R >= 5 {
		// AES-256 uses the file key directly.
		return h.fileKey
	}

	hash := md5.New() //nolint:gosec
	hash.Write(h.fileKey)
	hash.Write([]byte{
		byte(objNum), byte(objNum >> 8), byte(objNum >> 16),
		byte(gen), byte(gen >> 8),
	})
	if aes {
		hash.Write([]byte{0x73, 0x41, 0x6C, 0x54}) // "sAlT"
	}
	digest := hash.Sum(nil)

	keyLen := len(h.fileKey) + 5
	if keyLen > 16 {
		keyLen = 16
	}
	return digest[:keyLen]
}

// xorKey returns key with every byte XORed by b.
func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}
