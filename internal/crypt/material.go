package crypt

import (
	"crypto/rand"
)

// Material is a freshly generated set of encryption dictionary values
// for writing an encrypted document.
type Material struct {
	O, U   []byte
	OE, UE []byte
	Perms  []byte
	Key    []byte // the file encryption key
}

// GenerateLegacy produces /O and /U values and the file key for
// revisions 2 through 4 from a user and owner password.
//
// Reference: PDF 1.7 specification, Section 7.6.3.4, Algorithms 3
// through 5.
func GenerateLegacy(params Params, userPassword, ownerPassword string) (*Material, error) {
	if params.R < 2 || params.R > 4 {
		return nil, securityErrorf("GenerateLegacy requires revision 2..4, got %d", params.R)
	}
	if ownerPassword == "" {
		ownerPassword = userPassword
	}

	h := &StandardHandler{params: params}
	if h.params.Length == 0 {
		h.params.Length = 40
	}

	// Algorithm 3: /O wraps the padded user password under the
	// owner-derived RC4 key.
	ownerKey := h.computeOwnerKey(padPassword(ownerPassword))
	o, err := rc4Crypt(ownerKey, padPassword(userPassword))
	if err != nil {
		return nil, err
	}
	if params.R >= 3 {
		for i := 1; i <= 19; i++ {
			o, err = rc4Crypt(xorKey(ownerKey, byte(i)), o)
			if err != nil {
				return nil, err
			}
		}
	}
	h.params.O = o

	// Algorithm 2 now has its /O input; derive the file key and /U.
	fileKey := h.computeLegacyFileKey(padPassword(userPassword))
	u := h.computeUserValidation(fileKey)

	return &Material{O: o, U: u, Key: fileKey}, nil
}

// GenerateAES256 produces the /O, /U, /OE, /UE and /Perms values and a
// random 256-bit file key for revision 6.
//
// Reference: PDF 2.0 (ISO 32000-2), Section 7.6.4.4, Algorithms 8
// through 10.
func GenerateAES256(params Params, userPassword, ownerPassword string) (*Material, error) {
	if params.R != 5 && params.R != 6 {
		return nil, securityErrorf("GenerateAES256 requires revision 5 or 6, got %d", params.R)
	}
	if ownerPassword == "" {
		ownerPassword = userPassword
	}

	h := &StandardHandler{params: params}

	fileKey := make([]byte, 32)
	if _, err := rand.Read(fileKey); err != nil {
		return nil, &SecurityError{Msg: "failed to generate file key", Err: err}
	}

	userPwd := truncatePassword(userPassword)
	ownerPwd := truncatePassword(ownerPassword)

	salts := make([]byte, 32)
	if _, err := rand.Read(salts); err != nil {
		return nil, &SecurityError{Msg: "failed to generate salts", Err: err}
	}

	// /U: hash + validation salt + key salt; /UE wraps the file key
	// under the intermediate key from the key salt.
	u := concat(h.hash2B(userPwd, salts[0:8], nil), salts[0:8], salts[8:16])
	ue, err := aesCBCNoPad(h.hash2B(userPwd, salts[8:16], nil), make([]byte, 16), fileKey, true)
	if err != nil {
		return nil, err
	}

	// /O and /OE mix the full /U value into the owner hashes.
	o := concat(h.hash2B(ownerPwd, salts[16:24], u), salts[16:24], salts[24:32])
	oe, err := aesCBCNoPad(h.hash2B(ownerPwd, salts[24:32], u), make([]byte, 16), fileKey, true)
	if err != nil {
		return nil, err
	}

	perms, err := encodePerms(params, fileKey)
	if err != nil {
		return nil, err
	}

	return &Material{O: o, U: u, OE: oe, UE: ue, Perms: perms, Key: fileKey}, nil
}

// encodePerms builds and encrypts the 16-byte /Perms block.
func encodePerms(params Params, fileKey []byte) ([]byte, error) {
	p := uint32(params.P) //nolint:gosec // Stored 32-bit form.
	block := []byte{
		byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24),
		0xFF, 0xFF, 0xFF, 0xFF,
		'T', 'a', 'd', 'b',
		0, 0, 0, 0,
	}
	if !params.EncryptMetadata {
		block[8] = 'F'
	}

	// ECB over a single block: encrypt in place with a zero IV CBC.
	return aesCBCNoPad(fileKey, make([]byte, 16), block, true)
}

// truncatePassword clamps a password to the 127-byte UTF-8 limit.
func truncatePassword(password string) []byte {
	pwd := []byte(password)
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	return pwd
}
