// Package crypt implements the PDF standard security handler: password
// authentication and string/stream decryption for encryption revisions
// 2 through 6 (RC4, AES-128, AES-256).
//
// Reference: PDF 1.7 specification, Section 7.6, and PDF 2.0 (ISO
// 32000-2), Section 7.6.4 for revision 6.
package crypt

import (
	"fmt"
)

// SecurityError reports a failure in the encryption layer: an
// unsupported handler or revision, malformed encryption dictionary
// values, or cipher-level corruption. A wrong password is NOT a
// SecurityError; it is reported through AuthResult.
type SecurityError struct {
	Msg string
	Err error
}

func (e *SecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("security error: %s", e.Msg)
}

func (e *SecurityError) Unwrap() error { return e.Err }

func securityErrorf(format string, args ...any) *SecurityError {
	return &SecurityError{Msg: fmt.Sprintf(format, args...)}
}

// Crypt filter method names from a V4/V5 /CF dictionary.
const (
	CFMV2    = "V2"    // RC4
	CFMAESV2 = "AESV2" // AES-128-CBC
	CFMAESV3 = "AESV3" // AES-256-CBC
	CFMNone  = "None"  // Identity
)

// Params carries the fields of the encryption dictionary plus the
// trailer /ID needed for key derivation. The document layer extracts
// these from parsed objects; this package never sees the object model.
type Params struct {
	Filter string // security handler name, "Standard"
	V      int    // encryption algorithm version (1, 2, 4, 5)
	R      int    // standard handler revision (2..6)
	Length int    // file key length in bits (V2/V4); 40 default

	O, U   []byte // owner and user password validation values
	OE, UE []byte // R5/R6 encrypted file keys
	Perms  []byte // R5/R6 encrypted permissions block
	P      int64  // permission flags (signed 32-bit, sign-extended)

	EncryptMetadata bool

	// StmCFM and StrCFM are the crypt filter methods selected by /StmF
	// and /StrF for V4/V5 dictionaries. For V1/V2 both are CFMV2.
	StmCFM string
	StrCFM string

	// ID is the first element of the trailer /ID array. Key material
	// for legacy revisions.
	ID []byte
}

// AuthResult reports which password, if any, a candidate matched.
type AuthResult int

const (
	// AuthFailed means the password matched neither /U nor /O.
	AuthFailed AuthResult = iota

	// AuthUser means the password matched the user password.
	AuthUser

	// AuthOwner means the password matched the owner password.
	AuthOwner
)

// String returns the string representation of the result.
func (a AuthResult) String() string {
	switch a {
	case AuthUser:
		return "user"
	case AuthOwner:
		return "owner"
	default:
		return "failed"
	}
}

// StandardHandler authenticates passwords and derives the file
// encryption key for the standard security handler.
//
// Authenticate must succeed before the Decrypt methods are usable.
type StandardHandler struct {
	params  Params
	fileKey []byte
	result  AuthResult
}

// NewStandardHandler validates the encryption parameters and creates a
// handler. Unsupported handlers and revisions are rejected here, before
// any password is tried.
func NewStandardHandler(params Params) (*StandardHandler, error) {
	if params.Filter != "Standard" {
		return nil, securityErrorf("unsupported security handler %q", params.Filter)
	}

	switch params.R {
	case 2, 3, 4:
		if len(params.O) < 32 || len(params.U) < 32 {
			return nil, securityErrorf("revision %d requires 32-byte /O and /U", params.R)
		}
	case 5, 6:
		if len(params.O) < 48 || len(params.U) < 48 {
			return nil, securityErrorf("revision %d requires 48-byte /O and /U", params.R)
		}
		if len(params.OE) < 32 || len(params.UE) < 32 {
			return nil, securityErrorf("revision %d requires 32-byte /OE and /UE", params.R)
		}
	default:
		return nil, securityErrorf("unsupported standard handler revision %d", params.R)
	}

	if params.Length == 0 {
		params.Length = 40
	}
	if params.Length%8 != 0 || params.Length < 40 || params.Length > 256 {
		return nil, securityErrorf("invalid key length %d bits", params.Length)
	}

	if params.StmCFM == "" {
		params.StmCFM = defaultCFM(params.V)
	}
	if params.StrCFM == "" {
		params.StrCFM = defaultCFM(params.V)
	}

	return &StandardHandler{params: params}, nil
}

// defaultCFM maps an encryption version to its cipher when no crypt
// filter dictionary narrows it down.
func defaultCFM(v int) string {
	switch v {
	case 5:
		return CFMAESV3
	case 4:
		return CFMAESV2
	default:
		return CFMV2
	}
}

// Authenticate tries a password first as the user password, then as the
// owner password. On success the file key is derived and retained, and
// the result reports which role matched. The empty string is the
// conventional "no password" attempt and frequently succeeds as the
// user password.
func (h *StandardHandler) Authenticate(password string) (AuthResult, error) {
	var result AuthResult
	var key []byte
	var err error

	switch h.params.R {
	case 2, 3, 4:
		result, key, err = h.authenticateLegacy(password)
	default:
		result, key, err = h.authenticateAES256(password)
	}
	if err != nil {
		return AuthFailed, err
	}
	if result == AuthFailed {
		return AuthFailed, nil
	}

	h.fileKey = key
	h.result = result
	return result, nil
}

// Authenticated reports whether a password has been accepted.
func (h *StandardHandler) Authenticated() bool {
	return h.result != AuthFailed
}

// Result returns the role the accepted password matched.
func (h *StandardHandler) Result() AuthResult {
	return h.result
}

// FileKey returns the derived file encryption key. Nil before a
// successful Authenticate.
func (h *StandardHandler) FileKey() []byte {
	return h.fileKey
}

// Permissions returns the /P flags as stored (sign-extended 32-bit).
func (h *StandardHandler) Permissions() int64 {
	return h.params.P
}

// DecryptString decrypts a string object's bytes using the string crypt
// filter.
func (h *StandardHandler) DecryptString(data []byte, objNum, gen int) ([]byte, error) {
	return h.decrypt(data, objNum, gen, h.params.StrCFM)
}

// DecryptStream decrypts a stream object's content using the stream
// crypt filter.
func (h *StandardHandler) DecryptStream(data []byte, objNum, gen int) ([]byte, error) {
	return h.decrypt(data, objNum, gen, h.params.StmCFM)
}

// EncryptString encrypts a string object's bytes, used by the writer
// when saving an encrypted document.
func (h *StandardHandler) EncryptString(data []byte, objNum, gen int) ([]byte, error) {
	return h.encrypt(data, objNum, gen, h.params.StrCFM)
}

// EncryptStream encrypts a stream object's content.
func (h *StandardHandler) EncryptStream(data []byte, objNum, gen int) ([]byte, error) {
	return h.encrypt(data, objNum, gen, h.params.StmCFM)
}

func (h *StandardHandler) decrypt(data []byte, objNum, gen int, cfm string) ([]byte, error) {
	if h.fileKey == nil {
		return nil, securityErrorf("decrypt before successful authentication")
	}

	switch cfm {
	case CFMNone:
		return data, nil
	case CFMV2:
		key := h.objectKey(objNum, gen, false)
		return rc4Crypt(key, data)
	case CFMAESV2:
		key := h.objectKey(objNum, gen, true)
		return aesCBCDecryptPadded(key, data)
	case CFMAESV3:
		return aesCBCDecryptPadded(h.fileKey, data)
	default:
		return nil, securityErrorf("unsupported crypt filter method %q", cfm)
	}
}

func (h *StandardHandler) encrypt(data []byte, objNum, gen int, cfm string) ([]byte, error) {
	if h.fileKey == nil {
		return nil, securityErrorf("encrypt before successful authentication")
	}

	switch cfm {
	case CFMNone:
		return data, nil
	case CFMV2:
		key := h.objectKey(objNum, gen, false)
		return rc4Crypt(key, data)
	case CFMAESV2:
		key := h.objectKey(objNum, gen, true)
		return aesCBCEncryptPadded(key, data)
	case CFMAESV3:
		return aesCBCEncryptPadded(h.fileKey, data)
	default:
		return nil, securityErrorf("unsupported crypt filter method %q", cfm)
	}
}
