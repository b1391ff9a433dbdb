package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4" //nolint:gosec // Mandated by encryption revisions 2 through 4.
)

// rc4Crypt applies RC4 to data. RC4 is symmetric, so this both encrypts
// and decrypts.
func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key) //nolint:gosec
	if err != nil {
		return nil, &SecurityError{Msg: "invalid RC4 key", Err: err}
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesCBCDecryptPadded decrypts AES-CBC data laid out as a 16-byte IV
// followed by the ciphertext, stripping the trailing PKCS#7 padding.
//
// Reference: PDF 1.7 specification, Section 7.6.2 (AESV2) — "the block
// cipher mode is CBC with a 16-byte random initialization vector stored
// as the first 16 bytes of the encrypted data".
func aesCBCDecryptPadded(key, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, securityErrorf("AES data length %d is not IV plus whole blocks", len(data))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &SecurityError{Msg: "invalid AES key", Err: err}
	}

	iv := data[:aes.BlockSize]
	ct := data[aes.BlockSize:]

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	// Strip PKCS#7 padding. Tolerate a malformed final byte by keeping
	// the data rather than failing the whole object.
	pad := int(out[len(out)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(out) {
		return out, nil
	}
	return out[:len(out)-pad], nil
}

// aesCBCEncryptPadded encrypts data with AES-CBC, prefixing a random IV
// and applying PKCS#7 padding.
func aesCBCEncryptPadded(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &SecurityError{Msg: "invalid AES key", Err: err}
	}

	pad := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, &SecurityError{Msg: "failed to generate IV", Err: err}
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// aesCBCNoPad runs AES-CBC over whole blocks with an explicit IV and no
// padding, as the key-derivation and key-wrapping steps require.
func aesCBCNoPad(key, iv, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &SecurityError{Msg: "invalid AES key", Err: err}
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, securityErrorf("AES data length %d is not block-aligned", len(data))
	}

	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

// aesECBDecrypt decrypts whole blocks in ECB mode, used only for the
// 16-byte /Perms value.
func aesECBDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &SecurityError{Msg: "invalid AES key", Err: err}
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, securityErrorf("AES data length %d is not block-aligned", len(data))
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return out, nil
}
