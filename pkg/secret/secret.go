package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// ErrDecryptionFailed is returned for any malformed ciphertext, wrong key
// size or bad padding. Callers treat it as a hard stop: a credential that
// fails to decrypt must never be sent upstream as-is.
var ErrDecryptionFailed = errors.New("secret: decryption failed")

// Decrypter decodes AES-256-CBC encrypted, base64 wrapped credential values.
type Decrypter struct {
	key []byte
	iv  []byte
}

// NewDecrypter builds a Decrypter from hex-encoded key and IV material.
func NewDecrypter(keyHex, ivHex string) (*Decrypter, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, ErrDecryptionFailed
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrDecryptionFailed
	}
	return &Decrypter{key: key, iv: iv}, nil
}

// Decrypt decodes a base64 wrapped AES-256-CBC ciphertext and strips PKCS#7
// padding. An empty input decrypts to an empty string.
func (d *Decrypter) Decrypt(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrDecryptionFailed
	}
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	buf := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, d.iv).CryptBlocks(buf, raw)
	out, err := unpadPKCS7(buf)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(out), nil
}

// Encrypt is the inverse of Decrypt. It exists for tests and for the settings
// surface that stores credentials encrypted at rest.
func (d *Decrypter) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	padded := padPKCS7([]byte(plain), aes.BlockSize)
	buf := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, d.iv).CryptBlocks(buf, padded)
	return base64.StdEncoding.EncodeToString(buf), nil
}

func padPKCS7(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpadPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrDecryptionFailed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}
