// Package crypto implements the envelope encryption used for item secrets at rest.
//
// A blob is base64(salt ‖ iv ‖ ciphertext ‖ tag). The key is derived per blob
// with PBKDF2-HMAC-SHA512, so decrypting needs only the blob and the password.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Envelope parameters.
const (
	SaltLen    = 16
	IVLen      = 12
	TagLen     = 16
	KeyLen     = 32
	Iterations = 65535
)

var (
	// ErrAuthentication indicates the GCM tag did not verify: wrong password or tampered blob.
	ErrAuthentication = errors.New("crypto: message authentication failed")
	// ErrMalformed indicates the blob is not valid base64 or is too short.
	ErrMalformed = errors.New("crypto: malformed blob")
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeyLen, sha512.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVLen)
}

// Encrypt seals plaintext under password with a fresh salt and IV.
func Encrypt(password, plaintext string) (string, error) {
	salt, err := RandBytes(SaltLen)
	if err != nil {
		return "", err
	}
	iv, err := RandBytes(IVLen)
	if err != nil {
		return "", err
	}
	aead, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, SaltLen+IVLen+len(plaintext)+TagLen)
	out = append(out, salt...)
	out = append(out, iv...)
	// Seal appends ciphertext ‖ tag.
	out = aead.Seal(out, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(password, blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < SaltLen+IVLen+TagLen {
		return "", ErrMalformed
	}
	salt := raw[:SaltLen]
	iv := raw[SaltLen : SaltLen+IVLen]
	sealed := raw[SaltLen+IVLen:]

	aead, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plain), nil
}

// Codec binds the server-wide password so callers never handle it directly.
type Codec struct {
	password string
}

// NewCodec returns a codec for the given password.
func NewCodec(password string) *Codec { return &Codec{password: password} }

// Seal encrypts plaintext.
func (c *Codec) Seal(plaintext string) (string, error) { return Encrypt(c.password, plaintext) }

// Open decrypts a blob.
func (c *Codec) Open(blob string) (string, error) { return Decrypt(c.password, blob) }
