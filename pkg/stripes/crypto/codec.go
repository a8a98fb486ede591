// Package crypto seals small tokens (source pages, fields-present
// manifests, encrypted parameters) so clients cannot read or forge them.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/stripes-go/stripes/internal/errors"
)

var (
	salt = []byte("stripes.token.v1")
	info = []byte("stripes-go/stripes codec")
)

// Codec encrypts and authenticates tokens with XChaCha20-Poly1305. Tokens are
// URL-safe base64 without padding.
type Codec struct {
	aead        cipher.AEAD
	passthrough bool
}

// NewCodec derives a key from secret with HKDF-SHA256. An empty secret gets
// a random per-process key, so tokens do not survive a restart.
func NewCodec(secret string) (*Codec, error) {
	ikm := []byte(secret)
	if secret == "" {
		ikm = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(ikm); err != nil {
			return nil, errors.Infrastructure("generate encryption key", err)
		}
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), key); err != nil {
		return nil, errors.Infrastructure("derive encryption key", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Infrastructure("create cipher", err)
	}
	return &Codec{aead: aead}, nil
}

// NewPassthrough returns a codec that only base64-encodes. For debugging.
func NewPassthrough() *Codec {
	return &Codec{passthrough: true}
}

// Encrypt seals plaintext into a token
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c.passthrough {
		return base64.RawURLEncoding.EncodeToString([]byte(plaintext)), nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Infrastructure("generate nonce", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any failure is a Tamper error.
func (c *Codec) Decrypt(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", errors.Tamper("token is not valid base64", err)
	}
	if c.passthrough {
		return string(raw), nil
	}

	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", errors.Tamper(fmt.Sprintf("token too short (%d bytes)", len(raw)), nil)
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Tamper("token failed authentication", err)
	}
	return string(plain), nil
}
