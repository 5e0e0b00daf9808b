// Package cipher wraps a session's payload encryption. Most sessions run
// with encryption disabled, matching the handshake's plain PSK digest
// exchange; when a server-side pre-shared key is configured, payloads are
// sealed with an AEAD derived from it.
package cipher

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

// Overhead is the number of bytes Seal adds to a payload when encryption is
// enabled: a 12-byte nonce prepended for stateless Open, plus the AEAD's
// 16-byte authentication tag.
const Overhead = chacha20poly1305.NonceSize + chacha20poly1305.Overhead

// SessionCipher seals and opens the payloads a session sends and receives
// over its UDP socket. With no configured key it is the identity function;
// this mirrors the handshake's own "encrypt" step, which is a placeholder in
// the protocol this module is grounded on.
//
// Nonces are a 4-byte per-cipher random prefix followed by a big-endian
// send counter, so two sessions sharing a derived key can never collide and
// a single session never reuses a nonce. Seal and Open are safe for
// concurrent use.
type SessionCipher struct {
	aead        cipher.AEAD
	noncePrefix [4]byte
	counter     atomic.Uint64
}

// New builds a SessionCipher. If configuredKey is empty, the returned
// cipher performs no transformation. Otherwise it derives a 256-bit AEAD key
// from the handshake digest and the configured key and seals/opens with it.
func New(handshakeDigest [32]byte, configuredKey string) (*SessionCipher, error) {
	if configuredKey == "" {
		return &SessionCipher{}, nil
	}

	h := sha256.New()
	h.Write(handshakeDigest[:])
	h.Write([]byte(configuredKey))
	key := h.Sum(nil)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, protocol.NewHandshakeFailed("deriving session cipher: " + err.Error())
	}

	c := &SessionCipher{aead: aead}
	if _, err := rand.Read(c.noncePrefix[:]); err != nil {
		return nil, protocol.NewHandshakeFailed("seeding session cipher nonce: " + err.Error())
	}
	return c, nil
}

// Enabled reports whether this cipher actually transforms payloads.
func (c *SessionCipher) Enabled() bool {
	return c.aead != nil
}

func (c *SessionCipher) nextNonce() []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	copy(nonce[:4], c.noncePrefix[:])
	binary.BigEndian.PutUint64(nonce[4:], c.counter.Add(1)-1)
	return nonce
}

// Seal encrypts plaintext for transmission as [nonce || ciphertext || tag],
// or returns it unchanged if encryption is disabled.
func (c *SessionCipher) Seal(plaintext []byte) ([]byte, error) {
	if c.aead == nil {
		return plaintext, nil
	}
	nonce := c.nextNonce()
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload received over the wire, or returns it unchanged
// if encryption is disabled. A payload too short to carry a nonce and tag,
// or one whose tag does not verify, fails with EncryptionError.
func (c *SessionCipher) Open(sealed []byte) ([]byte, error) {
	if c.aead == nil {
		return sealed, nil
	}
	if len(sealed) < Overhead {
		return nil, &protocol.Error{Kind: protocol.EncryptionError, Reason: "sealed payload shorter than nonce and tag"}
	}
	nonce := sealed[:chacha20poly1305.NonceSize]
	out, err := c.aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return nil, &protocol.Error{Kind: protocol.EncryptionError, Reason: "authentication tag mismatch", Err: err}
	}
	return out, nil
}
