package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	// MinSecretLen is the minimum device secret length accepted for key
	// derivation.
	MinSecretLen = 32
	// MaxPlaintext is the payload plaintext cap; longer input is silently
	// truncated before encryption, matching the firmware.
	MaxPlaintext = 500

	nonceMaterialSize = 16
	minPayloadSize    = 2 + nonceMaterialSize
)

var (
	ErrWeakSecret         = errors.New("crypto: secret must be at least 32 characters")
	ErrPayloadTooShort    = errors.New("crypto: payload too short")
	ErrInvalidPayloadSize = errors.New("crypto: invalid payload size")
)

// Engine holds the master key derived from a device secret and implements the
// WakeLink payload encryption and signing operations.
//
// The master key is SHA-256 of the UTF-8 secret and is immutable for the
// lifetime of the Engine.
type Engine struct {
	key      [32]byte
	requests atomic.Uint64
}

// New derives an Engine from the device secret.
func New(secret string) (*Engine, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	return &Engine{key: Sum256([]byte(secret))}, nil
}

// EncryptPayload encrypts plaintext into a hex-encoded payload block:
//
//	uint16 big-endian length || ciphertext || 16-byte nonce material
//
// Only the first 12 bytes of the nonce material are used as the cipher nonce;
// the trailing 4 bytes exist for format symmetry with the firmware. Plaintext
// beyond 500 bytes is truncated.
func (e *Engine) EncryptPayload(plaintext string) (string, error) {
	data := []byte(plaintext)
	if len(data) > MaxPlaintext {
		data = data[:MaxPlaintext]
	}

	var material [nonceMaterialSize]byte
	if _, err := rand.Read(material[:]); err != nil {
		return "", fmt.Errorf("crypto: nonce material: %w", err)
	}

	ciphertext := StreamXOR(e.key[:], material[:NonceSize], data)

	packet := make([]byte, 0, 2+len(ciphertext)+nonceMaterialSize)
	packet = binary.BigEndian.AppendUint16(packet, uint16(len(data)))
	packet = append(packet, ciphertext...)
	packet = append(packet, material[:]...)

	e.requests.Add(1)
	return hex.EncodeToString(packet), nil
}

// DecryptPayload reverses EncryptPayload.
//
// The stream cipher has no integrity check of its own: decrypting with the
// wrong key yields garbage, not an error. Tampering is caught only by the
// outer signature, so undecodable UTF-8 in the result is replaced rather than
// rejected, matching the firmware's leniency.
func (e *Engine) DecryptPayload(hexPayload string) (string, error) {
	p, err := hex.DecodeString(hexPayload)
	if err != nil {
		return "", fmt.Errorf("crypto: payload hex: %w", err)
	}
	if len(p) < minPayloadSize {
		return "", ErrPayloadTooShort
	}

	length := int(binary.BigEndian.Uint16(p))
	if length > MaxPlaintext || len(p) < 2+length+nonceMaterialSize {
		return "", ErrInvalidPayloadSize
	}

	ciphertext := p[2 : 2+length]
	// The firmware reads nonce material from the tail, not from the offset
	// after the ciphertext.
	material := p[len(p)-nonceMaterialSize:]

	plain := StreamXOR(e.key[:], material[:NonceSize], ciphertext)
	e.requests.Add(1)
	return strings.ToValidUTF8(string(plain), "�"), nil
}

// Sign returns the hex-encoded HMAC-SHA256 of data under the master key.
func (e *Engine) Sign(data string) string {
	mac := MAC(e.key[:], []byte(data))
	return hex.EncodeToString(mac[:])
}

// Verify reports whether signature matches Sign(data). Hex case is ignored.
func (e *Engine) Verify(data, signature string) bool {
	want := e.Sign(data)
	got := strings.ToLower(signature)
	return len(want) == len(got) && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// RequestCount returns the number of payloads processed by this Engine. The
// counter is informational; the firmware reports its own via crypto_info.
func (e *Engine) RequestCount() uint64 {
	return e.requests.Load()
}
