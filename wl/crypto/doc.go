// Package crypto implements the WakeLink v1.0 cryptographic primitives.
//
// The firmware carries its own SHA-256, ChaCha20 and HMAC-SHA256
// implementations, and the payload format it produces must be matched
// bit-for-bit. The primitives here are therefore written from scratch against
// the published reference vectors rather than delegating to the standard
// library, and the tests cross-check the stream cipher against
// golang.org/x/crypto/chacha20.
//
// A single 32-byte master key, derived as SHA-256 of the device secret,
// serves as both the cipher key and the authentication key. That reuse is
// part of the fixed wire format and must not be strengthened unilaterally.
package crypto
