// Package packet implements the WakeLink v1.0 two-layer packet format.
//
// The outer envelope is a JSON object carrying a hex-encoded encrypted
// payload and its HMAC signature. The inner envelope, visible only after
// decryption, carries the command or response. The relay server never sees
// the inner layer; the signature covers exactly the hex payload string.
package packet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deadboizxc/wakelink/wl/crypto"
)

// Version1 is the only protocol version spoken by current firmware.
const Version1 = "1.0"

// requestIDLen is the length of the request correlation id: the first 8 hex
// characters of a random 128-bit identifier.
const requestIDLen = 8

var (
	ErrInvalidSignature = errors.New("packet: invalid signature")
	ErrMalformedInner   = errors.New("packet: malformed inner envelope")
)

// MissingFieldError reports an outer envelope missing a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("packet: missing field %q", e.Field)
}

// Envelope is the outer transport wrapper. Counter is a pointer so that an
// absent field and a zero counter remain distinguishable, as the firmware
// only sometimes includes it.
type Envelope struct {
	DeviceID  string `json:"device_id"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
	Counter   *int64 `json:"counter,omitempty"`
}

// Marshal serializes the envelope with no extraneous whitespace.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// innerCommand is the client→device inner envelope. Field order matches the
// firmware's serialization.
type innerCommand struct {
	Command   string         `json:"command"`
	Data      map[string]any `json:"data"`
	RequestID string         `json:"request_id"`
	Timestamp int64          `json:"timestamp"`
}

// Result is a decoded response mapping, conventionally carrying a "status"
// key plus command-specific fields.
type Result = map[string]any

// Codec builds and parses envelopes for one device using one derived key.
type Codec struct {
	engine   *crypto.Engine
	deviceID string
}

// NewCodec derives a Codec from the device secret. Fails with
// crypto.ErrWeakSecret for secrets under 32 characters.
func NewCodec(secret, deviceID string) (*Codec, error) {
	engine, err := crypto.New(secret)
	if err != nil {
		return nil, err
	}
	return &Codec{engine: engine, deviceID: deviceID}, nil
}

// DeviceID returns the device identifier stamped into outgoing envelopes.
func (c *Codec) DeviceID() string { return c.deviceID }

// Engine exposes the underlying crypto engine, mainly for its request
// counter.
func (c *Codec) Engine() *crypto.Engine { return c.engine }

// NewRequestID generates a request correlation id.
func NewRequestID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:requestIDLen]
}

// EncodeCommand builds a signed, encrypted command envelope. The generated
// request id is returned alongside so callers can correlate the response
// without decrypting their own packet.
func (c *Codec) EncodeCommand(command string, params map[string]any) (Envelope, string, error) {
	if params == nil {
		params = map[string]any{}
	}
	requestID := NewRequestID()
	inner := innerCommand{
		Command:   command,
		Data:      params,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}

	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("packet: marshal inner: %w", err)
	}
	return c.wrap(innerJSON, requestID)
}

// EncodeResponse builds a device→client response envelope. A timestamp is
// added when absent; responses carry no request id requirement of their own.
func (c *Codec) EncodeResponse(data map[string]any) (Envelope, error) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = time.Now().Unix()
	}
	innerJSON, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("packet: marshal response: %w", err)
	}
	env, _, err := c.wrap(innerJSON, "")
	return env, err
}

func (c *Codec) wrap(innerJSON []byte, requestID string) (Envelope, string, error) {
	payload, err := c.engine.EncryptPayload(string(innerJSON))
	if err != nil {
		return Envelope{}, "", err
	}
	return Envelope{
		DeviceID:  c.deviceID,
		Payload:   payload,
		Signature: c.engine.Sign(payload),
		Version:   Version1,
	}, requestID, nil
}

// Decode parses a raw JSON outer envelope and returns the decoded result.
func (c *Codec) Decode(raw []byte) (Result, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("packet: parse outer: %w", err)
	}
	return c.DecodeEnvelope(env)
}

// DecodeEnvelope verifies, decrypts and parses an outer envelope.
//
// The signature is verified over the hex payload string before any
// decryption is attempted. On success the result merges
// {status: success}, the outer counter when present, and every inner field.
func (c *Codec) DecodeEnvelope(env Envelope) (Result, error) {
	if env.DeviceID == "" {
		return nil, &MissingFieldError{Field: "device_id"}
	}
	if env.Payload == "" {
		return nil, &MissingFieldError{Field: "payload"}
	}
	if env.Signature == "" {
		return nil, &MissingFieldError{Field: "signature"}
	}

	if !c.engine.Verify(env.Payload, env.Signature) {
		return nil, ErrInvalidSignature
	}

	plain, err := c.engine.DecryptPayload(env.Payload)
	if err != nil {
		return nil, err
	}

	var inner map[string]any
	if err := json.Unmarshal([]byte(plain), &inner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInner, err)
	}

	result := Result{"status": "success"}
	if env.Counter != nil {
		result["counter"] = *env.Counter
	}
	for k, v := range inner {
		result[k] = v
	}
	return result, nil
}
