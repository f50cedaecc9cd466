// Package transport provides the three WakeLink transport sessions and the
// selection policy between them.
//
// A session sends one framed command and returns the correlated, decoded
// response within a bounded wait. Transport failures (refused connections,
// broken links, rejected handshakes) surface as errors; protocol outcomes
// (success, timeout, queued) surface as result mappings, the way the device
// and relay report them.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/deadboizxc/wakelink/wl/packet"
)

var (
	ErrTimeout           = errors.New("transport: timed out waiting for device")
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrNoResponse        = errors.New("transport: no response from device")
	ErrMissingAddress    = errors.New("transport: device has no IP address for direct mode")
	ErrUnknownMode       = errors.New("transport: unknown mode")
)

// Session is one transport strategy for a single device.
//
// Send is synchronous: it blocks until a correlated response arrives or the
// transport's bounded wait elapses. Sessions are not safe for concurrent
// Send calls; callers must serialize.
type Session interface {
	Send(ctx context.Context, command string, params map[string]any) (packet.Result, error)
	Close() error
}

// newClientID builds the stable per-process client identifier the relay and
// stream transports present to the server: cli_<device>_<8 hex chars>.
func newClientID(deviceID string) string {
	u := uuid.New()
	return fmt.Sprintf("cli_%s_%s", deviceID, hex.EncodeToString(u[:])[:8])
}

func timeoutResult() packet.Result {
	return packet.Result{"status": "timeout", "message": "no response from device"}
}

func orDefaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
