package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/deadboizxc/wakelink/wl/packet"
)

const (
	// DefaultConnectTimeout bounds the WebSocket dial and handshake.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultWelcomeTimeout bounds the wait for the server's greeting after
	// connecting. Servers that send nothing are still accepted.
	DefaultWelcomeTimeout = 3 * time.Second
	// DefaultResponseTimeout bounds the wait for a correlated response.
	DefaultResponseTimeout = 30 * time.Second
)

// StreamState is the connection lifecycle of a Stream session.
type StreamState int

const (
	StateDisconnected StreamState = iota
	StateConnecting
	StateAuthPending
	StateConnected
)

func (s StreamState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthPending:
		return "auth_pending"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stream is the persistent WebSocket transport. It keeps one connection per
// session, multiplexes envelope frames over it and correlates responses by
// request id. When the stream cannot be established the call degrades to the
// HTTP relay, if one is configured.
type Stream struct {
	codec    *packet.Codec
	wssURL   string
	httpURL  string
	apiToken string
	clientID string

	connectTimeout  time.Duration
	welcomeTimeout  time.Duration
	responseTimeout time.Duration
	hc              *http.Client
	logger          *slog.Logger

	mu       sync.Mutex
	state    StreamState
	conn     *websocket.Conn
	frames   chan streamFrame
	fallback *Relay
}

// StreamOptions tune a Stream session. Zero values select the defaults.
type StreamOptions struct {
	// HTTPURL enables relay fallback when the stream cannot connect.
	HTTPURL  string
	APIToken string

	ConnectTimeout  time.Duration
	WelcomeTimeout  time.Duration
	ResponseTimeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewStream(codec *packet.Codec, wssURL string, opts StreamOptions) *Stream {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.WelcomeTimeout == 0 {
		opts.WelcomeTimeout = DefaultWelcomeTimeout
	}
	if opts.ResponseTimeout == 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	return &Stream{
		codec:           codec,
		wssURL:          wssURL,
		httpURL:         opts.HTTPURL,
		apiToken:        opts.APIToken,
		clientID:        newClientID(codec.DeviceID()),
		connectTimeout:  opts.ConnectTimeout,
		welcomeTimeout:  opts.WelcomeTimeout,
		responseTimeout: opts.ResponseTimeout,
		hc:              opts.HTTPClient,
		logger:          orDefaultLogger(opts.Logger),
	}
}

// State returns the current connection state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientID returns the session-scoped identifier in the stream endpoint path.
func (s *Stream) ClientID() string { return s.clientID }

// streamFrame is the superset of every frame the stream server sends: control
// messages carry type/status, delivery reports carry the delivered/queued
// booleans, envelope frames carry payload and signature. The booleans are
// pointers so an absent field stays distinguishable from false.
type streamFrame struct {
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Delivered *bool  `json:"delivered,omitempty"`
	Queued    *bool  `json:"queued,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Signature string `json:"signature,omitempty"`
	Version   string `json:"version,omitempty"`
}

type streamAuth struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type streamEnvelope struct {
	DeviceID  string `json:"device_id"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
	ClientID  string `json:"client_id"`
}

// Send writes the encoded command over the stream and waits for the
// correlated response. A connect failure falls back to the HTTP relay when
// one is configured. Exhausting the response wait closes the connection and
// returns {status: timeout}; a queued delivery report returns
// {status: queued} so the caller can retry once the device reconnects.
func (s *Stream) Send(ctx context.Context, command string, params map[string]any) (packet.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.connectLocked(ctx); err != nil {
			if relay := s.fallbackLocked(); relay != nil {
				s.logger.Warn("stream unavailable, falling back to relay", "error", err)
				return relay.Send(ctx, command, params)
			}
			return nil, err
		}
	}

	env, requestID, err := s.codec.EncodeCommand(command, params)
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	err = wsjson.Write(writeCtx, s.conn, streamEnvelope{
		DeviceID:  env.DeviceID,
		Payload:   env.Payload,
		Signature: env.Signature,
		Version:   env.Version,
		ClientID:  s.clientID,
	})
	cancel()
	if err != nil {
		s.closeLocked(websocket.StatusProtocolError, "write failed")
		return nil, fmt.Errorf("transport: stream write: %w", err)
	}

	return s.awaitResponseLocked(ctx, requestID)
}

// awaitResponseLocked drains frames until the correlated response arrives or
// the response window elapses. Control frames are skipped; delivery acks
// either extend the wait (delivered) or end it (queued).
func (s *Stream) awaitResponseLocked(ctx context.Context, requestID string) (packet.Result, error) {
	timer := time.NewTimer(s.responseTimeout)
	defer timer.Stop()

	for {
		var frame streamFrame
		var ok bool
		select {
		case <-ctx.Done():
			s.closeLocked(websocket.StatusNormalClosure, "cancelled")
			return nil, ctx.Err()
		case <-timer.C:
			s.closeLocked(websocket.StatusNormalClosure, "response timeout")
			return timeoutResult(), nil
		case frame, ok = <-s.frames:
			if !ok {
				s.closeLocked(websocket.StatusAbnormalClosure, "connection lost")
				return nil, fmt.Errorf("transport: stream closed while waiting: %w", ErrNoResponse)
			}
		}

		switch frame.Type {
		case "welcome", "status", "ping", "pong", "ack":
			continue
		}
		if frame.Status == "connected" {
			continue
		}
		// Delivery report: {"status":"success","delivered":bool[,"queued":bool]},
		// with queued defaulting to the inverse of delivered.
		if frame.Status == "success" && frame.Delivered != nil {
			queued := !*frame.Delivered
			if frame.Queued != nil {
				queued = *frame.Queued
			}
			if queued {
				id := frame.RequestID
				if id == "" {
					id = requestID
				}
				s.logger.Info("device offline, command queued", "request_id", id)
				return packet.Result{
					"status":     "queued",
					"message":    "device offline, command queued for delivery",
					"request_id": id,
				}, nil
			}
			// Delivered: the device payload is still on its way.
			continue
		}
		if frame.Payload == "" || frame.Signature == "" {
			continue
		}

		version := frame.Version
		if version == "" {
			version = packet.Version1
		}
		result, err := s.codec.DecodeEnvelope(packet.Envelope{
			DeviceID:  s.codec.DeviceID(),
			Payload:   frame.Payload,
			Signature: frame.Signature,
			Version:   version,
		})
		if err != nil {
			s.logger.Debug("stream frame did not decode", "error", err)
			continue
		}
		if requestID == "" || result["request_id"] == requestID {
			return result, nil
		}
	}
}

// connectLocked dials the stream endpoint, sends the auth frame, starts the
// reader and consumes the server greeting. An explicit error status in the
// greeting aborts the session; a silent server is accepted after the welcome
// window.
func (s *Stream) connectLocked(ctx context.Context) error {
	s.state = StateConnecting

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiToken)
	header.Set("X-API-Token", s.apiToken)
	header.Set("X-Device-ID", s.codec.DeviceID())

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.endpoint(), &websocket.DialOptions{
		HTTPClient: s.hc,
		HTTPHeader: header,
	})
	if err != nil {
		s.state = StateDisconnected
		return fmt.Errorf("transport: stream dial: %w", err)
	}
	s.conn = conn
	s.state = StateAuthPending

	if s.apiToken != "" {
		authCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
		err = wsjson.Write(authCtx, conn, streamAuth{Type: "auth", Token: s.apiToken})
		cancel()
		if err != nil {
			s.closeLocked(websocket.StatusProtocolError, "auth write failed")
			return fmt.Errorf("transport: stream auth: %w", err)
		}
	}

	s.frames = make(chan streamFrame, 8)
	go s.readLoop(conn, s.frames)

	select {
	case frame, ok := <-s.frames:
		if !ok {
			s.closeLocked(websocket.StatusAbnormalClosure, "connection lost")
			return fmt.Errorf("transport: stream closed during handshake")
		}
		if frame.Status == "error" {
			s.closeLocked(websocket.StatusPolicyViolation, "rejected")
			return fmt.Errorf("transport: stream rejected: %s", frame.Message)
		}
		if frame.Type == "welcome" || frame.Status == "connected" {
			s.logger.Debug("stream connected", "endpoint", s.endpoint())
		}
	case <-time.After(s.welcomeTimeout):
		s.logger.Debug("no greeting from stream server, proceeding")
	case <-ctx.Done():
		s.closeLocked(websocket.StatusNormalClosure, "cancelled")
		return ctx.Err()
	}

	s.state = StateConnected
	return nil
}

// readLoop is the sole reader of the connection for its lifetime. It decodes
// frames into the channel and closes the channel when the connection dies.
func (s *Stream) readLoop(conn *websocket.Conn, frames chan<- streamFrame) {
	defer close(frames)
	for {
		var frame streamFrame
		if err := wsjson.Read(context.Background(), conn, &frame); err != nil {
			return
		}
		frames <- frame
	}
}

func (s *Stream) endpoint() string {
	return fmt.Sprintf("%s/ws/client/%s", s.wssURL, s.clientID)
}

// fallbackLocked lazily builds the relay session used when the stream cannot
// connect. Returns nil when no HTTP URL is configured.
func (s *Stream) fallbackLocked() *Relay {
	if s.httpURL == "" {
		return nil
	}
	if s.fallback == nil {
		s.fallback = NewRelay(s.codec, s.httpURL, RelayOptions{
			APIToken:   s.apiToken,
			HTTPClient: s.hc,
			Logger:     s.logger,
		})
	}
	return s.fallback
}

func (s *Stream) closeLocked(code websocket.StatusCode, reason string) {
	if s.conn != nil {
		s.conn.Close(code, reason)
		s.conn = nil
		s.frames = nil
	}
	s.state = StateDisconnected
}

// Close tears down the stream connection and any relay fallback.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(websocket.StatusNormalClosure, "client closing")
	if s.fallback != nil {
		return s.fallback.Close()
	}
	return nil
}
