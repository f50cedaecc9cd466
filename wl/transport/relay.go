package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deadboizxc/wakelink/wl/packet"
)

const (
	// DefaultRelayTimeout covers one HTTP exchange including the server-side
	// long-poll hold (15s) plus buffer.
	DefaultRelayTimeout = 35 * time.Second
	// DefaultPollWait is how long the server is asked to hold a pull open.
	DefaultPollWait = 15
	// DefaultPullAttempts bounds the number of long-poll rounds per command.
	DefaultPullAttempts = 2

	relayMaxRetries  = 3
	relayBackoffBase = 500 * time.Millisecond
)

// Relay is the store-and-forward cloud transport. A command is pushed to the
// server, which delivers it to the device; the response is fetched with
// long-poll pulls so that round latency approaches a persistent connection.
type Relay struct {
	codec        *packet.Codec
	baseURL      string
	apiToken     string
	clientID     string
	pollWait     int
	pullAttempts int
	hc           *http.Client
	logger       *slog.Logger
}

// RelayOptions tune a Relay session. Zero values select the defaults.
type RelayOptions struct {
	APIToken     string
	Timeout      time.Duration
	PollWait     int
	PullAttempts int
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

func NewRelay(codec *packet.Codec, baseURL string, opts RelayOptions) *Relay {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultRelayTimeout
	}
	if opts.PollWait == 0 {
		opts.PollWait = DefaultPollWait
	}
	if opts.PullAttempts == 0 {
		opts.PullAttempts = DefaultPullAttempts
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Relay{
		codec:        codec,
		baseURL:      baseURL,
		apiToken:     opts.APIToken,
		clientID:     newClientID(codec.DeviceID()),
		pollWait:     opts.PollWait,
		pullAttempts: opts.PullAttempts,
		hc:           hc,
		logger:       orDefaultLogger(opts.Logger),
	}
}

// ClientID returns the session-scoped identifier presented to the relay.
func (r *Relay) ClientID() string { return r.clientID }

type pushRequest struct {
	DeviceID  string `json:"device_id"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
	Direction string `json:"direction"`
	ClientID  string `json:"client_id"`
}

type pullRequest struct {
	DeviceID  string `json:"device_id"`
	Direction string `json:"direction"`
	Wait      int    `json:"wait"`
}

type relayMessage struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
}

type pullResponse struct {
	Messages []relayMessage `json:"messages"`
}

// Send pushes the encoded command and long-polls for the matching response.
// An exhausted poll budget yields {status: timeout}; a failed push is an
// error.
func (r *Relay) Send(ctx context.Context, command string, params map[string]any) (packet.Result, error) {
	env, requestID, err := r.codec.EncodeCommand(command, params)
	if err != nil {
		return nil, err
	}

	push := pushRequest{
		DeviceID:  env.DeviceID,
		Payload:   env.Payload,
		Signature: env.Signature,
		Version:   env.Version,
		Direction: "to_device",
		ClientID:  r.clientID,
	}
	if _, err := r.postJSON(ctx, "/api/push", push); err != nil {
		return nil, fmt.Errorf("transport: relay push: %w", err)
	}
	r.logger.Debug("relay push accepted", "command", command, "request_id", requestID)

	for attempt := 0; attempt < r.pullAttempts; attempt++ {
		body, err := r.postJSON(ctx, "/api/pull", pullRequest{
			DeviceID:  r.codec.DeviceID(),
			Direction: "to_client",
			Wait:      r.pollWait,
		})
		if err != nil {
			// Network errors on the poll side are terminal for this call.
			r.logger.Warn("relay pull failed", "attempt", attempt+1, "error", err)
			break
		}

		var pulled pullResponse
		if err := json.Unmarshal(body, &pulled); err != nil {
			r.logger.Warn("relay pull returned malformed body", "error", err)
			break
		}

		for _, msg := range pulled.Messages {
			if msg.Payload == "" || msg.Signature == "" {
				continue
			}
			version := msg.Version
			if version == "" {
				version = packet.Version1
			}
			result, err := r.codec.DecodeEnvelope(packet.Envelope{
				DeviceID:  r.codec.DeviceID(),
				Payload:   msg.Payload,
				Signature: msg.Signature,
				Version:   version,
			})
			if err != nil {
				// Stale or foreign messages in the queue; keep polling.
				r.logger.Debug("relay message did not decode", "error", err)
				continue
			}
			if result["status"] != "success" {
				continue
			}
			if requestID == "" || result["request_id"] == requestID {
				return result, nil
			}
		}
	}

	return timeoutResult(), nil
}

// Close releases idle connections; the relay holds no per-call state.
func (r *Relay) Close() error {
	r.hc.CloseIdleConnections()
	return nil
}

// postJSON performs one authenticated call, retrying 5xx responses with
// doubling backoff. Other failures are returned as-is.
func (r *Relay) postJSON(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.apiToken)

		resp, err := r.hc.Do(req)
		if err != nil {
			return nil, err
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 && attempt < relayMaxRetries {
			delay := relayBackoffBase << attempt
			r.logger.Debug("relay retrying", "path", path, "status", resp.StatusCode, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if readErr != nil {
			return nil, readErr
		}
		return respBody, nil
	}
}
