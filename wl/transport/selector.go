package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deadboizxc/wakelink/wl/device"
	"github.com/deadboizxc/wakelink/wl/packet"
)

// Mode names a transport strategy. The zero value resolves automatically
// from the device descriptor.
type Mode string

const (
	ModeAuto Mode = ""
	ModeTCP  Mode = "tcp"
	ModeHTTP Mode = "http"
	ModeWSS  Mode = "wss"
)

// Options carry the process-level defaults the selector folds into each
// session: fallback relay URLs, the direct port, and the shared plumbing.
type Options struct {
	// DefaultHTTPURL and DefaultWSSURL are used for cloud devices whose
	// descriptor stores no URL of its own.
	DefaultHTTPURL string
	DefaultWSSURL  string

	DefaultPort   int
	DirectTimeout time.Duration

	// Streaming gates the WebSocket transport, e.g. on a build tag or a
	// feature flag. nil means available.
	Streaming func() bool

	Logger     *slog.Logger
	HTTPClient *http.Client
}

func (o Options) streaming() bool {
	return o.Streaming == nil || o.Streaming()
}

// Select builds the transport session for a device. An explicit mode is
// honored when possible: tcp requires an IP, wss degrades to the relay when
// streaming is unavailable. Auto mode prefers the cloud when the descriptor
// carries a relay URL, otherwise the direct transport.
func Select(desc device.Descriptor, mode Mode, opts Options) (Session, error) {
	desc = desc.Normalize()

	deviceID := desc.DeviceID
	if deviceID == "" {
		deviceID = desc.Name
	}
	codec, err := packet.NewCodec(desc.Secret, deviceID)
	if err != nil {
		return nil, err
	}
	logger := orDefaultLogger(opts.Logger)

	httpURL := desc.HTTPURL
	if httpURL == "" {
		httpURL = opts.DefaultHTTPURL
	}
	wssURL := desc.WSSURL
	if wssURL == "" {
		wssURL = opts.DefaultWSSURL
	}

	newDirect := func() (Session, error) {
		if desc.IP == "" {
			return nil, ErrMissingAddress
		}
		port := desc.Port
		if port == 0 {
			port = opts.DefaultPort
		}
		return NewDirect(codec, desc.IP, DirectOptions{
			Port:    port,
			Timeout: opts.DirectTimeout,
			Logger:  logger,
		}), nil
	}
	newRelay := func() Session {
		return NewRelay(codec, httpURL, RelayOptions{
			APIToken:   desc.APIToken,
			HTTPClient: opts.HTTPClient,
			Logger:     logger,
		})
	}
	newStream := func() Session {
		if !opts.streaming() {
			logger.Warn("streaming transport unavailable, using relay", "device", desc.Name)
			return newRelay()
		}
		return NewStream(codec, wssURL, StreamOptions{
			HTTPURL:    httpURL,
			APIToken:   desc.APIToken,
			HTTPClient: opts.HTTPClient,
			Logger:     logger,
		})
	}

	switch mode {
	case ModeTCP:
		return newDirect()
	case ModeHTTP:
		return newRelay(), nil
	case ModeWSS:
		return newStream(), nil
	case ModeAuto:
		if desc.Cloud() {
			preferred := Mode(desc.Protocol)
			if preferred == ModeWSS {
				return newStream(), nil
			}
			return newRelay(), nil
		}
		return newDirect()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
