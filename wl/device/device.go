// Package device defines the device description record consumed from the
// registry layer. Persistence of the registry itself (name→record storage)
// lives outside the protocol core.
package device

import "strings"

// Descriptor describes one WakeLink device: how to reach it and which secret
// protects the packet exchange.
type Descriptor struct {
	// Name is the registry's friendly name, informational here.
	Name string

	// IP and Port locate the device for the direct TCP transport.
	IP   string
	Port int

	// Secret is the device token the master key is derived from.
	Secret string

	// DeviceID is stamped into outer envelopes.
	DeviceID string

	// APIToken authenticates against the cloud relay.
	APIToken string

	// HTTPURL and WSSURL point at the cloud relay. URL is the legacy
	// single-URL field older registries stored; Normalize resolves it.
	HTTPURL string
	WSSURL  string
	URL     string

	// Protocol is the stored transport preference, "http" or "wss".
	Protocol string
}

// Cloud reports whether the descriptor carries any cloud relay URL.
func (d Descriptor) Cloud() bool {
	return d.HTTPURL != "" || d.WSSURL != ""
}

// Normalize resolves the legacy URL field by scheme and derives the HTTP and
// WSS counterpart URLs from each other, so both are usable regardless of
// which one the registry stored. The receiver is unchanged.
func (d Descriptor) Normalize() Descriptor {
	if d.URL != "" && d.HTTPURL == "" && d.WSSURL == "" {
		if strings.HasPrefix(d.URL, "wss://") || strings.HasPrefix(d.URL, "ws://") {
			d.WSSURL = d.URL
		} else {
			d.HTTPURL = d.URL
		}
	}
	if d.HTTPURL == "" && d.WSSURL != "" {
		d.HTTPURL = toHTTP(d.WSSURL)
	}
	if d.WSSURL == "" && d.HTTPURL != "" {
		d.WSSURL = toWSS(d.HTTPURL)
	}
	d.HTTPURL = strings.TrimRight(d.HTTPURL, "/")
	d.WSSURL = strings.TrimRight(d.WSSURL, "/")
	return d
}

func toHTTP(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}

func toWSS(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
