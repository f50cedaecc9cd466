// Package wl provides the WakeLink v1.0 client protocol core.
//
// WakeLink devices are controlled through signed, encrypted JSON packets that
// must match the firmware implementation bit-for-bit. The core is split into
// cryptographic primitives (wl/crypto), the two-layer packet codec
// (wl/packet), and three interchangeable transports with a selection policy
// (wl/transport): direct TCP, an HTTP push/pull relay, and a persistent
// WebSocket stream.
package wl
