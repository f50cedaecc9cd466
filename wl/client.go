package wl

import (
	"context"

	"github.com/deadboizxc/wakelink/wl/device"
	"github.com/deadboizxc/wakelink/wl/packet"
	"github.com/deadboizxc/wakelink/wl/transport"
)

// Client is a high-level helper that binds a device descriptor to a selected
// transport session. It intentionally stays small so applications can drive
// the transport and packet layers directly when they need to.
type Client struct {
	Device  device.Descriptor
	session transport.Session
}

// NewClient resolves the transport for the device and returns a ready client.
func NewClient(desc device.Descriptor, mode transport.Mode, opts transport.Options) (*Client, error) {
	session, err := transport.Select(desc, mode, opts)
	if err != nil {
		return nil, err
	}
	return &Client{Device: desc.Normalize(), session: session}, nil
}

// Execute sends one command and returns the device's decoded response.
func (c *Client) Execute(ctx context.Context, command string, params map[string]any) (packet.Result, error) {
	return c.session.Send(ctx, command, params)
}

// Ping checks device reachability.
func (c *Client) Ping(ctx context.Context) (packet.Result, error) {
	return c.Execute(ctx, "ping", nil)
}

// Wake asks the device to emit a magic packet for the given MAC address.
func (c *Client) Wake(ctx context.Context, mac string) (packet.Result, error) {
	return c.Execute(ctx, "wake", map[string]any{"mac": mac})
}

func (c *Client) Close() error {
	return c.session.Close()
}
