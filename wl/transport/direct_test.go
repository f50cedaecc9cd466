package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadboizxc/wakelink/wl/devicesim"
	"github.com/deadboizxc/wakelink/wl/packet"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testDeviceID = "WL123ABC"
)

func newTestCodec(t *testing.T) *packet.Codec {
	t.Helper()
	codec, err := packet.NewCodec(testSecret, testDeviceID)
	require.NoError(t, err)
	return codec
}

func TestDirectRoundTrip(t *testing.T) {
	sim, err := devicesim.New(testSecret, testDeviceID, devicesim.Options{})
	require.NoError(t, err)
	defer sim.Close()

	d := NewDirect(newTestCodec(t), "127.0.0.1", DirectOptions{Port: sim.Port()})
	result, err := d.Send(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "pong", result["message"])
	assert.Equal(t, "ping", result["command"])
	assert.Len(t, result["request_id"], 8)
}

func TestDirectEchoParams(t *testing.T) {
	sim, err := devicesim.New(testSecret, testDeviceID, devicesim.Options{})
	require.NoError(t, err)
	defer sim.Close()

	d := NewDirect(newTestCodec(t), "127.0.0.1", DirectOptions{Port: sim.Port()})
	result, err := d.Send(context.Background(), "echo", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, map[string]any{"k": "v"}, result["echo"])
}

func TestDirectErrorStatusPassesThrough(t *testing.T) {
	sim, err := devicesim.New(testSecret, testDeviceID, devicesim.Options{})
	require.NoError(t, err)
	defer sim.Close()

	d := NewDirect(newTestCodec(t), "127.0.0.1", DirectOptions{Port: sim.Port()})
	result, err := d.Send(context.Background(), "wake", nil)
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "missing mac address", result["message"])
}

func TestDirectConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	d := NewDirect(newTestCodec(t), "127.0.0.1", DirectOptions{Port: port})
	_, err = d.Send(context.Background(), "ping", nil)
	assert.ErrorIs(t, err, ErrConnectionRefused)
}

func TestDirectTimeout(t *testing.T) {
	// A listener that accepts but never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	d := NewDirect(newTestCodec(t), "127.0.0.1", DirectOptions{
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Timeout: 200 * time.Millisecond,
	})
	_, err = d.Send(context.Background(), "ping", nil)
	assert.ErrorIs(t, err, ErrTimeout)
}
