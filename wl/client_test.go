package wl

import (
	"context"
	"testing"

	"github.com/deadboizxc/wakelink/wl/device"
	"github.com/deadboizxc/wakelink/wl/devicesim"
	"github.com/deadboizxc/wakelink/wl/transport"
)

func TestClientAgainstSimulator(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	sim, err := devicesim.New(secret, "WL123ABC", devicesim.Options{})
	if err != nil {
		t.Fatalf("start simulator: %v", err)
	}
	defer sim.Close()

	client, err := NewClient(device.Descriptor{
		Name:     "sim",
		IP:       "127.0.0.1",
		Port:     sim.Port(),
		Secret:   secret,
		DeviceID: "WL123ABC",
	}, transport.ModeAuto, transport.Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	result, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if result["message"] != "pong" {
		t.Fatalf("unexpected ping reply: %v", result)
	}

	result, err = client.Wake(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("wake: %v", err)
	}
	if result["status"] != "success" {
		t.Fatalf("unexpected wake reply: %v", result)
	}
}
