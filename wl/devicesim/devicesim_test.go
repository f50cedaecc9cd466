package devicesim

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/deadboizxc/wakelink/wl/packet"
)

const (
	simSecret = "0123456789abcdef0123456789abcdef"
	simDevice = "WL123ABC"
)

func exchange(t *testing.T, sim *Simulator, codec *packet.Codec, command string, params map[string]any) packet.Result {
	t.Helper()
	env, requestID, err := codec.EncodeCommand(command, params)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	conn, err := net.Dial("tcp", sim.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write(append(raw, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	result, err := codec.Decode([]byte(strings.TrimSpace(line)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := result["request_id"]; got != requestID {
		t.Fatalf("request_id = %v, want %s", got, requestID)
	}
	return result
}

func TestSimulatorCommands(t *testing.T) {
	sim, err := New(simSecret, simDevice, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sim.Close()

	codec, err := packet.NewCodec(simSecret, simDevice)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	result := exchange(t, sim, codec, "ping", nil)
	if result["message"] != "pong" {
		t.Fatalf("ping reply = %v", result)
	}

	result = exchange(t, sim, codec, "info", nil)
	if result["device_id"] != simDevice {
		t.Fatalf("info reply = %v", result)
	}

	result = exchange(t, sim, codec, "selfdestruct", nil)
	if result["status"] != "error" || result["message"] != "unknown command" {
		t.Fatalf("unknown command reply = %v", result)
	}
}

func TestSimulatorCustomHandler(t *testing.T) {
	sim, err := New(simSecret, simDevice, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sim.Close()

	sim.Register("temp", func(map[string]any) map[string]any {
		return map[string]any{"status": "success", "celsius": 21.5}
	})

	codec, err := packet.NewCodec(simSecret, simDevice)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	result := exchange(t, sim, codec, "temp", nil)
	if result["celsius"] != 21.5 {
		t.Fatalf("temp reply = %v", result)
	}
}

func TestSimulatorIgnoresGarbage(t *testing.T) {
	sim, err := New(simSecret, simDevice, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sim.Close()

	conn, err := net.Dial("tcp", sim.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(500 * time.Millisecond))

	if _, err := conn.Write([]byte("not a packet\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// No reply expected; the read should run out the clock.
	if _, err := bufio.NewReader(conn).ReadString('\n'); err == nil {
		t.Fatal("expected no reply to garbage input")
	}
}
