// Package devicesim runs an in-process stand-in for WakeLink firmware: a TCP
// listener speaking the newline-framed packet protocol with a handler per
// command. Tests dial it over loopback; the bundled example runs it as a
// fake device on the LAN.
package devicesim

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/deadboizxc/wakelink/wl/packet"
)

// Handler computes the response body for one command. The returned map
// becomes the inner response envelope; request id and command echo are added
// by the simulator.
type Handler func(params map[string]any) map[string]any

// Simulator is a fake device bound to a TCP listener.
type Simulator struct {
	codec    *packet.Codec
	logger   *slog.Logger
	listener net.Listener

	mu       sync.Mutex
	handlers map[string]Handler
	closed   bool
	wg       sync.WaitGroup
}

// Options configure a Simulator.
type Options struct {
	// Addr is the listen address, default "127.0.0.1:0".
	Addr   string
	Logger *slog.Logger
}

// New builds a simulator for the given identity with the stock command set
// registered: ping, echo, info, wake and restart.
func New(secret, deviceID string, opts Options) (*Simulator, error) {
	codec, err := packet.NewCodec(secret, deviceID)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{
		codec:    codec,
		logger:   logger,
		handlers: map[string]Handler{},
	}
	s.registerStock(deviceID)

	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func (s *Simulator) registerStock(deviceID string) {
	s.Register("ping", func(map[string]any) map[string]any {
		return map[string]any{"status": "success", "message": "pong"}
	})
	s.Register("echo", func(params map[string]any) map[string]any {
		return map[string]any{"status": "success", "echo": params}
	})
	s.Register("info", func(map[string]any) map[string]any {
		return map[string]any{
			"status":    "success",
			"device_id": deviceID,
			"firmware":  "sim-1.0",
			"uptime":    0,
		}
	})
	s.Register("wake", func(params map[string]any) map[string]any {
		mac, _ := params["mac"].(string)
		if mac == "" {
			return map[string]any{"status": "error", "message": "missing mac address"}
		}
		return map[string]any{"status": "success", "message": "magic packet sent", "mac": mac}
	})
	s.Register("restart", func(map[string]any) map[string]any {
		return map[string]any{"status": "success", "message": "restarting"}
	})
}

// Register installs or replaces the handler for a command.
func (s *Simulator) Register(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

// Addr returns the bound listen address.
func (s *Simulator) Addr() net.Addr { return s.listener.Addr() }

// Port returns the bound TCP port.
func (s *Simulator) Port() int { return s.listener.Addr().(*net.TCPAddr).Port }

// Close stops the listener and waits for in-flight connections.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Simulator) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isClosed() && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("simulator accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Simulator) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Simulator) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		reply, err := s.handle(line)
		if err != nil {
			s.logger.Debug("simulator dropped packet", "error", err)
			continue
		}
		if _, err := conn.Write(append(reply, '\n')); err != nil {
			return
		}
	}
}

// handle decodes one command packet and builds the encoded response line.
// Undecodable packets are dropped without a reply, the way firmware ignores
// noise on the command port.
func (s *Simulator) handle(line []byte) ([]byte, error) {
	req, err := s.codec.Decode(line)
	if err != nil {
		return nil, err
	}
	command, _ := req["command"].(string)
	params, _ := req["data"].(map[string]any)
	requestID, _ := req["request_id"].(string)

	s.mu.Lock()
	h := s.handlers[command]
	s.mu.Unlock()

	var body map[string]any
	if h == nil {
		body = map[string]any{"status": "error", "message": "unknown command"}
	} else {
		body = h(params)
	}
	body["command"] = command
	if requestID != "" {
		body["request_id"] = requestID
	}

	env, err := s.codec.EncodeResponse(body)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}
