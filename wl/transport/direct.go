package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/deadboizxc/wakelink/wl/packet"
)

const (
	// DefaultDirectPort is the firmware's TCP command port.
	DefaultDirectPort = 99
	// DefaultDirectTimeout bounds dialing and the response read.
	DefaultDirectTimeout = 10 * time.Second
)

// Direct is the point-to-point TCP transport for devices on the local
// network. Every Send opens a fresh connection, writes one newline-terminated
// envelope, reads one newline-terminated response and closes the connection
// on all paths.
type Direct struct {
	codec   *packet.Codec
	ip      string
	port    int
	timeout time.Duration
	logger  *slog.Logger
}

// DirectOptions tune a Direct session. Zero values select the defaults.
type DirectOptions struct {
	Port    int
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDirect(codec *packet.Codec, ip string, opts DirectOptions) *Direct {
	if opts.Port == 0 {
		opts.Port = DefaultDirectPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultDirectTimeout
	}
	return &Direct{
		codec:   codec,
		ip:      ip,
		port:    opts.Port,
		timeout: opts.Timeout,
		logger:  orDefaultLogger(opts.Logger),
	}
}

// Send delivers one command and waits for the device's reply on the same
// connection.
func (d *Direct) Send(ctx context.Context, command string, params map[string]any) (packet.Result, error) {
	env, _, err := d.codec.EncodeCommand(command, params)
	if err != nil {
		return nil, err
	}
	raw, err := env.Marshal()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(d.ip, strconv.Itoa(d.port))
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyNetErr(addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
		return nil, fmt.Errorf("transport: set deadline: %w", err)
	}

	d.logger.Debug("direct send", "addr", addr, "command", command, "bytes", len(raw))
	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return nil, classifyNetErr(addr, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return nil, classifyNetErr(addr, err)
		}
		return nil, ErrNoResponse
	}
	// A partial read cut off by the deadline or by the device closing the
	// socket still carries the response; the codec decides if it parses.

	return d.codec.Decode([]byte(line))
}

// Close is a no-op: Direct holds no connection between calls.
func (d *Direct) Close() error { return nil }

func classifyNetErr(addr string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}
	return fmt.Errorf("transport: %s: %w", addr, err)
}
