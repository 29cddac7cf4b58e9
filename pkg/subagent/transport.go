// Package subagent pkg/subagent/transport.go

package subagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/snmpkit/agentx/pkg/agentx"
)

const (
	// DefaultTCPAddress is the master's AgentX TCP endpoint.
	DefaultTCPAddress = "localhost:705"

	// DefaultUnixPath is the conventional master socket path.
	DefaultUnixPath = "/var/agentx/master"

	defaultDialTimeout = 10 * time.Second

	// maxPayloadLength rejects frames no sane master produces; a
	// larger claim means the stream is desynchronized.
	maxPayloadLength = 1 << 20
)

// StreamTransport carries AgentX PDUs over a TCP or Unix-domain stream
// socket. Endpoint forms: "host:port", "tcp://host:port",
// "unix:///path", or a bare absolute path for a Unix socket.
type StreamTransport struct {
	network string
	address string

	mu   sync.Mutex
	conn net.Conn
}

// NewStreamTransport parses an endpoint into a transport. Connect
// establishes the socket.
func NewStreamTransport(endpoint string) *StreamTransport {
	t := &StreamTransport{network: "tcp", address: endpoint}

	switch {
	case strings.HasPrefix(endpoint, "unix://"):
		t.network = "unix"
		t.address = strings.TrimPrefix(endpoint, "unix://")
	case strings.HasPrefix(endpoint, "tcp://"):
		t.address = strings.TrimPrefix(endpoint, "tcp://")
	case strings.HasPrefix(endpoint, "/"):
		t.network = "unix"
	case endpoint == "":
		t.address = DefaultTCPAddress
	}

	return t
}

// Connect implements the Transport interface.
func (t *StreamTransport) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: defaultDialTimeout}

	conn, err := d.DialContext(ctx, t.network, t.address)
	if err != nil {
		return fmt.Errorf("%w: dial %s %s: %w", ErrConnection, t.network, t.address, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	return nil
}

// Read implements the Transport interface: a 20-byte header, then
// exactly the payload it announces. An unknown type or nonzero
// reserved byte does not desync the stream (the payload length sits at
// a fixed offset), so those frames are discarded by skipping the
// payload and reported as ErrPDUDropped; the caller logs and keeps the
// session.
func (t *StreamTransport) Read() (agentx.Header, []byte, error) {
	conn := t.current()
	if conn == nil {
		return agentx.Header{}, nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	var hdr [agentx.HeaderSize]byte

	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return agentx.Header{}, nil, fmt.Errorf("%w: read header: %w", ErrConnection, err)
	}

	h, err := agentx.DecodeHeader(hdr[:])
	if err != nil {
		if !errors.Is(err, agentx.ErrUnknownPDUType) && !errors.Is(err, agentx.ErrReservedNonZero) {
			return agentx.Header{}, nil, fmt.Errorf("%w: %w", ErrDesync, err)
		}

		if h.PayloadLength > maxPayloadLength {
			return agentx.Header{}, nil, fmt.Errorf("%w: payload length %d", ErrDesync, h.PayloadLength)
		}

		if _, err := io.CopyN(io.Discard, conn, int64(h.PayloadLength)); err != nil {
			return agentx.Header{}, nil, fmt.Errorf("%w: skip payload: %w", ErrConnection, err)
		}

		return h, nil, fmt.Errorf("%w: %w", ErrPDUDropped, err)
	}

	if h.PayloadLength > maxPayloadLength {
		return agentx.Header{}, nil, fmt.Errorf("%w: payload length %d", ErrDesync, h.PayloadLength)
	}

	payload := make([]byte, h.PayloadLength)

	if _, err := io.ReadFull(conn, payload); err != nil {
		return agentx.Header{}, nil, fmt.Errorf("%w: read payload: %w", ErrConnection, err)
	}

	return h, payload, nil
}

// Write implements the Transport interface. The buffer is one complete
// PDU and is written atomically with respect to other writers.
func (t *StreamTransport) Write(b []byte) error {
	conn := t.current()
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrConnection)
	}

	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnection, err)
	}

	return nil
}

// Close implements the Transport interface.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

func (t *StreamTransport) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn
}
