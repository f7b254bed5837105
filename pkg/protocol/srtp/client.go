package srtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/plcbridge/srtpmb/pkg/parser"
)

// State represents the connection lifecycle of a Client, mirrored on
// the three states the spec assigns a PlcClient.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config holds the low-level socket behavior for a Client, adapted
// from the generic TCP transport's dial/keepalive/timeout knobs, with
// nothing left of the pluggable-transport machinery this protocol
// doesn't need: there's exactly one wire protocol in play.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	KeepAlive      time.Duration
}

// DefaultConfig returns sensible socket defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		KeepAlive:      30 * time.Second,
	}
}

// Client is an SRTP client for a single PLC. It is not re-entrant: one
// outstanding request is permitted at a time, enforced by mu.
type Client struct {
	addr   string
	config Config

	mu    sync.Mutex
	conn  net.Conn
	state State
	seq   uint16

	readBuf []byte
}

// NewClient creates a Client targeting ip:port. Connect must be called
// before any read/write.
func NewClient(ip string, port int, config Config) *Client {
	return &Client{
		addr:    fmt.Sprintf("%s:%d", ip, port),
		config:  config,
		state:   StateDisconnected,
		readBuf: make([]byte, 4096),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the TCP connection and performs the two-frame
// handshake. It is a no-op returning true if already connected.
func (c *Client) Connect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateReady {
		return true
	}

	c.state = StateConnecting

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout, KeepAlive: c.config.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.state = StateDisconnected
		return false
	}
	c.conn = conn

	if err := c.handshakeLocked(); err != nil {
		conn.Close()
		c.conn = nil
		c.state = StateDisconnected
		return false
	}

	c.state = StateReady
	return true
}

// handshakeLocked performs the two fixed handshake exchanges. Each leg
// reads exactly one 56-byte frame directly off the socket rather than
// through readFrameLocked: the phase-1 response is itself a terminal
// 0x01 frame here, not a preamble ACK ahead of a 0x03 data frame, so
// routing it through the ACK-skip parser would discard it and block
// forever waiting for a 0x03 the peer has already finished sending.
// Caller must hold mu and have c.conn set.
func (c *Client) handshakeLocked() error {
	if _, err := c.writeLocked(zeroFrame()); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	frame, err := c.readExactLocked(HeaderLen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if FrameKind(frame[0]) != KindHandshakeAck {
		return fmt.Errorf("%w: phase-1 response type 0x%02x", ErrHandshakeFailed, frame[0])
	}

	if _, err := c.writeLocked(handshakeFrame2()); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	frame, err = c.readExactLocked(HeaderLen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if FrameKind(frame[0]) != KindData {
		return fmt.Errorf("%w: phase-2 response type 0x%02x", ErrHandshakeFailed, frame[0])
	}

	return nil
}

// readExactLocked reads exactly n bytes off the socket, honoring
// ReadTimeout. Unlike readFrameLocked it applies no framing discipline;
// it is for the handshake legs, where the next frame off the wire is
// always the terminal answer. Caller must hold mu.
func (c *Client) readExactLocked(n int) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if c.config.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrPeerClosed
		}
		return nil, err
	}
	return buf, nil
}

// Disconnect sends the graceful-disconnect frame and closes the
// socket. It never propagates errors.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected || c.conn == nil {
		c.state = StateDisconnected
		return
	}

	c.writeLocked(zeroFrame()) //nolint:errcheck // best-effort per spec
	c.conn.Close()
	c.conn = nil
	c.state = StateDisconnected
}

// ReadRegisters reads count words from area starting at the 1-based
// PLC word index start.
func (c *Client) ReadRegisters(ctx context.Context, start, count int, area Area) ([]uint16, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	if c.state != StateReady {
		return nil, ErrNotConnected
	}

	c.seq++
	req, err := BuildReadRequest(c.seq, start, count, area)
	if err != nil {
		return nil, err
	}
	if _, err := c.writeLocked(req); err != nil {
		return nil, fmt.Errorf("srtp: read request send: %w", err)
	}

	frame, err := c.readFrameLocked(HeaderLen + count*2)
	if err != nil {
		return nil, fmt.Errorf("srtp: read response: %w", err)
	}
	if FrameKind(frame[0]) != KindData {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnexpectedFrame, frame[0])
	}

	return ParseReadResponse(frame, count)
}

// WriteRegisters writes values to area starting at the 1-based PLC
// word index start. It returns true iff the response is a 0x03 data
// frame.
func (c *Client) WriteRegisters(ctx context.Context, start int, values []uint16, area Area) (bool, error) {
	if !c.mu.TryLock() {
		return false, ErrBusy
	}
	defer c.mu.Unlock()

	if c.state != StateReady {
		return false, ErrNotConnected
	}

	c.seq++
	req, err := BuildWriteRequest(c.seq, start, values, area)
	if err != nil {
		return false, err
	}
	if _, err := c.writeLocked(req); err != nil {
		return false, fmt.Errorf("srtp: write request send: %w", err)
	}

	frame, err := c.readFrameLocked(HeaderLen)
	if err != nil {
		return false, fmt.Errorf("srtp: write response: %w", err)
	}

	return FrameKind(frame[0]) == KindData, nil
}

// writeLocked writes data to the connection, honoring WriteTimeout.
// Caller must hold mu.
func (c *Client) writeLocked(data []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	if c.config.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.Write(data)
}

// readFrameLocked accumulates bytes until a complete frame of
// expectedLen is available, transparently discarding any 0x01/0x02
// preamble ACK per the spec's ACK-skip discipline. Caller must hold
// mu.
func (c *Client) readFrameLocked(expectedLen int) ([]byte, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	fp := &frameParser{expectedLen: expectedLen}
	buf := parser.NewBuffer(expectedLen*2+HeaderLen, fp)

	for {
		packet, err := buf.Parse()
		switch {
		case errors.Is(err, parser.ErrIncompletePacket):
			// fall through to read more
		case err != nil:
			return nil, err
		case packet != nil:
			return packet, nil
		default:
			// packet == nil, err == nil: a preamble ACK was just
			// discarded; parse whatever followed it before reading more.
			continue
		}

		if c.config.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			if werr := buf.Write(c.readBuf[:n]); werr != nil {
				return nil, werr
			}
		}
		if err != nil {
			if err == io.EOF && buf.Len() >= HeaderLen {
				// A data header is in hand but its payload never arrived.
				return nil, ErrTruncated
			}
			if err == io.EOF || n == 0 {
				return nil, ErrPeerClosed
			}
			return nil, err
		}
	}
}

// frameParser implements parser.Parser for SRTP's fixed-header framing:
// a 0x03 frame is the awaited data/ack frame (exactly expectedLen
// bytes); a 0x01 or 0x02 frame is a preliminary ACK that must be
// discarded in its entirety before reading continues.
type frameParser struct {
	expectedLen int
}

func (p *frameParser) Type() parser.Type { return parser.TypeCustom }

func (p *frameParser) Parse(buffer []byte) (packet []byte, remaining []byte, err error) {
	if len(buffer) < HeaderLen {
		return nil, buffer, parser.ErrIncompletePacket
	}

	switch FrameKind(buffer[0]) {
	case KindData:
		if len(buffer) < p.expectedLen {
			return nil, buffer, parser.ErrIncompletePacket
		}
		pkt := make([]byte, p.expectedLen)
		copy(pkt, buffer[:p.expectedLen])
		return pkt, buffer[p.expectedLen:], nil
	case KindHandshakeAck, KindInterimAck:
		return nil, buffer[HeaderLen:], nil
	default:
		return nil, buffer, fmt.Errorf("%w: 0x%02x", ErrUnexpectedFrame, buffer[0])
	}
}

func (p *frameParser) Validate(packet []byte) error { return nil }

func (p *frameParser) Reset() {}
