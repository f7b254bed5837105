package srtp

import "errors"

// Protocol-level errors. These are wrapped with additional context as
// they propagate (client -> synchronizer -> supervisor), so callers
// should use errors.Is rather than comparing directly.
var (
	// ErrNotConnected is returned by any I/O operation attempted before
	// a successful Connect.
	ErrNotConnected = errors.New("srtp: not connected")

	// ErrPeerClosed is returned when the socket returns zero bytes
	// mid-frame.
	ErrPeerClosed = errors.New("srtp: peer closed connection")

	// ErrTruncated is returned when the frame header indicates more
	// data than arrived before EOF.
	ErrTruncated = errors.New("srtp: truncated frame")

	// ErrHandshakeFailed is returned when either handshake exchange
	// receives an unexpected response byte.
	ErrHandshakeFailed = errors.New("srtp: handshake failed")

	// ErrUnexpectedFrame is returned when a response frame's leading
	// byte is not a recognized FrameKind.
	ErrUnexpectedFrame = errors.New("srtp: unexpected frame type")

	// ErrWriteRejected is returned when a write request's response is
	// not a 0x03 data frame.
	ErrWriteRejected = errors.New("srtp: write not acknowledged")

	// ErrBusy is returned when a second operation is attempted while
	// one is already in flight on this client; the client is not
	// re-entrant.
	ErrBusy = errors.New("srtp: client busy with another request")
)
