package modbusio

import "errors"

var (
	// ErrNotConnected is returned by any I/O attempted before Connect.
	ErrNotConnected = errors.New("modbusio: not connected")

	// ErrShortResponse is returned when a holding-register response
	// carries a byte count other than the requested register count
	// implies.
	ErrShortResponse = errors.New("modbusio: short register response")
)
