// Package srtp implements the GE/Emerson SRTP wire protocol: a fixed
// 56-byte header, an interleaved handshake, and little-endian 16-bit
// register payloads keyed by a memory-area byte.
//
// The header layout is undocumented at public level and was recovered
// empirically from firmware behavior. Offsets below are reproduced
// bit-exact; most fields are constants the PLC firmware requires and
// are not derived from any session parameter.
package srtp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// HeaderLen is the fixed SRTP header size in bytes.
const HeaderLen = 56

// FrameKind identifies what a received frame represents. Modeling this
// as a small tagged value (rather than sprinkling buf[0] comparisons
// through the client loop) keeps the read loop's dispatch in one place.
type FrameKind byte

const (
	// KindHandshakeAck is the phase-1 handshake acknowledgement.
	KindHandshakeAck FrameKind = 0x01
	// KindInterimAck is a preliminary ACK to a request; it must be
	// consumed and discarded, never treated as the real response.
	KindInterimAck FrameKind = 0x02
	// KindData is a data/complete response frame.
	KindData FrameKind = 0x03
)

func (k FrameKind) String() string {
	switch k {
	case KindHandshakeAck:
		return "handshake-ack"
	case KindInterimAck:
		return "interim-ack"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(k))
	}
}

// Area is an SRTP memory-area tag such as "R" or "AI".
type Area string

// memCodes maps a case-insensitive, whitespace-trimmed area tag to its
// one-byte SRTP memory-area code (spec §6).
var memCodes = map[string]byte{
	"R":  0x08,
	"W":  0x09,
	"AI": 0x0A,
	"AQ": 0x0C,
	"Q":  0x12,
	"I":  0x10,
	"M":  0x16,
	"T":  0x14,
	"G":  0x20,
	"GA": 0x20,
	"GB": 0x22,
	"GC": 0x24,
	"GD": 0x26,
	"GE": 0x28,
	"S":  0x30,
	"SA": 0x30,
	"SB": 0x32,
	"SC": 0x34,
}

// ErrUnknownArea is returned when a memory-area tag has no known code.
type ErrUnknownArea string

func (e ErrUnknownArea) Error() string {
	return fmt.Sprintf("srtp: unknown memory area %q", string(e))
}

// MemCode resolves an area tag to its wire byte. Lookup is
// case-insensitive with surrounding whitespace stripped.
func MemCode(area Area) (byte, error) {
	key := strings.ToUpper(strings.TrimSpace(string(area)))
	code, ok := memCodes[key]
	if !ok {
		return 0, ErrUnknownArea(area)
	}
	return code, nil
}

// BuildReadRequest builds a 56-byte read-request frame. start is the
// 1-based PLC word index; the wire carries start-1.
func BuildReadRequest(seq uint16, start, count int, area Area) ([]byte, error) {
	code, err := MemCode(area)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderLen)
	buf[0] = 0x02
	buf[2] = byte(seq)
	buf[9] = 0x01
	buf[17] = 0x01
	buf[30] = byte(seq)
	buf[31] = 0xC0
	buf[36] = 0x10
	buf[37] = 0x0E
	buf[40] = 0x01
	buf[41] = 0x01
	buf[42] = 0x04
	buf[43] = code
	binary.LittleEndian.PutUint16(buf[44:46], uint16(start-1))
	binary.LittleEndian.PutUint16(buf[46:48], uint16(count))
	buf[48] = 0x01
	buf[49] = 0x01

	return buf, nil
}

// BuildWriteRequest builds a 56-byte header followed by count*2 bytes
// of little-endian register payload (low byte first).
func BuildWriteRequest(seq uint16, start int, values []uint16, area Area) ([]byte, error) {
	code, err := MemCode(area)
	if err != nil {
		return nil, err
	}

	count := len(values)
	buf := make([]byte, HeaderLen+count*2)
	buf[0] = 0x02
	binary.LittleEndian.PutUint16(buf[4:6], uint16(count*2))
	buf[2] = byte(seq)
	buf[9] = 0x02
	buf[17] = 0x02
	buf[30] = byte(seq)
	buf[31] = 0x80
	buf[36] = 0x10
	buf[37] = 0x0E
	buf[40] = 0x01
	buf[41] = 0x01
	buf[42] = 0x32
	buf[48] = 0x01
	buf[49] = 0x01
	buf[50] = 0x07
	buf[51] = code
	binary.LittleEndian.PutUint16(buf[52:54], uint16(start-1))
	binary.LittleEndian.PutUint16(buf[54:56], uint16(count))

	for i, v := range values {
		off := HeaderLen + i*2
		binary.LittleEndian.PutUint16(buf[off:off+2], v)
	}

	return buf, nil
}

// handshakeFrame2 is the fixed second handshake frame. Its bytes are
// part of the protocol, not derived from any session parameter, and
// must be transmitted verbatim.
func handshakeFrame2() []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = 0x08
	buf[2] = 0x01
	return buf
}

// ParseReadResponse extracts count little-endian words from a 0x03 data
// frame whose payload follows the 56-byte header.
func ParseReadResponse(frame []byte, count int) ([]uint16, error) {
	want := HeaderLen + count*2
	if len(frame) < want {
		return nil, fmt.Errorf("srtp: %w: got %d bytes, want %d", ErrTruncated, len(frame), want)
	}
	words := make([]uint16, count)
	for i := range words {
		off := HeaderLen + i*2
		words[i] = binary.LittleEndian.Uint16(frame[off : off+2])
	}
	return words, nil
}

// zeroFrame returns a 56-byte all-zero frame, used both to open the
// handshake and to signal a graceful disconnect.
func zeroFrame() []byte {
	return make([]byte, HeaderLen)
}
