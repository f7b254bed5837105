package srtp

import (
	"encoding/binary"
	"testing"
)

func TestBuildReadRequestDeterminism(t *testing.T) {
	req, err := BuildReadRequest(0x1234, 1, 10, "R")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req) != HeaderLen {
		t.Fatalf("length = %d, want %d", len(req), HeaderLen)
	}

	want := map[int]byte{
		0:  0x02,
		2:  0x34,
		9:  0x01,
		17: 0x01,
		30: 0x34,
		31: 0xC0,
		36: 0x10,
		37: 0x0E,
		40: 0x01,
		41: 0x01,
		42: 0x04,
		43: 0x08, // "R"
		48: 0x01,
		49: 0x01,
	}
	for off, b := range want {
		if req[off] != b {
			t.Errorf("byte[%d] = 0x%02x, want 0x%02x", off, req[off], b)
		}
	}
	if got := binary.LittleEndian.Uint16(req[44:46]); got != 0 {
		t.Errorf("start-1 field = %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint16(req[46:48]); got != 10 {
		t.Errorf("count field = %d, want 10", got)
	}
}

func TestBuildWriteRequestDeterminism(t *testing.T) {
	values := []uint16{0x0102, 0x0304}
	req, err := BuildWriteRequest(0x0007, 5, values, "AI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req) != HeaderLen+4 {
		t.Fatalf("length = %d, want %d", len(req), HeaderLen+4)
	}

	if req[0] != 0x02 || req[2] != 0x07 {
		t.Errorf("header type/seq mismatch: %x %x", req[0], req[2])
	}
	if got := binary.LittleEndian.Uint16(req[4:6]); got != 4 {
		t.Errorf("payload length field = %d, want 4", got)
	}
	if req[9] != 0x02 || req[17] != 0x02 {
		t.Errorf("service code mismatch")
	}
	if req[31] != 0x80 {
		t.Errorf("inner marker = 0x%02x, want 0x80", req[31])
	}
	if req[42] != 0x32 || req[50] != 0x07 {
		t.Errorf("opcode/trailer mismatch")
	}
	if req[51] != 0x0A {
		t.Errorf("mem code = 0x%02x, want 0x0a (AI)", req[51])
	}
	if got := binary.LittleEndian.Uint16(req[52:54]); got != 4 {
		t.Errorf("start-1 field = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint16(req[54:56]); got != 2 {
		t.Errorf("count field = %d, want 2", got)
	}

	payload := req[HeaderLen:]
	if binary.LittleEndian.Uint16(payload[0:2]) != 0x0102 {
		t.Errorf("payload[0] mismatch")
	}
	if binary.LittleEndian.Uint16(payload[2:4]) != 0x0304 {
		t.Errorf("payload[1] mismatch")
	}
}

func TestBuildRequestUnknownArea(t *testing.T) {
	if _, err := BuildReadRequest(1, 1, 1, "ZZ"); err == nil {
		t.Fatal("expected error for unknown area")
	}
}

func TestMemCodeCaseInsensitive(t *testing.T) {
	code, err := MemCode(" ai ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0x0A {
		t.Errorf("code = 0x%02x, want 0x0a", code)
	}
}

func TestParseReadResponseRoundTrip(t *testing.T) {
	frame := make([]byte, HeaderLen+6)
	frame[0] = byte(KindData)
	binary.LittleEndian.PutUint16(frame[HeaderLen:], 11)
	binary.LittleEndian.PutUint16(frame[HeaderLen+2:], 22)
	binary.LittleEndian.PutUint16(frame[HeaderLen+4:], 33)

	words, err := ParseReadResponse(frame, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint16{11, 22, 33}
	for i, w := range want {
		if words[i] != w {
			t.Errorf("words[%d] = %d, want %d", i, words[i], w)
		}
	}
}

func TestParseReadResponseTruncated(t *testing.T) {
	frame := make([]byte, HeaderLen+2)
	if _, err := ParseReadResponse(frame, 3); err == nil {
		t.Fatal("expected truncation error")
	}
}
