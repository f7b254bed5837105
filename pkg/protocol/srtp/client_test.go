package srtp

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// servePeer plays the PLC side of the wire protocol on one accepted
// connection: handshake, then one read exchange that sends an interim
// 0x02 ACK before the real 0x03 data frame, exercising the ACK-skip
// discipline (spec invariant 8).
func servePeer(t *testing.T, ln net.Listener, payload []uint16) {
	conn, err := ln.Accept()
	if err != nil {
		t.Errorf("accept: %v", err)
		return
	}
	defer conn.Close()

	buf := make([]byte, HeaderLen)
	if _, err := readFull(conn, buf); err != nil {
		t.Errorf("read handshake-1: %v", err)
		return
	}
	resp := zeroFrame()
	resp[0] = byte(KindHandshakeAck)
	if _, err := conn.Write(resp); err != nil {
		t.Errorf("write handshake-1 ack: %v", err)
		return
	}

	if _, err := readFull(conn, buf); err != nil {
		t.Errorf("read handshake-2: %v", err)
		return
	}
	resp = zeroFrame()
	resp[0] = byte(KindData)
	if _, err := conn.Write(resp); err != nil {
		t.Errorf("write handshake-2 ack: %v", err)
		return
	}

	if _, err := readFull(conn, buf); err != nil {
		t.Errorf("read request: %v", err)
		return
	}

	ack := zeroFrame()
	ack[0] = byte(KindInterimAck)
	if _, err := conn.Write(ack); err != nil {
		t.Errorf("write interim ack: %v", err)
		return
	}

	data := make([]byte, HeaderLen+len(payload)*2)
	data[0] = byte(KindData)
	for i, v := range payload {
		binary.LittleEndian.PutUint16(data[HeaderLen+i*2:], v)
	}
	if _, err := conn.Write(data); err != nil {
		t.Errorf("write data frame: %v", err)
		return
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestClientConnectAndReadSkipsInterimAck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	want := []uint16{7, 8, 9}
	done := make(chan struct{})
	go func() {
		defer close(done)
		servePeer(t, ln, want)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := NewClient("127.0.0.1", addr.Port, Config{
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if ok := client.Connect(ctx); !ok {
		t.Fatal("connect returned false")
	}
	if client.State() != StateReady {
		t.Fatalf("state = %v, want ready", client.State())
	}

	gotCh := make(chan []uint16, 1)
	errCh := make(chan error, 1)
	go func() {
		words, err := client.ReadRegisters(ctx, 1, len(want), "R")
		if err != nil {
			errCh <- err
			return
		}
		gotCh <- words
	}()

	select {
	case err := <-errCh:
		t.Fatalf("ReadRegisters error: %v", err)
	case got := <-gotCh:
		for i, w := range want {
			if got[i] != w {
				t.Errorf("word[%d] = %d, want %d", i, got[i], w)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ReadRegisters blocked past interim ACK")
	}

	<-done
}

func TestClientReadBeforeConnectFails(t *testing.T) {
	client := NewClient("127.0.0.1", 1, DefaultConfig())
	if _, err := client.ReadRegisters(context.Background(), 1, 1, "R"); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
