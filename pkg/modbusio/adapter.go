// Package modbusio wraps github.com/goburrow/modbus with the chunking
// and addressing conventions the register mirror needs: holding-register
// reads split into requests of at most 120 words, and writes issued one
// register at a time.
package modbusio

import (
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxBlockWords is the largest holding-register block ReadHoldingBlock
// asks for in one request, kept below the Modbus protocol's ceiling of
// 125 registers per read with some margin.
const MaxBlockWords = 120

// Config describes how to reach and address the Modbus/TCP server being
// mirrored onto.
type Config struct {
	Address string
	SlaveID byte
	Timeout time.Duration
}

// DefaultConfig returns conservative dial/round-trip defaults.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Adapter is a single Modbus/TCP connection to the mirror's destination
// server.
type Adapter struct {
	config  Config
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewAdapter creates an Adapter. Connect must be called before use.
func NewAdapter(config Config) *Adapter {
	return &Adapter{config: config}
}

// Connect dials the Modbus/TCP server. It is a no-op if already
// connected.
func (a *Adapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handler != nil {
		return nil
	}

	handler := modbus.NewTCPClientHandler(a.config.Address)
	handler.Timeout = a.config.Timeout
	handler.SlaveId = a.config.SlaveID

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("modbusio: connect %s: %w", a.config.Address, err)
	}

	a.handler = handler
	a.client = modbus.NewClient(handler)
	return nil
}

// Disconnect closes the connection. It never returns an error.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handler == nil {
		return
	}
	a.handler.Close()
	a.handler = nil
	a.client = nil
}

// ReadHoldingBlock reads count holding registers starting at the 0-based
// address start, issuing as many wire requests as MaxBlockWords requires
// and concatenating the results in order.
func (a *Adapter) ReadHoldingBlock(start, count int) ([]uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil, ErrNotConnected
	}

	out := make([]uint16, 0, count)
	for remaining, offset := count, 0; remaining > 0; {
		chunk := remaining
		if chunk > MaxBlockWords {
			chunk = MaxBlockWords
		}

		raw, err := a.client.ReadHoldingRegisters(uint16(start+offset), uint16(chunk))
		if err != nil {
			return nil, fmt.Errorf("modbusio: read holding %d..%d: %w", start+offset, start+offset+chunk, err)
		}
		if len(raw) != chunk*2 {
			return nil, fmt.Errorf("modbusio: %w: got %d bytes for %d registers", ErrShortResponse, len(raw), chunk)
		}

		for i := 0; i < chunk; i++ {
			out = append(out, uint16(raw[i*2])<<8|uint16(raw[i*2+1]))
		}

		offset += chunk
		remaining -= chunk
	}

	return out, nil
}

// WriteSingleRegister writes one holding register at the 0-based address
// addr.
func (a *Adapter) WriteSingleRegister(addr int, value uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return ErrNotConnected
	}

	if _, err := a.client.WriteSingleRegister(uint16(addr), value); err != nil {
		return fmt.Errorf("modbusio: write register %d: %w", addr, err)
	}
	return nil
}
