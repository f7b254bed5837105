package mirror

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plcbridge/srtpmb/pkg/logger"
	"github.com/plcbridge/srtpmb/pkg/metrics"
	"github.com/plcbridge/srtpmb/pkg/protocol/srtp"
)

// plcReadWriter is the subset of *srtp.Client a Synchronizer depends on.
// Depending on an interface rather than the concrete type lets tests
// drive the real tick/reconciliation logic against a fake peer instead
// of re-implementing that logic in the test file.
type plcReadWriter interface {
	Connect(ctx context.Context) bool
	Disconnect()
	ReadRegisters(ctx context.Context, start, count int, area srtp.Area) ([]uint16, error)
	WriteRegisters(ctx context.Context, start int, values []uint16, area srtp.Area) (bool, error)
}

// modbusReadWriter is the subset of *modbusio.Adapter a Synchronizer
// depends on.
type modbusReadWriter interface {
	Connect() error
	Disconnect()
	ReadHoldingBlock(start, count int) ([]uint16, error)
	WriteSingleRegister(addr int, value uint16) error
}

// Synchronizer owns one PLC's SRTP client, its own connection to the
// shared Modbus server, and the set of areas mapped for that PLC. It is
// not safe for concurrent use; the supervisor runs one per goroutine.
type Synchronizer struct {
	plcID string
	plc   plcReadWriter
	mb    modbusReadWriter
	areas []*Area
	poll  time.Duration
	log   *logger.Logger
}

// NewSynchronizer builds a Synchronizer for one PLC. plc and mb must
// already be constructed (not yet connected); mappings describes the
// register mappings for this PLC.
func NewSynchronizer(plcID string, plc plcReadWriter, mb modbusReadWriter, mappings []Mapping, poll time.Duration, log *logger.Logger) *Synchronizer {
	areas := make([]*Area, len(mappings))
	for i, m := range mappings {
		areas[i] = NewArea(m)
	}
	return &Synchronizer{plcID: plcID, plc: plc, mb: mb, areas: areas, poll: poll, log: log}
}

// Connect dials both the PLC and the Modbus server. It returns an error
// naming which side failed; the caller (the supervisor) decides
// disposition.
func (s *Synchronizer) Connect(ctx context.Context) error {
	if ok := s.plc.Connect(ctx); !ok {
		return fmt.Errorf("synchronizer %s: srtp connect failed", s.plcID)
	}
	if err := s.mb.Connect(); err != nil {
		return fmt.Errorf("synchronizer %s: %w", s.plcID, err)
	}
	s.log.Info("connected", "plc", s.plcID)
	metrics.SetConnected(s.plcID, true)
	return nil
}

// Close disposes both connections. Never returns an error; mirrors the
// client-level best-effort disconnect contract.
func (s *Synchronizer) Close() {
	s.plc.Disconnect()
	s.mb.Disconnect()
	metrics.SetConnected(s.plcID, false)
}

// readBoth runs the PLC read and the Modbus read for one area
// concurrently and joins them, per spec §5's "two I/O tasks, both
// awaited" rule.
func (s *Synchronizer) readBoth(ctx context.Context, a *Area) (plc, mb []uint16, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		words, err := s.plc.ReadRegisters(ctx, a.Mapping.PlcStart, a.Mapping.Count, a.Mapping.PlcArea)
		if err != nil {
			return fmt.Errorf("srtp read %s: %w", s.plcID, err)
		}
		plc = words
		return nil
	})
	g.Go(func() error {
		words, err := s.mb.ReadHoldingBlock(a.Mapping.ModbusStart, a.Mapping.Count)
		if err != nil {
			return fmt.Errorf("modbus read %s: %w", s.plcID, err)
		}
		mb = words
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, nil, err
	}
	return plc, mb, nil
}

// Initialize performs first-run reconciliation: the PLC is treated as
// authoritative and any stale Modbus value is overwritten.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	for _, a := range s.areas {
		plc, mb, err := s.readBoth(ctx, a)
		if err != nil {
			return err
		}

		for i := range plc {
			mbWord := mb[i]
			if a.Mapping.SwapBytes {
				mbWord = byteswap(mbWord)
			}
			if plc[i] == mbWord {
				continue
			}

			toMb := plc[i]
			if a.Mapping.SwapBytes {
				toMb = byteswap(toMb)
			}
			if err := s.mb.WriteSingleRegister(a.Mapping.ModbusStart+i, toMb); err != nil {
				return fmt.Errorf("synchronizer %s: init write: %w", s.plcID, err)
			}
			mb[i] = toMb
			metrics.IncWrite(s.plcID, metrics.SideModbus)
		}

		a.lastPlc = plc
		a.lastMb = mb
	}
	return nil
}

// Tick runs one full pass over every area: read both sides, resolve
// per-index, and write the winner. It returns once all areas have been
// processed or the first error occurs.
func (s *Synchronizer) Tick(ctx context.Context) error {
	for _, a := range s.areas {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.tickArea(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) tickArea(ctx context.Context, a *Area) error {
	plc, mb, err := s.readBoth(ctx, a)
	if err != nil {
		return err
	}

	for i := range plc {
		p, m := plc[i], mb[i]

		mAdj := m
		if a.Mapping.SwapBytes {
			mAdj = byteswap(m)
		}
		if p == mAdj {
			continue
		}

		pChanged := p != a.lastPlc[i]
		mChanged := m != a.lastMb[i]

		switch {
		case mChanged && !pChanged:
			toPlc := m
			if a.Mapping.SwapBytes {
				toPlc = byteswap(m)
			}
			if ok, err := s.plc.WriteRegisters(ctx, a.Mapping.PlcStart+i, []uint16{toPlc}, a.Mapping.PlcArea); err != nil || !ok {
				if err == nil {
					err = srtp.ErrWriteRejected
				}
				return fmt.Errorf("synchronizer %s: modbus->plc write: %w", s.plcID, err)
			}
			plc[i] = toPlc
			metrics.IncWrite(s.plcID, metrics.SidePlc)

		default:
			// p_changed && !m_changed, the PLC-wins conflict case, and
			// the "equal but both unchanged" dead arm all resolve the
			// same way: PLC -> Modbus.
			toMb := p
			if a.Mapping.SwapBytes {
				toMb = byteswap(p)
			}
			if err := s.mb.WriteSingleRegister(a.Mapping.ModbusStart+i, toMb); err != nil {
				return fmt.Errorf("synchronizer %s: plc->modbus write: %w", s.plcID, err)
			}
			mb[i] = toMb
			metrics.IncWrite(s.plcID, metrics.SideModbus)
			if pChanged && mChanged {
				metrics.IncConflict(s.plcID)
			}
		}
	}

	a.lastPlc = plc
	a.lastMb = mb
	return nil
}

// errorSource classifies a tick error for the errors_total metric by
// which side's I/O produced it.
func errorSource(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "modbus->plc") {
		return metrics.SourceSrtp
	}
	if strings.Contains(msg, "modbus") {
		return metrics.SourceModbus
	}
	return metrics.SourceSrtp
}

// Run executes Initialize followed by the periodic loop, honoring
// ctx cancellation between ticks and around the inter-tick sleep. A
// context-cancellation error is returned to the caller unwrapped so it
// can be distinguished from a genuine I/O failure.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		s.log.Error("reconciliation failed", "plc", s.plcID, "err", err)
		return err
	}
	s.log.Info("reconciliation complete", "plc", s.plcID, "areas", len(s.areas))

	for {
		t0 := time.Now()

		if err := s.Tick(ctx); err != nil {
			if ctx.Err() == nil {
				s.log.Error("tick failed", "plc", s.plcID, "err", err)
				metrics.IncError(s.plcID, errorSource(err))
			}
			return err
		}
		metrics.IncTick(s.plcID)

		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := s.poll - time.Since(t0)
		if remaining <= 0 {
			continue
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
