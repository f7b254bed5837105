// Package supervisor spawns one synchronizer per configured PLC and
// manages their joint lifecycle, including cooperative shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/plcbridge/srtpmb/pkg/config"
	"github.com/plcbridge/srtpmb/pkg/logger"
	"github.com/plcbridge/srtpmb/pkg/mirror"
	"github.com/plcbridge/srtpmb/pkg/modbusio"
	"github.com/plcbridge/srtpmb/pkg/protocol/srtp"
)

// Supervisor owns the full set of per-PLC synchronizers for one
// configuration.
type Supervisor struct {
	cfg *config.GlobalConfig
	log *logger.Logger
}

// New builds a Supervisor from a resolved configuration.
func New(cfg *config.GlobalConfig, log *logger.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, log: log}
}

// Run launches one synchronizer goroutine per configured PLC and waits
// for all of them to terminate. Cancelling ctx requests cooperative
// shutdown; the resulting context.Canceled is swallowed, and the first
// other error is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, plc := range s.cfg.Plcs {
		plc := plc
		g.Go(func() error {
			return s.runOne(gctx, plc)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runOne builds and runs a single synchronizer end to end: connect,
// reconcile, loop until cancellation or error, then dispose.
func (s *Supervisor) runOne(ctx context.Context, p config.PlcConfig) error {
	plc := srtp.NewClient(p.Ip, p.SrtpPort, srtp.DefaultConfig())
	mb := modbusio.NewAdapter(s.cfg.Modbus)
	sync := mirror.NewSynchronizer(p.ID, plc, mb, p.Mappings, s.cfg.PollInterval, s.log)

	if err := sync.Connect(ctx); err != nil {
		s.log.Error("plc connect failed", "plc", p.ID, "err", err)
		return fmt.Errorf("supervisor: %w", err)
	}
	defer sync.Close()

	err := sync.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("synchronizer exited", "plc", p.ID, "err", err)
		return fmt.Errorf("supervisor: plc %s: %w", p.ID, err)
	}
	return err
}
