// srtpmb mirrors SRTP-speaking PLC registers onto a Modbus/TCP holding
// register image, reconciling both sides continuously.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/plcbridge/srtpmb/pkg/config"
	"github.com/plcbridge/srtpmb/pkg/logger"
	"github.com/plcbridge/srtpmb/pkg/supervisor"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
	gitCommit = "unknown"
)

var (
	cfgFile     string
	verbose     bool
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "srtpmb",
		Short: "srtpmb - SRTP/Modbus register mirror",
		Long: `srtpmb mirrors registers between GE/Emerson SRTP PLCs and a
Modbus/TCP server, reconciling both sides on a fixed poll cadence.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.json", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(newStartCmd(), newStatusCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the register mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func runStart() error {
	level := "info"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: "stdout"})
	logger.SetGlobal(log)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("srtpmb: %w", err)
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "err", err)
			}
		}()
		log.Info("metrics listening", "addr", metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown requested")
		cancel()
		<-sigCh
		log.Warn("second interrupt, forcing exit")
		os.Exit(1)
	}()

	sup := supervisor.New(cfg, log)
	log.Info("starting", "plcs", len(cfg.Plcs), "poll", cfg.PollInterval)

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("srtpmb: %w", err)
	}

	log.Info("stopped")
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved configuration without connecting to any PLC or the Modbus server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("srtpmb: %w", err)
	}

	fmt.Printf("config:   %s\n", cfgFile)
	fmt.Printf("poll:     %s\n", cfg.PollInterval)
	fmt.Printf("modbus:   %s (slave %d)\n", cfg.Modbus.Address, cfg.Modbus.SlaveID)
	fmt.Printf("plcs:     %d\n", len(cfg.Plcs))
	for _, p := range cfg.Plcs {
		fmt.Printf("  - %s: srtp %s:%d, %d link(s)\n", p.ID, p.Ip, p.SrtpPort, len(p.Mappings))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("srtpmb %s\n", version)
			fmt.Printf("  commit: %s\n", gitCommit)
			fmt.Printf("  built:  %s\n", buildTime)
		},
	}
}
