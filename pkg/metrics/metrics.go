// Package metrics exposes Prometheus instrumentation for the register
// mirror: tick counts, writes issued to each side, conflicts resolved,
// tick-aborting I/O errors, and per-PLC connectivity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TickCount counts completed synchronizer ticks.
	TickCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srtpmb_ticks_total",
		Help: "The total number of synchronizer ticks completed",
	}, []string{"plc"})

	// WriteCount counts register writes issued, by destination side.
	WriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srtpmb_writes_total",
		Help: "The total number of register writes issued",
	}, []string{"plc", "side"})

	// ConflictCount counts indices where both sides changed in the
	// same tick and the PLC value won.
	ConflictCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srtpmb_conflicts_total",
		Help: "The total number of PLC-wins conflicts resolved",
	}, []string{"plc"})

	// ErrorCount counts tick-aborting I/O failures, by origin.
	ErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srtpmb_errors_total",
		Help: "The total number of tick-aborting errors",
	}, []string{"plc", "source"})

	// PlcConnected reports 1 while a PLC's SRTP session is established.
	PlcConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "srtpmb_plc_connected",
		Help: "Whether the named PLC currently has an established SRTP session",
	}, []string{"plc"})
)

// Side labels for WriteCount.
const (
	SideModbus = "modbus"
	SidePlc    = "plc"
)

// Source labels for ErrorCount.
const (
	SourceSrtp   = "srtp"
	SourceModbus = "modbus"
)

// IncTick increments the tick counter for plc.
func IncTick(plc string) {
	TickCount.WithLabelValues(plc).Inc()
}

// IncWrite increments the write counter for plc on the given side.
func IncWrite(plc, side string) {
	WriteCount.WithLabelValues(plc, side).Inc()
}

// IncConflict increments the conflict counter for plc.
func IncConflict(plc string) {
	ConflictCount.WithLabelValues(plc).Inc()
}

// IncError increments the error counter for plc from source.
func IncError(plc, source string) {
	ErrorCount.WithLabelValues(plc, source).Inc()
}

// SetConnected sets the connectivity gauge for plc.
func SetConnected(plc string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	PlcConnected.WithLabelValues(plc).Set(v)
}
