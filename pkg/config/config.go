// Package config loads and validates the register mirror's declarative
// configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/plcbridge/srtpmb/pkg/mirror"
	"github.com/plcbridge/srtpmb/pkg/modbusio"
	"github.com/plcbridge/srtpmb/pkg/protocol/srtp"
)

// DefaultSrtpPort is used for a PLC entry that omits SrtpPort.
const DefaultSrtpPort = 18245

// DefaultModbusPort is the Modbus/TCP server's well-known port.
const DefaultModbusPort = 502

// modbusHoldingOffset is the 4xxxxx documentation convention's offset
// from the 0-based wire address.
const modbusHoldingOffset = 400001

// LinkDoc is one PLC-to-Modbus register link as it appears in the
// configuration document.
type LinkDoc struct {
	Plc       string `json:"Plc" validate:"required"`
	Modbus    string `json:"Modbus" validate:"required"`
	Count     uint   `json:"Count" validate:"required,min=1"`
	SwapBytes *bool  `json:"SwapBytes"`
}

// PlcDoc is one PLC entry in the configuration document.
type PlcDoc struct {
	Ip       string    `json:"Ip" validate:"required"`
	SrtpPort uint      `json:"SrtpPort"`
	Links    []LinkDoc `json:"Links" validate:"required,min=1,dive"`
}

// ModbusDoc is the shared Modbus/TCP endpoint every PLC's synchronizer
// dials independently. Port and SlaveId default to 502 and 1 when
// omitted or zero.
type ModbusDoc struct {
	Ip      string `json:"Ip" validate:"required"`
	Port    uint   `json:"Port"`
	SlaveId uint   `json:"SlaveId"`
}

// Document is the top-level configuration document, matching spec §6's
// JSON schema field-for-field. encoding/json already matches field
// names case-insensitively, which is what the schema requires.
type Document struct {
	PollMs           uint      `json:"PollMs" validate:"required,min=1"`
	DefaultSwapBytes bool      `json:"DefaultSwapBytes"`
	Modbus           ModbusDoc `json:"Modbus" validate:"required"`
	Plcs             []PlcDoc  `json:"Plcs" validate:"required,min=1,dive"`
}

// PlcConfig is a resolved, typed PLC entry ready for the supervisor to
// consume: area tags parsed into srtp.Area, Modbus addresses already
// converted from the 4xxxxx convention where applicable.
type PlcConfig struct {
	ID       string
	Ip       string
	SrtpPort int
	Mappings []mirror.Mapping
}

// GlobalConfig is the fully resolved configuration: polling cadence,
// the shared Modbus endpoint, and the set of PLCs to mirror.
type GlobalConfig struct {
	PollInterval     time.Duration
	DefaultSwapBytes bool
	Modbus           modbusio.Config
	Plcs             []PlcConfig
}

// plcLinkPattern matches a PLC link address like "R01001": one or two
// letters (the area tag) followed by digits (the 1-based start,
// leading zeros allowed).
var plcLinkPattern = regexp.MustCompile(`^([A-Za-z]{1,2})(\d+)$`)

// Load reads, parses, and validates the configuration document at
// path, returning the resolved GlobalConfig.
func Load(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return resolve(&doc)
}

// resolve converts a validated Document into a GlobalConfig, parsing
// area tags and Modbus addresses and applying defaults.
func resolve(doc *Document) (*GlobalConfig, error) {
	modbusPort := doc.Modbus.Port
	if modbusPort == 0 {
		modbusPort = DefaultModbusPort
	}
	slaveID := doc.Modbus.SlaveId
	if slaveID == 0 {
		slaveID = 1
	}

	cfg := &GlobalConfig{
		PollInterval:     time.Duration(doc.PollMs) * time.Millisecond,
		DefaultSwapBytes: doc.DefaultSwapBytes,
		Modbus: modbusio.Config{
			Address: fmt.Sprintf("%s:%d", doc.Modbus.Ip, modbusPort),
			SlaveID: byte(slaveID),
			Timeout: modbusio.DefaultConfig().Timeout,
		},
	}

	for i, p := range doc.Plcs {
		port := int(p.SrtpPort)
		if port == 0 {
			port = DefaultSrtpPort
		}

		mappings := make([]mirror.Mapping, 0, len(p.Links))
		for _, l := range p.Links {
			m, err := resolveLink(l, doc.DefaultSwapBytes)
			if err != nil {
				return nil, fmt.Errorf("config: plcs[%d] ip=%s: %w", i, p.Ip, err)
			}
			mappings = append(mappings, m)
		}

		cfg.Plcs = append(cfg.Plcs, PlcConfig{
			ID:       fmt.Sprintf("%s:%d", p.Ip, port),
			Ip:       p.Ip,
			SrtpPort: port,
			Mappings: mappings,
		})
	}

	return cfg, nil
}

// resolveLink parses one LinkDoc into a mirror.Mapping.
func resolveLink(l LinkDoc, defaultSwap bool) (mirror.Mapping, error) {
	area, start, err := parsePlcAddr(l.Plc)
	if err != nil {
		return mirror.Mapping{}, err
	}
	if _, err := srtp.MemCode(area); err != nil {
		return mirror.Mapping{}, err
	}

	mbStart, err := parseModbusAddr(l.Modbus)
	if err != nil {
		return mirror.Mapping{}, err
	}

	swap := defaultSwap
	if l.SwapBytes != nil {
		swap = *l.SwapBytes
	}

	return mirror.Mapping{
		PlcArea:     area,
		PlcStart:    start,
		ModbusStart: mbStart,
		Count:       int(l.Count),
		SwapBytes:   swap,
	}, nil
}

// parsePlcAddr splits a link address like "R01001" into its area tag
// and 1-based start index.
func parsePlcAddr(addr string) (srtp.Area, int, error) {
	m := plcLinkPattern.FindStringSubmatch(strings.TrimSpace(addr))
	if m == nil {
		return "", 0, fmt.Errorf("config: malformed PLC address %q", addr)
	}
	start, err := strconv.Atoi(m[2])
	if err != nil || start < 1 {
		return "", 0, fmt.Errorf("config: malformed PLC address %q: start must be >= 1", addr)
	}
	return srtp.Area(m[1]), start, nil
}

// parseModbusAddr converts a decimal Modbus address, applying the
// 4xxxxx convention when the value is >= 400001.
func parseModbusAddr(addr string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(addr))
	if err != nil {
		return 0, fmt.Errorf("config: malformed Modbus address %q", addr)
	}
	if n >= modbusHoldingOffset {
		return n - modbusHoldingOffset, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("config: malformed Modbus address %q: negative", addr)
	}
	return n, nil
}
