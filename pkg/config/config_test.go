package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePlcAddr(t *testing.T) {
	cases := []struct {
		in        string
		wantArea  string
		wantStart int
		wantErr   bool
	}{
		{"R01001", "R", 1001, false},
		{"ai12", "ai", 12, false},
		{"GA7", "GA", 7, false},
		{"", "", 0, true},
		{"7R", "", 0, true},
	}
	for _, c := range cases {
		area, start, err := parsePlcAddr(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parsePlcAddr(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePlcAddr(%q): unexpected error: %v", c.in, err)
			continue
		}
		if string(area) != c.wantArea || start != c.wantStart {
			t.Errorf("parsePlcAddr(%q) = (%s, %d), want (%s, %d)", c.in, area, start, c.wantArea, c.wantStart)
		}
	}
}

func TestParseModbusAddr(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"100", 100, false},
		{"400001", 0, false},
		{"400101", 100, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := parseModbusAddr(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseModbusAddr(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseModbusAddr(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseModbusAddr(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestLoadResolvesDocument(t *testing.T) {
	doc := `{
		"PollMs": 500,
		"DefaultSwapBytes": false,
		"Modbus": {"Ip": "10.0.0.5"},
		"Plcs": [
			{
				"Ip": "10.0.0.10",
				"Links": [
					{"Plc": "R01001", "Modbus": "400001", "Count": 3},
					{"Plc": "AI5", "Modbus": "10", "Count": 2, "SwapBytes": true}
				]
			}
		]
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Modbus.Address != "10.0.0.5:502" {
		t.Errorf("modbus address = %s, want 10.0.0.5:502", cfg.Modbus.Address)
	}
	if len(cfg.Plcs) != 1 {
		t.Fatalf("len(Plcs) = %d, want 1", len(cfg.Plcs))
	}
	plc := cfg.Plcs[0]
	if plc.SrtpPort != DefaultSrtpPort {
		t.Errorf("SrtpPort = %d, want default %d", plc.SrtpPort, DefaultSrtpPort)
	}
	if len(plc.Mappings) != 2 {
		t.Fatalf("len(Mappings) = %d, want 2", len(plc.Mappings))
	}
	if plc.Mappings[0].PlcStart != 1001 || plc.Mappings[0].ModbusStart != 0 {
		t.Errorf("mapping[0] = %+v, want plcStart=1001 modbusStart=0", plc.Mappings[0])
	}
	if !plc.Mappings[1].SwapBytes {
		t.Errorf("mapping[1].SwapBytes = false, want true (explicit override)")
	}
}

func TestLoadRejectsUnknownArea(t *testing.T) {
	doc := `{
		"PollMs": 500,
		"Modbus": {"Ip": "10.0.0.5"},
		"Plcs": [{"Ip": "10.0.0.10", "Links": [{"Plc": "ZZ1", "Modbus": "0", "Count": 1}]}]
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown area tag")
	}
}
