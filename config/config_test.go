package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbocsi/cyberos/proto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cyberos.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
[device]
type = "button"
hardware_id = "02ad9a"
color_code = "yyg"
station_mac = "02:AD:9A:00:00:07"

[radio]
medium = "local"
channel = 6

[pairing]
window = "5s"

[log]
level = "DEBUG"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Device.Name() != "BUTTON-02AD9A-YYG" {
		t.Errorf("Unexpected device name %s", cfg.Device.Name())
	}
	if cfg.Device.StationMAC != (proto.MAC{0x02, 0xad, 0x9a, 0, 0, 7}) {
		t.Errorf("Unexpected station mac %s", cfg.Device.StationMAC)
	}
	if cfg.Radio.Medium != "local" || cfg.Radio.Channel != 6 {
		t.Errorf("Unexpected radio config %+v", cfg.Radio)
	}
	if cfg.Pairing.Window != 5*time.Second {
		t.Errorf("Expected 5s window, got %s", cfg.Pairing.Window)
	}
	if cfg.Pairing.Interval != time.Second {
		t.Errorf("Expected default interval to survive, got %s", cfg.Pairing.Interval)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("Unexpected log config %s %s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.WebAddr != ":8080" {
		t.Errorf("Expected default web addr, got %s", cfg.WebAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"channel":  "[radio]\nchannel = 20\n",
		"medium":   "[radio]\nmedium = \"serial\"\n",
		"duration": "[pairing]\nwindow = \"soon\"\n",
		"interval": "[pairing]\nwindow = \"1s\"\ninterval = \"2s\"\n",
		"mac":      "[device]\nstation_mac = \"nope\"\n",
		"dash":     "[device]\ntype = \"BIG-BUTTON\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	_, err := Load(writeConfig(t, "[radio]\nchannel = 0\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
