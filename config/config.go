// Package config loads the device TOML file over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mbocsi/cyberos/hw"
	"github.com/mbocsi/cyberos/proto"
	"github.com/mbocsi/cyberos/server"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Device    DeviceConfig
	Radio     RadioConfig
	Pairing   server.PairingConfig
	Button    hw.ButtonConfig
	Heartbeat time.Duration
	Storage   string
	WebAddr   string
	MCP       bool
	LogLevel  string
	LogFormat string
}

type DeviceConfig struct {
	Type       string
	HardwareID string
	ColorCode  string
	StationMAC proto.MAC
}

// Name is the device's identity on the air.
func (d DeviceConfig) Name() string {
	return proto.DeviceName(d.Type, d.HardwareID, d.ColorCode)
}

type RadioConfig struct {
	Medium    string // "hub" or "local"
	HubURL    string // empty means discover over mDNS
	Channel   uint8
	QueueSize int
}

func Default() Config {
	return Config{
		Device: DeviceConfig{
			Type:       "BUTTON",
			HardwareID: "000000",
			StationMAC: proto.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		},
		Radio: RadioConfig{
			Medium:    "hub",
			Channel:   13,
			QueueSize: server.DefaultQueueSize,
		},
		Pairing:   server.DefaultPairingConfig(),
		Button:    hw.DefaultButtonConfig(),
		Heartbeat: 30 * time.Second,
		Storage:   "cyberos/settings.db",
		WebAddr:   ":8080",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// cyberos config.toml key mapping.
type fileConfig struct {
	Device struct {
		Type       string `toml:"type"`
		HardwareID string `toml:"hardware_id"`
		ColorCode  string `toml:"color_code"`
		StationMAC string `toml:"station_mac"`
	} `toml:"device"`
	Radio struct {
		Medium    string `toml:"medium"`
		HubURL    string `toml:"hub_url"`
		Channel   int    `toml:"channel"`
		QueueSize int    `toml:"queue_size"`
	} `toml:"radio"`
	Pairing struct {
		Window   string `toml:"window"`
		Interval string `toml:"interval"`
	} `toml:"pairing"`
	Button struct {
		ClickMax          string `toml:"click_max"`
		DoubleClickWindow string `toml:"double_click_window"`
		HoldThreshold     string `toml:"hold_threshold"`
	} `toml:"button"`
	Heartbeat struct {
		Interval string `toml:"interval"`
	} `toml:"heartbeat"`
	Storage struct {
		Path string `toml:"path"`
	} `toml:"storage"`
	Web struct {
		Addr string `toml:"addr"`
	} `toml:"web"`
	MCP struct {
		Enabled bool `toml:"enabled"`
	} `toml:"mcp"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	for _, key := range meta.Undecoded() {
		slog.Warn("Unknown config key", "key", key.String())
	}

	if meta.IsDefined("device", "type") {
		cfg.Device.Type = strings.ToUpper(strings.TrimSpace(raw.Device.Type))
	}
	if meta.IsDefined("device", "hardware_id") {
		cfg.Device.HardwareID = strings.ToUpper(strings.TrimSpace(raw.Device.HardwareID))
	}
	if meta.IsDefined("device", "color_code") {
		cfg.Device.ColorCode = strings.ToUpper(strings.TrimSpace(raw.Device.ColorCode))
	}
	if meta.IsDefined("device", "station_mac") {
		mac, err := proto.ParseMAC(strings.TrimSpace(raw.Device.StationMAC))
		if err != nil {
			return Config{}, fmt.Errorf("load config: device.station_mac: %w", err)
		}
		cfg.Device.StationMAC = mac
	}

	if meta.IsDefined("radio", "medium") {
		cfg.Radio.Medium = strings.TrimSpace(raw.Radio.Medium)
	}
	if meta.IsDefined("radio", "hub_url") {
		cfg.Radio.HubURL = strings.TrimSpace(raw.Radio.HubURL)
	}
	if meta.IsDefined("radio", "channel") {
		if raw.Radio.Channel < 1 || raw.Radio.Channel > 14 {
			return Config{}, fmt.Errorf("%w: radio.channel %d out of range 1-14", ErrInvalid, raw.Radio.Channel)
		}
		cfg.Radio.Channel = uint8(raw.Radio.Channel)
	}
	if meta.IsDefined("radio", "queue_size") {
		cfg.Radio.QueueSize = raw.Radio.QueueSize
	}

	durations := []struct {
		table, key string
		raw        string
		dst        *time.Duration
	}{
		{"pairing", "window", raw.Pairing.Window, &cfg.Pairing.Window},
		{"pairing", "interval", raw.Pairing.Interval, &cfg.Pairing.Interval},
		{"button", "click_max", raw.Button.ClickMax, &cfg.Button.ClickMax},
		{"button", "double_click_window", raw.Button.DoubleClickWindow, &cfg.Button.DoubleClickWindow},
		{"button", "hold_threshold", raw.Button.HoldThreshold, &cfg.Button.HoldThreshold},
		{"heartbeat", "interval", raw.Heartbeat.Interval, &cfg.Heartbeat},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.table, d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("load config: %s.%s: %w", d.table, d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("storage", "path") {
		cfg.Storage = strings.TrimSpace(raw.Storage.Path)
	}
	if meta.IsDefined("web", "addr") {
		cfg.WebAddr = strings.TrimSpace(raw.Web.Addr)
	}
	if meta.IsDefined("mcp", "enabled") {
		cfg.MCP = raw.MCP.Enabled
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Device.Type == "" || c.Device.HardwareID == "" {
		return fmt.Errorf("%w: device.type and device.hardware_id are required", ErrInvalid)
	}
	if strings.Contains(c.Device.Type, "-") || strings.Contains(c.Device.HardwareID, "-") {
		return fmt.Errorf("%w: device.type and device.hardware_id must not contain '-'", ErrInvalid)
	}
	if c.Device.StationMAC.IsZero() || c.Device.StationMAC.IsBroadcast() {
		return fmt.Errorf("%w: device.station_mac must be a unicast address", ErrInvalid)
	}
	switch c.Radio.Medium {
	case "hub", "local":
	default:
		return fmt.Errorf("%w: radio.medium %q (expected hub or local)", ErrInvalid, c.Radio.Medium)
	}
	if c.Radio.QueueSize <= 0 {
		return fmt.Errorf("%w: radio.queue_size must be positive", ErrInvalid)
	}
	if c.Pairing.Window <= 0 || c.Pairing.Interval <= 0 || c.Pairing.Interval > c.Pairing.Window {
		return fmt.Errorf("%w: pairing.interval must be positive and within pairing.window", ErrInvalid)
	}
	if c.Button.HoldThreshold <= 0 {
		return fmt.Errorf("%w: button.hold_threshold must be positive", ErrInvalid)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat.interval must not be negative", ErrInvalid)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format %q (expected json or console)", ErrInvalid, c.LogFormat)
	}
	return nil
}
