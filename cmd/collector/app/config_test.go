package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
radio:
  driver: esp-serial
  espSerial:
    port: /dev/ttyUSB0
    baudRate: 921600
capture:
  queueSize: 32
  oneShotGate: true
  csi:
    lltf: true
    htltf: true
    channelFilter: primary
output:
  port: /dev/ttyUSB1
provision:
  storePath: /var/lib/collector/provision.sqlite
  ssid: lab-ap
  password: secret
stats:
  interval: 30s
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Radio.Driver != DriverESPSerial {
		t.Errorf("Expected esp-serial driver, got %s", config.Radio.Driver)
	}
	if config.Radio.ESPSerial.BaudRate != 921600 {
		t.Errorf("Expected baud rate 921600, got %d", config.Radio.ESPSerial.BaudRate)
	}
	if config.Capture.QueueSize != 32 || !config.Capture.OneShotGate {
		t.Errorf("Unexpected capture config: %+v", config.Capture)
	}
	if got := config.csiConfig(); !got.LLTF || !got.HTLTF || got.STBCHTLTF {
		t.Errorf("Unexpected CSI config: %+v", got)
	}
	if got := config.csiConfig(); got.ChannelFilter != wifi.ChannelFilterPrimary {
		t.Errorf("Channel filter lost: %+v", got)
	}
	if time.Duration(config.Stats.Interval) != 30*time.Second {
		t.Errorf("Expected 30s stats interval, got %s", time.Duration(config.Stats.Interval))
	}
	if config.storePath() != "/var/lib/collector/provision.sqlite" {
		t.Errorf("Unexpected store path: %s", config.storePath())
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
radio:
  driver: sim
output:
  stdout: true
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.queueSize() != 10 {
		t.Errorf("Expected default queue size 10, got %d", config.queueSize())
	}
	if config.storePath() != defaultStorePath {
		t.Errorf("Expected default store path, got %s", config.storePath())
	}
	if config.Capture.OneShotGate {
		t.Error("Gate must re-arm by default")
	}

	// Absent CSI section falls back to radio defaults.
	csiCfg := config.csiConfig()
	if !csiCfg.LLTF || !csiCfg.HTLTF || !csiCfg.STBCHTLTF {
		t.Errorf("Expected default CSI config, got %+v", csiCfg)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"unknown driver",
			"radio:\n  driver: hackrf\noutput:\n  stdout: true\n",
		},
		{
			"esp-serial without port",
			"radio:\n  driver: esp-serial\noutput:\n  stdout: true\n",
		},
		{
			"no output",
			"radio:\n  driver: sim\n",
		},
		{
			"stdout and port",
			"radio:\n  driver: sim\noutput:\n  stdout: true\n  port: /dev/ttyUSB1\n",
		},
		{
			"negative queue size",
			"radio:\n  driver: sim\ncapture:\n  queueSize: -1\noutput:\n  stdout: true\n",
		},
		{
			"bad duration scalar",
			"radio:\n  driver: sim\noutput:\n  stdout: true\nstats:\n  interval: thirty\n",
		},
		{
			"bad csi scale",
			"radio:\n  driver: sim\noutput:\n  stdout: true\ncapture:\n  csi:\n    lltf: true\n    manualScale: true\n    scaleShift: 16\n",
		},
		{
			"csi filter without training fields",
			"radio:\n  driver: sim\noutput:\n  stdout: true\ncapture:\n  csi:\n    channelFilter: primary\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("Expected a config error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
