package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
	"github.com/wifi-sensing/csi-collector/internal/wifi/espserial"
	"github.com/wifi-sensing/csi-collector/internal/wifi/sim"
)

const (
	DriverESPSerial DriverType = "esp-serial"
	DriverSim       DriverType = "sim"

	defaultStorePath = "provision.sqlite"
)

type DriverType string

var validDrivers = map[DriverType]struct{}{
	DriverESPSerial: {},
	DriverSim:       {},
}

// Duration wraps time.Duration with YAML scalar parsing ("250ms", "30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d *Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(*d).String(), nil
}

// Config is the main application configuration.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Radio     RadioConfig     `yaml:"radio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Output    OutputConfig    `yaml:"output"`
	Provision ProvisionConfig `yaml:"provision"`
	Stats     StatsConfig     `yaml:"stats"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// RadioConfig selects and configures the radio driver.
type RadioConfig struct {
	Driver    DriverType       `yaml:"driver"`
	ESPSerial espserial.Config `yaml:"espSerial"`
	Sim       SimConfig        `yaml:"sim"`
}

// SimConfig is the YAML-facing form of the simulated radio's settings.
type SimConfig struct {
	ConnectDelay    Duration `yaml:"connectDelay"`
	CaptureInterval Duration `yaml:"captureInterval"`
	Channel         uint8    `yaml:"channel"`
	Subcarriers     int      `yaml:"subcarriers"`
}

func (c *SimConfig) toDriver() *sim.Config {
	return &sim.Config{
		ConnectDelay:    time.Duration(c.ConnectDelay),
		CaptureInterval: time.Duration(c.CaptureInterval),
		Channel:         c.Channel,
		Subcarriers:     c.Subcarriers,
	}
}

// CaptureConfig tunes the capture pipeline.
type CaptureConfig struct {
	// QueueSize is the capture queue capacity; 0 selects the default.
	QueueSize int `yaml:"queueSize"`

	// OneShotGate limits capture enablement to the first successful
	// connection: after a reconnection capture stays off. By default the
	// gate re-arms and capture resumes on every reconnection.
	OneShotGate bool `yaml:"oneShotGate"`

	CSI wifi.CSIConfig `yaml:"csi"`
}

// OutputConfig selects where frames are written.
type OutputConfig struct {
	Stdout   bool   `yaml:"stdout"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
}

// ProvisionConfig locates the provisioning store and optionally seeds it.
type ProvisionConfig struct {
	StorePath string `yaml:"storePath"`

	// SSID/Password, when set, are written into the store at bring-up,
	// replacing whatever it held. Normally set once and then removed
	// from the config file.
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// StatsConfig controls periodic pipeline stats logging; a zero interval
// disables it.
type StatsConfig struct {
	Interval Duration `yaml:"interval"`
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, ok := validDrivers[c.Radio.Driver]; !ok {
		return fmt.Errorf("app.Config: unknown radio driver: %q", c.Radio.Driver)
	}

	switch c.Radio.Driver {
	case DriverESPSerial:
		if err := c.Radio.ESPSerial.Validate(); err != nil {
			return err
		}
	case DriverSim:
		if err := c.Radio.Sim.toDriver().Validate(); err != nil {
			return err
		}
	}

	if c.Capture.QueueSize < 0 {
		return fmt.Errorf("app.Config: queue size must not be negative: %d", c.Capture.QueueSize)
	}
	if err := c.csiConfig().Validate(); err != nil {
		return err
	}

	if !c.Output.Stdout && c.Output.Port == "" {
		return fmt.Errorf("app.Config: output requires a serial port or stdout")
	}
	if c.Output.Stdout && c.Output.Port != "" {
		return fmt.Errorf("app.Config: output port and stdout are mutually exclusive")
	}
	if c.Output.BaudRate < 0 {
		return fmt.Errorf("app.Config: invalid output baud rate: %d", c.Output.BaudRate)
	}

	if c.Stats.Interval < 0 {
		return fmt.Errorf("app.Config: stats interval must not be negative: %s", time.Duration(c.Stats.Interval))
	}

	return nil
}

// queueSize returns the configured queue capacity or the default.
func (c *Config) queueSize() int {
	if c.Capture.QueueSize == 0 {
		return csi.DefaultQueueSize
	}
	return c.Capture.QueueSize
}

// csiConfig returns the configured CSI options, falling back to the
// radio defaults only when the section is absent entirely. A partially
// filled section is returned as-is so Validate can reject it instead of
// silently discarding the user's settings.
func (c *Config) csiConfig() *wifi.CSIConfig {
	cfg := c.Capture.CSI
	if cfg == (wifi.CSIConfig{}) {
		return wifi.DefaultCSIConfig()
	}
	return &cfg
}

// storePath returns the configured provisioning store path or the default.
func (c *Config) storePath() string {
	if c.Provision.StorePath == "" {
		return defaultStorePath
	}
	return c.Provision.StorePath
}
