package espserial

import (
	"fmt"
)

const (
	DefaultBaudRate = 115200

	BaudRateMin = 9600
	BaudRateMax = 921600
)

// Config is the serial link configuration for an attached ESP32 running
// the CSI firmware.
type Config struct {
	Port     string `yaml:"port" json:"port"`         // device path, e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baudRate" json:"baudRate"` // default 115200
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("espserial.Config: port is required")
	}
	if c.BaudRate != 0 && (c.BaudRate < BaudRateMin || c.BaudRate > BaudRateMax) {
		return fmt.Errorf("espserial.Config: baud rate must be between %d and %d: %d given", BaudRateMin, BaudRateMax, c.BaudRate)
	}
	return nil
}

func (c *Config) String() string {
	baud := c.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return fmt.Sprintf("%s @ %d 8N1", c.Port, baud)
}
