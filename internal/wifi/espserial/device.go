// Package espserial implements wifi.Radio for an ESP32 running the CSI
// firmware, attached over a serial link. The firmware prints lifecycle
// markers and CSI capture rows on its console UART and accepts one-line
// commands; this driver is the host side of that contract.
package espserial

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// parseErrorsThreshold is the number of consecutive malformed CSI rows
// tolerated before the condition is escalated to an error log. The
// driver keeps reading regardless: a noisy link must not stop capture.
const parseErrorsThreshold = 5

// WithLogger sets the logger for the driver.
func WithLogger(logger *slog.Logger) func(*Radio) {
	return func(r *Radio) {
		r.logger = logger
	}
}

// WithCredentials makes Connect pass the given association material to
// the firmware. Without credentials the firmware associates using
// whatever its own provisioning holds.
func WithCredentials(creds wifi.Credentials) func(*Radio) {
	return func(r *Radio) {
		r.creds = creds
	}
}

// Radio drives a serial-attached ESP32. A reader goroutine owns the
// receive side of the port for the Radio's lifetime; command writes are
// serialized by a mutex.
type Radio struct {
	port   io.ReadWriteCloser
	logger *slog.Logger
	creds  wifi.Credentials

	events chan wifi.Event

	mu      sync.Mutex
	handler wifi.Handler
	enabled bool
	closed  bool

	wg sync.WaitGroup
}

// New opens the serial port described by config and starts the reader.
func New(config *Config, options ...func(*Radio)) (*Radio, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baud := config.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", config.Port, err)
	}

	return NewWithPort(port, options...), nil
}

// NewWithPort wraps an already-open port. Used by tests and by
// deployments where the device is bridged over something other than a
// local serial port.
func NewWithPort(port io.ReadWriteCloser, options ...func(*Radio)) *Radio {
	r := Radio{
		port:   port,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		events: make(chan wifi.Event, 8),
	}

	for _, option := range options {
		option(&r)
	}

	r.wg.Add(1)
	go r.read()

	return &r
}

func (r *Radio) Connect() error {
	if r.creds.SSID != "" {
		return r.send(fmt.Sprintf("WIFI_CONNECT,%s,%s", r.creds.SSID, r.creds.Password))
	}
	return r.send("WIFI_CONNECT")
}

func (r *Radio) Events() <-chan wifi.Event {
	return r.events
}

func (r *Radio) ApplyCSIConfig(cfg *wifi.CSIConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	filter := cfg.ChannelFilter
	if filter == "" {
		filter = wifi.ChannelFilterOff
	}

	return r.send(fmt.Sprintf("CSI_CONFIG,%d,%d,%d,%s,%d,%d",
		boolFlag(cfg.LLTF), boolFlag(cfg.HTLTF), boolFlag(cfg.STBCHTLTF),
		filter, boolFlag(cfg.ManualScale), cfg.ScaleShift))
}

func (r *Radio) OnCSI(h wifi.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("espserial: radio closed")
	}
	r.handler = h
	return nil
}

func (r *Radio) EnableCSI(enabled bool) error {
	if err := r.send(fmt.Sprintf("CSI_ENABLE,%d", boolFlag(enabled))); err != nil {
		return err
	}

	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()
	return nil
}

func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.port.Close()
	r.wg.Wait() // reader exits on port close, then closes events
	return err
}

// send writes one newline-terminated command to the device.
func (r *Radio) send(command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("espserial: radio closed")
	}

	if _, err := r.port.Write([]byte(command + "\n")); err != nil {
		return fmt.Errorf("sending %q: %w", command, err)
	}
	return nil
}

// read scans console lines until the port closes, dispatching lifecycle
// events and CSI rows. Anything else is device console noise and is only
// surfaced at debug level.
func (r *Radio) read() {
	defer r.wg.Done()
	defer close(r.events)

	var parseErrors int
	buf := make([]int8, 0, csi.MaxDataLen)

	scanner := bufio.NewScanner(r.port)
	scanner.Buffer(make([]byte, 0, 4096), 16384)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":

		case strings.HasPrefix(line, wifiEventPrefix):
			event, err := parseEvent(line)
			if err != nil {
				r.logger.Warn(fmt.Sprintf("error parsing lifecycle line: %s", err))
				continue
			}
			// Never block the reader on a slow or absent consumer,
			// otherwise Close waits on us forever.
			select {
			case r.events <- event:
			default:
				r.logger.Warn("events channel full, dropping lifecycle event",
					slog.String("event", event.String()))
			}

		case strings.HasPrefix(line, csiDataPrefix):
			info, err := parseCSILine(line, buf)
			if err != nil {
				parseErrors++
				r.logger.Warn(fmt.Sprintf("error parsing CSI row: %s", err), slog.String("line", line))

				if parseErrors == parseErrorsThreshold {
					r.logger.Error("repeated malformed CSI rows, check baud rate and firmware version")
				}
				continue
			}
			parseErrors = 0

			r.deliver(info)

		default:
			r.logger.Debug(fmt.Sprintf("device >> %s", line))
		}
	}

	if err := scanner.Err(); err != nil {
		r.logger.Warn(fmt.Sprintf("serial read stopped: %s", err))
	}
}

func (r *Radio) deliver(info wifi.Info) {
	r.mu.Lock()
	handler := r.handler
	enabled := r.enabled
	r.mu.Unlock()

	if enabled && handler != nil {
		handler(info)
	}
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
