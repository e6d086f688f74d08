// Package sim implements a synthetic wifi.Radio for development and for
// exercising the pipeline without radio hardware. It associates after a
// configurable delay and, while CSI delivery is enabled, invokes the
// registered handler with generated subcarrier data at a fixed rate.
package sim

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// WithLogger sets the logger for the simulated radio.
func WithLogger(logger *slog.Logger) func(*Radio) {
	return func(r *Radio) {
		r.logger = logger
	}
}

// Config controls the simulated radio's behavior.
type Config struct {
	ConnectDelay    time.Duration `yaml:"connectDelay" json:"connectDelay"`       // association time (default 50ms)
	CaptureInterval time.Duration `yaml:"captureInterval" json:"captureInterval"` // time between captures (default 100ms)
	Channel         uint8         `yaml:"channel" json:"channel"`                 // reported channel (default 6)
	Subcarriers     int           `yaml:"subcarriers" json:"subcarriers"`         // samples per capture (default 128)
}

func (c *Config) Validate() error {
	if c.ConnectDelay < 0 {
		return fmt.Errorf("sim.Config: connect delay must not be negative: %s", c.ConnectDelay)
	}
	if c.CaptureInterval < 0 {
		return fmt.Errorf("sim.Config: capture interval must not be negative: %s", c.CaptureInterval)
	}
	if c.Subcarriers < 0 || c.Subcarriers > csi.MaxDataLen {
		return fmt.Errorf("sim.Config: subcarriers must be between 0 and %d: %d given", csi.MaxDataLen, c.Subcarriers)
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ConnectDelay == 0 {
		out.ConnectDelay = 50 * time.Millisecond
	}
	if out.CaptureInterval == 0 {
		out.CaptureInterval = 100 * time.Millisecond
	}
	if out.Channel == 0 {
		out.Channel = 6
	}
	if out.Subcarriers == 0 {
		out.Subcarriers = 128
	}
	return out
}

// Radio is the simulated radio. The zero value is not usable; construct
// with New.
type Radio struct {
	config Config
	logger *slog.Logger

	events chan wifi.Event

	mu        sync.Mutex
	connected bool
	enabled   bool
	handler   wifi.Handler
	csiConfig *wifi.CSIConfig
	closed    bool

	buf  []int8 // reused capture buffer, handed to the handler as-is
	seq  int
	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a simulated radio. The started event is delivered as soon
// as the caller begins consuming Events.
func New(config *Config, options ...func(*Radio)) (*Radio, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := config.withDefaults()
	r := Radio{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		events: make(chan wifi.Event, 8),
		buf:    make([]int8, cfg.Subcarriers),
		stop:   make(chan struct{}),
	}

	for _, option := range options {
		option(&r)
	}

	r.events <- wifi.EventStarted
	return &r, nil
}

func (r *Radio) Connect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("sim: radio closed")
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case <-time.After(r.config.ConnectDelay):
		case <-r.stop:
			return
		}

		r.mu.Lock()
		r.connected = true
		r.mu.Unlock()

		r.emit(wifi.EventGotIP)
	}()

	return nil
}

func (r *Radio) Events() <-chan wifi.Event {
	return r.events
}

func (r *Radio) ApplyCSIConfig(cfg *wifi.CSIConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.csiConfig = cfg
	return nil
}

func (r *Radio) OnCSI(h wifi.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	return nil
}

func (r *Radio) EnableCSI(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("sim: radio closed")
	}
	if enabled == r.enabled {
		return nil
	}

	r.enabled = enabled
	if enabled {
		r.wg.Add(1)
		go r.generate()
	}
	return nil
}

// Drop simulates losing the access point: capture pauses and a
// disconnect event is emitted, putting the machine on its retry path.
func (r *Radio) Drop() {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.emit(wifi.EventDisconnected)
}

func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.enabled = false
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()

	// emit sends under the mutex, so closing under it too cannot race an
	// in-flight delivery.
	r.mu.Lock()
	close(r.events)
	r.mu.Unlock()
	return nil
}

// generate invokes the handler once per capture interval while delivery
// is enabled and the radio is associated.
func (r *Radio) generate() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return

		case <-ticker.C:
			r.mu.Lock()
			if !r.enabled {
				r.mu.Unlock()
				return
			}
			handler := r.handler
			deliver := r.connected && handler != nil
			if deliver {
				r.seq++
				fill(r.buf, r.seq)
			}
			info := wifi.Info{
				RSSI:      -40 - r.seq%20,
				Rate:      11,
				Channel:   r.config.Channel,
				Bandwidth: csi.Bandwidth20,
				Data:      r.buf,
			}
			r.mu.Unlock()

			if deliver {
				// Handler contract: the buffer is only valid during the
				// call and is overwritten by the next capture.
				handler(info)
			}
		}
	}
}

// emit delivers a lifecycle event unless the radio is closed. The
// events channel is buffered; a full channel means the consumer is gone
// and the event is dropped with a warning.
func (r *Radio) emit(event wifi.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	select {
	case r.events <- event:
	default:
		r.logger.Warn("event channel full, dropping event",
			slog.String("event", event.String()))
	}
}

// fill writes a phase-shifted waveform into buf so consecutive captures
// look like a moving channel response rather than noise.
func fill(buf []int8, seq int) {
	phase := float64(seq) / 10
	for i := range buf {
		buf[i] = int8(90 * math.Sin(phase+float64(i)/8))
	}
}
