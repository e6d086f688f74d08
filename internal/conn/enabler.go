package conn

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// WithEnablerLogger sets the logger for the enabler.
func WithEnablerLogger(logger *slog.Logger) func(*Enabler) {
	return func(e *Enabler) {
		e.logger = logger
	}
}

// Enabler runs the capture-enablement sequence once per gate release:
// apply the CSI configuration, register the capture handler, and enable
// CSI delivery. Any sub-step failure aborts the attempt with a logged
// error; capture then stays off until a future gate release.
type Enabler struct {
	radio   wifi.Radio
	config  *wifi.CSIConfig
	handler wifi.Handler
	logger  *slog.Logger
}

// NewEnabler creates an enabler that registers handler on radio using
// the given CSI configuration.
func NewEnabler(radio wifi.Radio, config *wifi.CSIConfig, handler wifi.Handler, options ...func(*Enabler)) *Enabler {
	e := Enabler{
		radio:   radio,
		config:  config,
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Run waits on gate and performs one enablement attempt per release,
// until ctx is cancelled.
func (e *Enabler) Run(ctx context.Context, gate <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-gate:
			if err := e.enable(); err != nil {
				e.logger.Error(fmt.Sprintf("capture enablement failed: %s", err))
			}
		}
	}
}

// enable performs the three enablement sub-steps. Registering the same
// handler again after a reconnection replaces the previous registration,
// so the sequence is idempotent across gate releases.
func (e *Enabler) enable() error {
	if err := e.radio.ApplyCSIConfig(e.config); err != nil {
		return fmt.Errorf("applying CSI config: %w", err)
	}

	if err := e.radio.OnCSI(e.handler); err != nil {
		return fmt.Errorf("registering CSI callback: %w", err)
	}

	if err := e.radio.EnableCSI(true); err != nil {
		return fmt.Errorf("enabling CSI delivery: %w", err)
	}

	e.logger.Info("CSI capture enabled")
	return nil
}
