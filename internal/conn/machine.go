// Package conn owns the radio association lifecycle. A Machine tracks the
// connection state, drives unconditional reconnection, and releases a
// one-shot capture gate when address acquisition completes. An Enabler
// waits on that gate and runs the CSI enablement sequence.
package conn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// WithLogger sets the logger for the machine.
func WithLogger(logger *slog.Logger) func(*Machine) {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithGateRearm controls whether the capture gate re-arms after a
// reconnection. When false the gate releases only once for the process
// lifetime; capture does not resume after a disconnect.
func WithGateRearm(rearm bool) func(*Machine) {
	return func(m *Machine) {
		m.rearmGate = rearm
	}
}

// transition is a key into the machine's action table: an observed radio
// event in a given state.
type transition struct {
	from  wifi.State
	event wifi.Event
}

// Machine owns the connection state. The state is written only by the
// machine's own event loop; readers use State.
//
// Enablement work is deliberately kept out of the event dispatch: every
// reaction is an entry in an explicit per-transition table, so nothing
// can run on an unintended event.
type Machine struct {
	radio wifi.Radio

	mu    sync.Mutex
	state wifi.State

	gate      chan struct{}
	rearmGate bool
	released  bool // gate released at least once over the process lifetime

	logger  *slog.Logger
	actions map[transition]func() wifi.State
}

// NewMachine creates a machine for radio, initially Disconnected.
func NewMachine(radio wifi.Radio, options ...func(*Machine)) *Machine {
	m := Machine{
		radio:     radio,
		state:     wifi.Disconnected,
		gate:      make(chan struct{}, 1),
		rearmGate: true,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	m.actions = map[transition]func() wifi.State{
		{wifi.Disconnected, wifi.EventStarted}:    m.associate,
		{wifi.Connecting, wifi.EventGotIP}:        m.connected,
		{wifi.Connecting, wifi.EventDisconnected}: m.associate,
		{wifi.Connected, wifi.EventDisconnected}:  m.associate,
	}

	return &m
}

// State returns the current connection state.
func (m *Machine) State() wifi.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Gate returns the capture gate channel. It receives one value per gate
// release; a release happens at most once per successful connection.
func (m *Machine) Gate() <-chan struct{} {
	return m.gate
}

// Run consumes radio lifecycle events until ctx is cancelled or the
// radio's event channel closes. Reconnection is unconditional: every
// disconnect immediately re-issues an association request, without
// backoff and without a retry limit.
func (m *Machine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-m.radio.Events():
			if !ok {
				return fmt.Errorf("radio event channel closed")
			}
			m.dispatch(event)
		}
	}
}

func (m *Machine) dispatch(event wifi.Event) {
	m.mu.Lock()
	current := m.state
	action, ok := m.actions[transition{current, event}]
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("ignoring radio event",
			slog.String("state", current.String()),
			slog.String("event", event.String()))
		return
	}

	// The action may issue a blocking radio command; run it without the
	// lock so State readers are never stalled behind the device. Run is
	// the only dispatcher, so the state cannot change underneath it.
	next := action()
	if next != current {
		m.logger.Info("connection state changed",
			slog.String("from", current.String()),
			slog.String("to", next.String()))
		m.mu.Lock()
		m.state = next
		m.mu.Unlock()
	}
}

// associate issues an association request and moves to Connecting.
func (m *Machine) associate() wifi.State {
	if err := m.radio.Connect(); err != nil {
		// The radio will surface another disconnect event if the request
		// itself failed; stay on the retry path either way.
		m.logger.Error(fmt.Sprintf("association request failed: %s", err))
	}
	return wifi.Connecting
}

// connected releases the capture gate and moves to Connected. The gate
// fires at most once per Connecting-to-Connected transition, and with
// re-arming disabled at most once for the process lifetime.
func (m *Machine) connected() wifi.State {
	if m.released && !m.rearmGate {
		return wifi.Connected
	}

	select {
	case m.gate <- struct{}{}:
		m.released = true
	default:
		// A previous release has not been consumed yet; releasing again
		// would run the enablement sequence twice for one session.
	}

	return wifi.Connected
}
