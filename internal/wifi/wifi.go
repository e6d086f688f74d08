package wifi

import "fmt"

// State is the radio association state. It is owned by the connection
// state machine; other components read it but never mutate it.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a radio lifecycle event delivered on the Radio's event channel.
type Event int

const (
	// EventStarted fires once the radio interface is up and ready to
	// begin association.
	EventStarted Event = iota

	// EventDisconnected fires when the association to the access point
	// is lost, for any reason.
	EventDisconnected

	// EventGotIP fires when address acquisition completes; the radio is
	// fully usable from this point.
	EventGotIP
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventDisconnected:
		return "disconnected"
	case EventGotIP:
		return "got-ip"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Credentials is the access point association material, seeded from the
// provisioning store at bring-up.
type Credentials struct {
	SSID     string
	Password string
}

// Info is the raw capture descriptor handed to a CSI callback. It is
// valid only for the duration of the call: Data aliases a driver buffer
// that is reused after the callback returns, so the callee must copy
// anything it keeps.
type Info struct {
	RSSI      int    // dBm
	Rate      uint8  // PHY rate code
	Channel   uint8  // primary channel
	Bandwidth uint8  // channel width code
	Data      []int8 // raw per-subcarrier samples, driver-owned
}

// Handler receives one Info per captured frame carrying CSI data. It is
// invoked from the radio's own delivery context and must return quickly:
// no blocking, no unbounded allocation, no I/O.
type Handler func(info Info)

// Radio is the collector's view of the WiFi stack. Implementations
// deliver lifecycle events on Events and invoke the registered Handler
// once per received frame while CSI delivery is enabled.
type Radio interface {
	// Connect begins (or re-begins) association with the configured
	// access point. It returns once the request is issued; completion
	// is reported through Events.
	Connect() error

	// Events returns the lifecycle event channel. The channel is closed
	// when the radio shuts down.
	Events() <-chan Event

	// ApplyCSIConfig applies capture configuration to the radio.
	ApplyCSIConfig(cfg *CSIConfig) error

	// OnCSI registers h as the CSI delivery callback. Re-registering
	// replaces the previous handler; it never duplicates delivery.
	OnCSI(h Handler) error

	// EnableCSI turns CSI delivery on or off at the radio level.
	EnableCSI(enabled bool) error

	// Close releases the radio. Events is closed as a consequence.
	Close() error
}
