package espserial

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// fakePort is an in-memory duplex serial port: reads come from a fed
// pipe, writes accumulate in a buffer.
type fakePort struct {
	reader *io.PipeReader
	feed   *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{reader: r, feed: w}
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	return p.feed.Close()
}

func (p *fakePort) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Fields(p.written.String())
}

func (p *fakePort) feedLine(t *testing.T, line string) {
	t.Helper()
	if _, err := p.feed.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("Failed to feed line: %v", err)
	}
}

func TestRadioDispatchesLifecycleEvents(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)
	defer radio.Close()

	port.feedLine(t, "boot: firmware v1.2")
	port.feedLine(t, "WIFI_EVENT,STARTED")
	port.feedLine(t, "WIFI_EVENT,GOT_IP")

	for _, want := range []wifi.Event{wifi.EventStarted, wifi.EventGotIP} {
		select {
		case got := <-radio.Events():
			if got != want {
				t.Errorf("Expected event %s, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for event %s", want)
		}
	}
}

func TestRadioCloseReturnsWhenEventsUnconsumed(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)

	// More lifecycle lines than the events channel can hold, with no
	// consumer on Events(). A flapping link does exactly this during
	// shutdown, and Close must still join the reader.
	for i := 0; i < 12; i++ {
		port.feedLine(t, "WIFI_EVENT,DISCONNECTED")
	}

	done := make(chan error, 1)
	go func() { done <- radio.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return with an unconsumed events channel")
	}
}

func TestRadioDeliversCSIOnlyWhileEnabled(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)
	defer radio.Close()

	var mu sync.Mutex
	var got []wifi.Info
	if err := radio.OnCSI(func(info wifi.Info) {
		data := make([]int8, len(info.Data))
		copy(data, info.Data)
		info.Data = data

		mu.Lock()
		got = append(got, info)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("OnCSI failed: %v", err)
	}

	// Rows before enablement are discarded. The event line after the
	// row acts as a barrier: once it arrives the reader has already
	// processed the row while capture was still disabled.
	port.feedLine(t, "CSI_DATA,-50,11,6,0,1,[9]")
	port.feedLine(t, "WIFI_EVENT,STARTED")
	select {
	case <-radio.Events():
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the event barrier")
	}

	if err := radio.EnableCSI(true); err != nil {
		t.Fatalf("EnableCSI failed: %v", err)
	}
	port.feedLine(t, "CSI_DATA,-42,11,6,0,3,[1 -2 3]")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("Expected 1 delivered capture, got %d", len(got))
	}
	if got[0].RSSI != -42 || len(got[0].Data) != 3 {
		t.Errorf("Unexpected capture: %+v", got[0])
	}
}

func TestRadioKeepsReadingAfterMalformedRows(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)
	defer radio.Close()

	delivered := make(chan wifi.Info, 1)
	if err := radio.OnCSI(func(info wifi.Info) { delivered <- info }); err != nil {
		t.Fatalf("OnCSI failed: %v", err)
	}
	if err := radio.EnableCSI(true); err != nil {
		t.Fatalf("EnableCSI failed: %v", err)
	}

	for i := 0; i < parseErrorsThreshold+1; i++ {
		port.feedLine(t, "CSI_DATA,garbage")
	}
	port.feedLine(t, "CSI_DATA,-42,11,6,0,1,[5]")

	select {
	case info := <-delivered:
		if info.RSSI != -42 {
			t.Errorf("Expected RSSI -42, got %d", info.RSSI)
		}
	case <-time.After(time.Second):
		t.Fatal("Driver stopped delivering after malformed rows")
	}
}

func TestRadioSendsFirmwareCommands(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)
	defer radio.Close()

	if err := radio.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	cfg := &wifi.CSIConfig{LLTF: true, HTLTF: true, ChannelFilter: wifi.ChannelFilterPrimary}
	if err := radio.ApplyCSIConfig(cfg); err != nil {
		t.Fatalf("ApplyCSIConfig failed: %v", err)
	}
	if err := radio.EnableCSI(true); err != nil {
		t.Fatalf("EnableCSI failed: %v", err)
	}

	want := []string{
		"WIFI_CONNECT",
		"CSI_CONFIG,1,1,0,primary,0,0",
		"CSI_ENABLE,1",
	}
	got := port.commands()
	if len(got) != len(want) {
		t.Fatalf("Expected %d commands, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRadioConnectWithCredentials(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port, WithCredentials(wifi.Credentials{SSID: "lab-ap", Password: "secret"}))
	defer radio.Close()

	if err := radio.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	got := port.commands()
	if len(got) != 1 || got[0] != "WIFI_CONNECT,lab-ap,secret" {
		t.Errorf("Expected credentialed connect command, got %v", got)
	}
}

func TestRadioCloseEndsEventStream(t *testing.T) {
	port := newFakePort()
	radio := NewWithPort(port)

	if err := radio.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-radio.Events():
		if ok {
			t.Error("Expected a closed event channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Event channel not closed after Close")
	}

	if err := radio.Connect(); err == nil {
		t.Error("Expected an error sending on a closed radio")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Port: "/dev/ttyUSB0", BaudRate: 115200}, false},
		{"default baud", Config{Port: "/dev/ttyUSB0"}, false},
		{"missing port", Config{BaudRate: 115200}, true},
		{"baud too low", Config{Port: "/dev/ttyUSB0", BaudRate: 300}, true},
		{"baud too high", Config{Port: "/dev/ttyUSB0", BaudRate: 2_000_000}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
