package espserial

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// Line prefixes emitted by the CSI firmware on its console UART.
const (
	csiDataPrefix   = "CSI_DATA,"
	wifiEventPrefix = "WIFI_EVENT,"
)

// parseEvent maps a firmware lifecycle line to a radio event.
//
//	WIFI_EVENT,STARTED
//	WIFI_EVENT,DISCONNECTED
//	WIFI_EVENT,GOT_IP
func parseEvent(line string) (wifi.Event, error) {
	switch strings.TrimPrefix(line, wifiEventPrefix) {
	case "STARTED":
		return wifi.EventStarted, nil
	case "DISCONNECTED":
		return wifi.EventDisconnected, nil
	case "GOT_IP":
		return wifi.EventGotIP, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle event: %q", line)
	}
}

// parseCSILine parses one firmware capture row into a descriptor:
//
//	CSI_DATA,<rssi>,<rate>,<channel>,<bandwidth>,<len>,[<d0> <d1> ...]
//
// The returned Info aliases buf, which is resized to the row's payload
// length; per the wifi.Handler contract the callee must copy what it
// keeps.
func parseCSILine(line string, buf []int8) (wifi.Info, error) {
	fields := strings.SplitN(strings.TrimPrefix(line, csiDataPrefix), ",", 6)
	if len(fields) != 6 {
		return wifi.Info{}, fmt.Errorf("invalid CSI row: expected 6 fields, got %d", len(fields))
	}

	rssi, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return wifi.Info{}, fmt.Errorf("invalid RSSI: %w", err)
	}

	rate, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 8)
	if err != nil {
		return wifi.Info{}, fmt.Errorf("invalid rate: %w", err)
	}

	channel, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 8)
	if err != nil {
		return wifi.Info{}, fmt.Errorf("invalid channel: %w", err)
	}

	bandwidth, err := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 8)
	if err != nil {
		return wifi.Info{}, fmt.Errorf("invalid bandwidth: %w", err)
	}

	length, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return wifi.Info{}, fmt.Errorf("invalid payload length: %w", err)
	}
	if length < 0 || length > csi.MaxDataLen {
		return wifi.Info{}, fmt.Errorf("payload length out of range: %d", length)
	}

	payload := strings.TrimSpace(fields[5])
	if !strings.HasPrefix(payload, "[") || !strings.HasSuffix(payload, "]") {
		return wifi.Info{}, fmt.Errorf("payload is not bracketed: %q", payload)
	}
	payload = strings.TrimSpace(payload[1 : len(payload)-1])

	var samples []string
	if payload != "" {
		samples = strings.Fields(payload)
	}
	if len(samples) != length {
		return wifi.Info{}, fmt.Errorf("payload length mismatch: header says %d, row has %d", length, len(samples))
	}

	buf = buf[:0]
	for _, s := range samples {
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return wifi.Info{}, fmt.Errorf("invalid payload sample %q: %w", s, err)
		}
		buf = append(buf, int8(v))
	}

	return wifi.Info{
		RSSI:      rssi,
		Rate:      uint8(rate),
		Channel:   uint8(channel),
		Bandwidth: uint8(bandwidth),
		Data:      buf,
	}, nil
}
