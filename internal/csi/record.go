package csi

// MaxDataLen is the largest CSI payload the radio's CSI feature set
// produces (legacy LTF + HT-LTF + STBC-HT-LTF on a 40 MHz channel).
const MaxDataLen = 612

// Bandwidth codes as reported by the radio.
const (
	Bandwidth20 uint8 = 0 // 20 MHz
	Bandwidth40 uint8 = 1 // 40 MHz
)

// Record is a single channel state measurement captured from the radio's
// receive path. A Record owns its payload: the raw driver buffer is copied
// at capture time and the Record is never mutated once constructed.
type Record struct {
	RSSI      int    // received signal strength at capture time, dBm
	Rate      uint8  // PHY rate code of the captured frame
	Channel   uint8  // primary WiFi channel number
	Bandwidth uint8  // channel width code, see Bandwidth20 / Bandwidth40
	Timestamp int64  // monotonic microseconds since radio start
	Data      []int8 // raw per-subcarrier samples, len(Data) <= MaxDataLen
}
