package csi

import "strconv"

// Frame markers of the serial wire protocol. The downstream parser locates
// frames with these literals, so they must appear byte-exact on the wire.
const (
	frameStart = "CSI_START"
	frameEnd   = "CSI_END\n"
)

// AppendFrame appends the wire encoding of r to dst and returns the
// extended buffer:
//
//	CSI_START{"rssi":-42,...,"csi_data":[1,-2,3]}CSI_END\n
//
// Field order is fixed and all values are numeric, so the encoding is
// built directly with strconv rather than encoding/json: the external
// parser relies on the exact byte layout, not merely on valid JSON.
func AppendFrame(dst []byte, r *Record) []byte {
	dst = append(dst, frameStart...)
	dst = append(dst, `{"rssi":`...)
	dst = strconv.AppendInt(dst, int64(r.RSSI), 10)
	dst = append(dst, `,"rate":`...)
	dst = strconv.AppendUint(dst, uint64(r.Rate), 10)
	dst = append(dst, `,"channel":`...)
	dst = strconv.AppendUint(dst, uint64(r.Channel), 10)
	dst = append(dst, `,"bandwidth":`...)
	dst = strconv.AppendUint(dst, uint64(r.Bandwidth), 10)
	dst = append(dst, `,"len":`...)
	dst = strconv.AppendInt(dst, int64(len(r.Data)), 10)
	dst = append(dst, `,"timestamp":`...)
	dst = strconv.AppendInt(dst, r.Timestamp, 10)
	dst = append(dst, `,"csi_data":[`...)
	for i, v := range r.Data {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendInt(dst, int64(v), 10)
	}
	dst = append(dst, `]}`...)
	dst = append(dst, frameEnd...)
	return dst
}

// Frame returns the wire encoding of r as a freshly allocated buffer.
func Frame(r *Record) []byte {
	// Worst case is ~4 bytes per payload sample plus the fixed fields.
	return AppendFrame(make([]byte, 0, 64+4*len(r.Data)), r)
}
