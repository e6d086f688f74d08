package csi

import (
	"bytes"
	"testing"
)

func TestFrameEncoding(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{
			name: "typical record",
			record: Record{
				RSSI:      -42,
				Rate:      11,
				Channel:   6,
				Bandwidth: Bandwidth20,
				Timestamp: 123456789,
				Data:      []int8{1, -2, 3},
			},
			want: `CSI_START{"rssi":-42,"rate":11,"channel":6,"bandwidth":0,"len":3,"timestamp":123456789,"csi_data":[1,-2,3]}CSI_END` + "\n",
		},
		{
			name: "empty payload",
			record: Record{
				RSSI:      -80,
				Rate:      0,
				Channel:   1,
				Bandwidth: Bandwidth20,
				Timestamp: 1,
			},
			want: `CSI_START{"rssi":-80,"rate":0,"channel":1,"bandwidth":0,"len":0,"timestamp":1,"csi_data":[]}CSI_END` + "\n",
		},
		{
			name: "extreme sample values",
			record: Record{
				RSSI:      -1,
				Rate:      255,
				Channel:   13,
				Bandwidth: Bandwidth40,
				Timestamp: 9223372036854775807,
				Data:      []int8{-128, 127},
			},
			want: `CSI_START{"rssi":-1,"rate":255,"channel":13,"bandwidth":1,"len":2,"timestamp":9223372036854775807,"csi_data":[-128,127]}CSI_END` + "\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Frame(&tc.record)
			if string(got) != tc.want {
				t.Errorf("Frame() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppendFrameExtendsBuffer(t *testing.T) {
	prefix := []byte("boot banner\n")
	r := Record{RSSI: -10, Channel: 6, Timestamp: 42, Data: []int8{5}}

	got := AppendFrame(append([]byte(nil), prefix...), &r)
	if !bytes.HasPrefix(got, prefix) {
		t.Fatalf("AppendFrame clobbered existing buffer contents: %q", got)
	}
	if want := string(prefix) + string(Frame(&r)); string(got) != want {
		t.Errorf("AppendFrame() = %q, want %q", got, want)
	}
}

func TestFrameLenMatchesData(t *testing.T) {
	data := make([]int8, MaxDataLen)
	for i := range data {
		data[i] = int8(i % 128)
	}

	frame := Frame(&Record{RSSI: -55, Channel: 11, Data: data})

	// len field must agree with the number of csi_data entries.
	if !bytes.Contains(frame, []byte(`"len":612,`)) {
		t.Errorf("frame does not carry len=%d: %q", MaxDataLen, frame[:64])
	}
	if n := bytes.Count(frame, []byte(",")); n == 0 {
		t.Fatal("frame has no payload separators")
	}
}
