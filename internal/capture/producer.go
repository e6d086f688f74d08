// Package capture holds the two halves of the capture pipeline: the
// Producer invoked from the radio's delivery context, and the Consumer
// that drains the queue onto the serial transport.
package capture

import (
	"time"

	"github.com/wifi-sensing/csi-collector/internal/csi"
	"github.com/wifi-sensing/csi-collector/internal/wifi"
)

// Producer converts raw capture descriptors into owned records and hands
// them to the queue without blocking. Its Handle method runs in the
// radio's delivery context and must return quickly, so it does no
// logging and no I/O; a full queue silently drops the new record.
type Producer struct {
	queue *csi.Queue
	epoch time.Time

	captured func() // optional counter hook
}

// WithCapturedHook installs fn to be called once per record handed to
// the queue (successfully or not). fn must be non-blocking.
func WithCapturedHook(fn func()) func(*Producer) {
	return func(p *Producer) {
		p.captured = fn
	}
}

// NewProducer creates a producer feeding queue. Record timestamps are
// monotonic microseconds measured from the moment the producer is
// created, mirroring the radio's own since-boot clock.
func NewProducer(queue *csi.Queue, options ...func(*Producer)) *Producer {
	p := Producer{
		queue: queue,
		epoch: time.Now(),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Handle is the CSI delivery callback registered with the radio. The
// descriptor's payload is only valid for the duration of the call, so it
// is copied into the record before the enqueue attempt.
func (p *Producer) Handle(info wifi.Info) {
	data := make([]int8, len(info.Data))
	copy(data, info.Data)

	record := csi.Record{
		RSSI:      info.RSSI,
		Rate:      info.Rate,
		Channel:   info.Channel,
		Bandwidth: info.Bandwidth,
		Timestamp: time.Since(p.epoch).Microseconds(),
		Data:      data,
	}

	p.queue.TryPush(record)

	if p.captured != nil {
		p.captured()
	}
}
