package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/wifi-sensing/csi-collector/internal/csi"
)

// WithLogger sets the logger for the consumer.
func WithLogger(logger *slog.Logger) func(*Consumer) {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithWrittenHook installs fn to be called with the frame size after
// every successful transport write.
func WithWrittenHook(fn func(bytes int)) func(*Consumer) {
	return func(c *Consumer) {
		c.written = fn
	}
}

// Consumer drains the queue forever, serializes each record into its
// wire frame and writes the complete frame to the transport. Transport
// failures are logged and the loop moves on to the next record; frames
// reach the wire in dequeue order.
type Consumer struct {
	queue     *csi.Queue
	transport io.Writer

	buf     []byte // frame scratch, reused across records
	logger  *slog.Logger
	written func(bytes int)
}

// NewConsumer creates a consumer draining queue into transport.
func NewConsumer(queue *csi.Queue, transport io.Writer, options ...func(*Consumer)) *Consumer {
	c := Consumer{
		queue:     queue,
		transport: transport,
		buf:       make([]byte, 0, 64+4*csi.MaxDataLen),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Run blocks on the queue and writes frames until ctx is cancelled. It
// never returns on a transport error: a failed write loses that frame
// only.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		record, ok := c.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}

		c.buf = csi.AppendFrame(c.buf[:0], &record)

		n, err := c.transport.Write(c.buf)
		if err != nil {
			c.logger.Error(fmt.Sprintf("transport write failed: %s", err),
				slog.Int("frameSize", len(c.buf)),
				slog.Int("written", n))
			continue
		}

		if c.written != nil {
			c.written(n)
		}
	}
}
