package plotter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"serialplotter/internal/metrics"
	"serialplotter/internal/protocol"
)

// Client sends MiddlewareCommand settings and data lines to the plotter UI.
// Every call produces exactly one text frame; nothing is buffered or
// retried.
type Client struct {
	w   FrameWriter
	sem *semaphore.Weighted
	log zerolog.Logger
}

// NewClient takes ownership of the write half w.
func NewClient(w FrameWriter, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{
		w:   w,
		sem: semaphore.NewWeighted(1),
		log: o.log,
	}
}

// SetMonitorSettings pushes settings to the UI as ON_SETTINGS_DID_CHANGE.
func (c *Client) SetMonitorSettings(ctx context.Context, settings protocol.MonitorSettings) error {
	payload, err := protocol.EncodeMiddleware(settings)
	if err != nil {
		return fmt.Errorf("encode monitor settings: %w", err)
	}
	c.log.Trace().RawJSON("command", payload).Msg("settings command to be sent")
	return c.write(ctx, "settings", payload)
}

// Send pushes data lines for the UI to plot, e.g. "L1:12,L2:45\n". Lines
// should end with the line ending the UI expects.
func (c *Client) Send(ctx context.Context, lines []string) error {
	payload, err := protocol.EncodeData(lines)
	if err != nil {
		return fmt.Errorf("encode data lines: %w", err)
	}
	return c.write(ctx, "data", payload)
}

func (c *Client) write(ctx context.Context, kind string, payload []byte) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if err := c.w.WriteText(ctx, payload); err != nil {
		metrics.IncTransportErrors()
		return &TransportError{Op: "send " + kind, Err: err}
	}
	metrics.IncFramesSent(kind)
	return nil
}
