// Package plotter adapts the two halves of a WebSocket connection to the
// serial plotter UI: Server reads the commands the UI sends and Client
// pushes settings and data lines to it.
//
// A *Server or *Client may be shared by any number of goroutines. Each
// gates its half of the connection with a one-slot semaphore, so at most
// one read and one write are in flight at a time; waiting callers are
// served in arrival order and leave the queue when their context ends.
// The two halves never block each other.
package plotter

import (
	"context"
	"io"
	"iter"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"serialplotter/internal/metrics"
	"serialplotter/internal/protocol"
)

// Option configures a Server or Client.
type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger sets the logger used for frame tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Server receives commands from the plotter UI: SEND_MESSAGE (text for the
// board) and CHANGE_SETTINGS (the user changed a setting in the UI).
type Server struct {
	r     FrameReader
	sem   *semaphore.Weighted
	ended atomic.Bool
	log   zerolog.Logger
}

// NewServer takes ownership of the read half r.
func NewServer(r FrameReader, opts ...Option) *Server {
	o := buildOptions(opts)
	return &Server{
		r:   r,
		sem: semaphore.NewWeighted(1),
		log: o.log,
	}
}

// Next blocks until the next command arrives. It returns io.EOF once the UI
// has closed the WebSocket, and on every call after that. Decode failures,
// binary frames and transport failures are returned for the current frame
// only; the following call reads the next frame.
func (s *Server) Next(ctx context.Context) (protocol.InboundCommand, error) {
	if s.ended.Load() {
		return nil, io.EOF
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	for {
		// another caller may have seen the close frame while we queued
		if s.ended.Load() {
			return nil, io.EOF
		}
		frame, err := s.r.ReadFrame(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.IncTransportErrors()
			return nil, &TransportError{Op: "read frame", Err: err}
		}
		metrics.IncFramesReceived(frame.Kind.String())

		switch frame.Kind {
		case FrameClose:
			s.ended.Store(true)
			s.log.Debug().Int("code", frame.CloseCode).Str("reason", frame.CloseReason).Msg("websocket closed")
			return nil, io.EOF
		case FrameBinary:
			return nil, ErrNonTextMessage
		case FrameText:
			s.log.Trace().Bytes("payload", frame.Payload).Msg("text ws message received")
			cmd, err := protocol.DecodeInbound(frame.Payload)
			if err != nil {
				metrics.IncDecodeErrors()
				return nil, err
			}
			metrics.IncCommandsDecoded(cmd.Name().String())
			return cmd, nil
		default:
			continue
		}
	}
}

// Done reports whether a close frame has been observed.
func (s *Server) Done() bool { return s.ended.Load() }

// Commands returns the commands as a lazy sequence. The sequence ends when
// the UI closes the WebSocket or ctx is done; errors for single frames are
// yielded alongside a nil command.
func (s *Server) Commands(ctx context.Context) iter.Seq2[protocol.InboundCommand, error] {
	return func(yield func(protocol.InboundCommand, error) bool) {
		for {
			cmd, err := s.Next(ctx)
			// a wrapped io.EOF is a transport failure, not the close frame
			if err == io.EOF {
				return
			}
			if err != nil && ctx.Err() != nil {
				return
			}
			if !yield(cmd, err) {
				return
			}
		}
	}
}
