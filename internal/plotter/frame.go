package plotter

import "context"

// FrameKind classifies a frame read from the duplex stream.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FrameClose
	FrameControl
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameClose:
		return "close"
	case FrameControl:
		return "control"
	default:
		return "unknown"
	}
}

// Frame is one message of the duplex stream.
type Frame struct {
	Kind    FrameKind
	Payload []byte
	// CloseCode and CloseReason are set on close frames.
	CloseCode   int
	CloseReason string
}

// FrameReader is the read half of the stream. ReadFrame blocks until a
// frame arrives, ctx is done or the connection fails. It is never called
// concurrently by this package.
type FrameReader interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

// FrameWriter is the write half of the stream. Each WriteText call sends
// exactly one text frame.
type FrameWriter interface {
	WriteText(ctx context.Context, payload []byte) error
}
