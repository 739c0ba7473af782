// Package ws carries plotter frames over nhooyr.io/websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"serialplotter/internal/plotter"
)

// Conn is an established WebSocket. It implements both
// plotter.FrameReader and plotter.FrameWriter, so the same Conn is handed to
// plotter.NewServer and plotter.NewClient.
type Conn struct {
	c      *websocket.Conn
	remote string
	once   sync.Once
}

func newConn(c *websocket.Conn, remote string, readLimit int64) *Conn {
	if readLimit > 0 {
		c.SetReadLimit(readLimit)
	}
	return &Conn{c: c, remote: remote}
}

// ReadFrame reads the next message. A close frame from the peer is
// reported as a plotter.FrameClose frame rather than an error. Cancelling
// ctx closes the connection.
func (c *Conn) ReadFrame(ctx context.Context) (plotter.Frame, error) {
	typ, data, err := c.c.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return plotter.Frame{Kind: plotter.FrameClose, CloseCode: int(ce.Code), CloseReason: ce.Reason}, nil
		}
		return plotter.Frame{}, err
	}
	switch typ {
	case websocket.MessageText:
		return plotter.Frame{Kind: plotter.FrameText, Payload: data}, nil
	case websocket.MessageBinary:
		return plotter.Frame{Kind: plotter.FrameBinary, Payload: data}, nil
	default:
		return plotter.Frame{Kind: plotter.FrameControl, Payload: data}, nil
	}
}

// WriteText sends payload as one text frame. Writing after the peer closed
// the connection fails with an error wrapping net.ErrClosed.
func (c *Conn) WriteText(ctx context.Context, payload []byte) error {
	err := c.c.Write(ctx, websocket.MessageText, payload)
	if err != nil && websocket.CloseStatus(err) != -1 {
		return fmt.Errorf("%w: %w", net.ErrClosed, err)
	}
	return err
}

// Close performs the closing handshake with a normal closure status.
func (c *Conn) Close(reason string) error {
	var err error
	c.once.Do(func() {
		err = c.c.Close(websocket.StatusNormalClosure, reason)
	})
	return err
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string { return c.remote }

// AcceptOptions configures the server side of the handshake.
type AcceptOptions struct {
	// OriginPatterns are host patterns allowed as Origin in addition to the
	// request host, e.g. "localhost:*".
	OriginPatterns []string
	ReadLimit      int64
}

// Accept upgrades an HTTP request to a WebSocket.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (*Conn, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  opts.OriginPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		return nil, err
	}
	return newConn(c, r.RemoteAddr, opts.ReadLimit), nil
}

// DialOptions configures the client side of the handshake.
type DialOptions struct {
	Origin    string
	Headers   map[string]string
	ReadLimit int64
}

// Dial connects to a plotter WebSocket endpoint such as ws://localhost:3000.
func Dial(ctx context.Context, url string, opts DialOptions) (*Conn, error) {
	dopts := &websocket.DialOptions{}
	if opts.Origin != "" || len(opts.Headers) > 0 {
		dopts.HTTPHeader = http.Header{}
	}
	if opts.Origin != "" {
		dopts.HTTPHeader.Set("Origin", opts.Origin)
	}
	for k, v := range opts.Headers {
		dopts.HTTPHeader.Set(k, v)
	}
	c, _, err := websocket.Dial(ctx, url, dopts)
	if err != nil {
		return nil, err
	}
	return newConn(c, hostFromURL(url), opts.ReadLimit), nil
}
