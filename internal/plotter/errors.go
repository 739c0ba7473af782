package plotter

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// ErrNonTextMessage is returned for a binary frame where a JSON text command
// was expected.
var ErrNonTextMessage = errors.New("text-based (json) client command is expected from the serial plotter")

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTerminal reports whether err means the connection is gone: it was
// reset or already closed, or its host could not be resolved. Callers
// stop polling a Server or feeding a Client once it returns true; the
// adapters themselves never stop on their own.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.As(err, &dnsErr):
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && errors.Is(te.Err, io.EOF)
}
