package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
)

// Handler serves one accepted connection. The connection is closed when
// Handler returns; ctx is cancelled when the Listener closes.
type Handler func(ctx context.Context, conn *Conn)

// Listener accepts plotter WebSockets on a single HTTP path. Other paths
// (metrics, health) can be mounted with Handle before Serve.
type Listener struct {
	server  *http.Server
	ln      net.Listener
	mux     *http.ServeMux
	path    string
	opts    AcceptOptions
	handler Handler
	onError func(error)
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// Listen binds addr and routes path to h. Serve must be called to start
// accepting.
func Listen(addr, path string, opts AcceptOptions, h Handler) (*Listener, error) {
	if path == "" {
		path = "/"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		ln:      ln,
		mux:     http.NewServeMux(),
		path:    path,
		opts:    opts,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
	}
	l.mux.HandleFunc(path, l.handleWS)
	l.server = &http.Server{
		Handler:     l.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	return l, nil
}

// Handle mounts an extra HTTP handler next to the WebSocket path.
func (l *Listener) Handle(pattern string, h http.Handler) {
	l.mux.Handle(pattern, h)
}

// OnAcceptError registers a callback for failed handshakes.
func (l *Listener) OnAcceptError(fn func(error)) {
	l.onError = fn
}

// Serve accepts connections until Close is called.
func (l *Listener) Serve() error {
	err := l.server.Serve(l.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops accepting, cancels every running Handler and waits for them
// to return.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		err = l.server.Close()
		l.wg.Wait()
	})
	return err
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) handleWS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	conn, err := Accept(w, r, l.opts)
	if err != nil {
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	l.wg.Add(1)
	defer l.wg.Done()
	defer conn.Close("")

	l.handler(r.Context(), conn)
}

func hostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
