package bridge

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"serialplotter/internal/config"
	"serialplotter/internal/healthz"
	"serialplotter/internal/metrics"
	"serialplotter/internal/plotter"
	"serialplotter/internal/transport/ws"
)

// Conn is both halves of a plotter connection.
type Conn interface {
	plotter.FrameReader
	plotter.FrameWriter
}

// Service accepts plotter UI connections and runs a Session for each.
type Service struct {
	config    func() *config.Config
	log       zerolog.Logger
	gen       *Generator
	onMessage MessageHandler
	health    *healthz.Registry
	serving   atomic.Bool
}

type Option func(*Service)

// WithMessageHandler routes SEND_MESSAGE text to fn instead of the log.
func WithMessageHandler(fn MessageHandler) Option {
	return func(s *Service) { s.onMessage = fn }
}

// WithGenerator replaces the random data source.
func WithGenerator(g *Generator) Option {
	return func(s *Service) { s.gen = g }
}

// New creates a Service. cfg is consulted for every new connection, so a
// reloaded config applies from the next session on.
func New(cfg func() *config.Config, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		config: cfg,
		log:    log,
		gen:    NewGenerator(0),
		health: healthz.New(),
	}
	s.health.Register("listener", func(context.Context) error {
		if !s.serving.Load() {
			return errors.New("not accepting connections")
		}
		return nil
	})
	s.health.Register("sessions", func(context.Context) error {
		if metrics.SessionsActive() == 0 {
			return healthz.Degraded(errors.New("no plotter connected"))
		}
		return nil
	})
	s.onMessage = func(_ context.Context, msg string) error {
		s.log.Info().Str("message", msg).Msg("message for the board")
		return nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession wires a Server and a Client onto conn.
func (s *Service) NewSession(conn Conn, remote string) *Session {
	id := uuid.NewString()
	log := s.log.With().Str("conn", id).Str("remote", remote).Logger()
	sess := &Session{
		ID:        id,
		server:    plotter.NewServer(conn, plotter.WithLogger(log)),
		client:    plotter.NewClient(conn, plotter.WithLogger(log)),
		plotter:   s.config().Plotter,
		gen:       s.gen,
		onMessage: s.onMessage,
		log:       log,
	}
	sess.eol.Store(int32(sess.plotter.EndOfLine()))
	return sess
}

// Handle runs a session for an accepted WebSocket. It has the ws.Handler
// signature.
func (s *Service) Handle(ctx context.Context, conn *ws.Conn) {
	metrics.IncSessions()
	defer metrics.DecSessions()

	sess := s.NewSession(conn, conn.RemoteAddr())
	sess.log.Info().Msg("plotter connected")
	if err := sess.Run(ctx); err != nil {
		sess.log.Warn().Err(err).Msg("session ended with error")
		return
	}
	sess.log.Info().Msg("plotter disconnected")
}

// ListenAndServe accepts connections on the configured address until ctx
// is done.
func (s *Service) ListenAndServe(ctx context.Context) error {
	cfg := s.config()
	l, err := ws.Listen(cfg.Listen, cfg.Path, ws.AcceptOptions{
		OriginPatterns: cfg.Origins,
		ReadLimit:      cfg.ReadLimit,
	}, s.Handle)
	if err != nil {
		return err
	}
	l.OnAcceptError(func(err error) {
		s.log.Error().Err(err).Msg("error performing HTTP upgrade handshake request")
	})
	if cfg.Metrics.Enabled {
		l.Handle(cfg.Metrics.Path, metrics.Handler())
		l.Handle(cfg.Metrics.HealthPath, s.health.Handler())
	}
	s.serving.Store(true)
	defer s.serving.Store(false)

	s.log.Info().Str("addr", l.Addr().String()).Str("path", cfg.Path).Msg("listening for the serial plotter")

	errCh := make(chan error, 1)
	go func() { errCh <- l.Serve() }()

	select {
	case <-ctx.Done():
		_ = l.Close()
		<-errCh
		return nil
	case err := <-errCh:
		_ = l.Close()
		return err
	}
}

// Health returns the checks served on the health path. Callers may
// register their own.
func (s *Service) Health() *healthz.Registry { return s.health }
