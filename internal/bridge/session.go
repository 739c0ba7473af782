// Package bridge runs the middleware side of the serial plotter: for every
// UI connection it pushes the initial monitor settings, reacts to the
// commands the UI sends and optionally streams generated data lines.
package bridge

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"serialplotter/internal/config"
	"serialplotter/internal/plotter"
	"serialplotter/internal/protocol"
)

// MessageHandler receives the text of SEND_MESSAGE commands, i.e. what the
// user typed for the board.
type MessageHandler func(ctx context.Context, msg string) error

// Session is one UI connection.
type Session struct {
	ID        string
	server    *plotter.Server
	client    *plotter.Client
	plotter   config.Plotter
	gen       *Generator
	onMessage MessageHandler
	log       zerolog.Logger
	eol       atomic.Int32 // protocol.EndOfLine of generated lines
}

func (s *Session) endOfLine() protocol.EndOfLine { return protocol.EndOfLine(s.eol.Load()) }

// Run blocks until the UI closes the connection, the connection fails or
// ctx is done. A graceful close returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the data loop has nothing to do once the UI is gone
		defer cancel()
		return s.commandLoop(ctx)
	})
	g.Go(func() error { return s.dataLoop(ctx) })
	return g.Wait()
}

func (s *Session) commandLoop(ctx context.Context) error {
	for {
		cmd, err := s.server.Next(ctx)
		if err == io.EOF {
			s.log.Debug().Msg("plotter closed the websocket")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("error when receiving from socket")
			if plotter.IsTerminal(err) {
				return err
			}
			continue
		}

		s.log.Info().Str("command", cmd.Name().String()).Msg("received command")
		if err := s.handle(ctx, cmd); err != nil {
			return err
		}
	}
}

func (s *Session) handle(ctx context.Context, cmd protocol.InboundCommand) error {
	switch c := cmd.(type) {
	case protocol.SendMessageCommand:
		if err := s.onMessage(ctx, c.Message); err != nil {
			s.log.Warn().Err(err).Msg("message handler failed")
		}
	case protocol.ChangeSettingsCommand:
		ui := c.Settings.MonitorUISettings
		if ui == nil || ui.LineEnding == nil {
			return nil
		}
		// the UI only applies a new line ending once the middleware echoes it back
		eol := *ui.LineEnding
		err := s.client.SetMonitorSettings(ctx, protocol.MonitorSettings{
			MonitorUISettings: &protocol.MonitorModelState{LineEnding: &eol},
		})
		if err != nil {
			s.log.Error().Err(err).Msg("new end of line was not set in the UI")
			if plotter.IsTerminal(err) {
				return err
			}
			return nil
		}
		s.eol.Store(int32(eol))
		s.log.Info().Str("eol", eol.Name()).Msg("new end of line is set")
	}
	return nil
}

func (s *Session) dataLoop(ctx context.Context) error {
	if err := s.client.SetMonitorSettings(ctx, s.plotter.MonitorSettings()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.log.Error().Err(err).Msg("failed to set settings")
		if plotter.IsTerminal(err) {
			return err
		}
	}
	if !s.plotter.Generate {
		return nil
	}

	interval := s.plotter.Interval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lines := s.gen.Lines(s.endOfLine())
		if err := s.client.Send(ctx, lines); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("sending data message failed")
			if plotter.IsTerminal(err) {
				return err
			}
			continue
		}
		s.log.Trace().Strs("lines", lines).Msg("sent data message")
	}
}
