package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"serialplotter/internal/plotter"
	"serialplotter/internal/protocol"
	"serialplotter/internal/transport/ws"
)

type clientFlags struct {
	url     string
	origin  string
	timeout time.Duration
	verbose bool
}

func (f *clientFlags) register(cmd *cobra.Command, defaultURL string) {
	cmd.Flags().StringVar(&f.url, "url", defaultURL, "WebSocket URL to connect to")
	cmd.Flags().StringVar(&f.origin, "origin", "", "Origin header sent with the handshake")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "Dial and write timeout")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log connection details to stderr")
}

func (f *clientFlags) dial(ctx context.Context) (*ws.Conn, error) {
	conn, err := ws.Dial(ctx, f.url, ws.DialOptions{Origin: f.origin})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", f.url, err)
	}
	return conn, nil
}

func newSettingsCmd() *cobra.Command {
	var (
		flags      clientFlags
		darkTheme  bool
		lineEnding string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Push a monitor settings change to a plotter UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ui := &protocol.MonitorModelState{DarkTheme: protocol.Ptr(darkTheme)}
			if lineEnding != "" {
				eol, err := protocol.EndOfLineByName(lineEnding)
				if err != nil {
					return err
				}
				ui.LineEnding = &eol
			}
			settings := protocol.MonitorSettings{MonitorUISettings: ui}
			return pushSettings(cmd.Context(), cmd.OutOrStdout(), &flags, settings)
		},
	}
	flags.register(cmd, "ws://localhost:3000")
	cmd.Flags().BoolVar(&darkTheme, "dark-theme", true, "Dark theme on (true) or off (false)")
	cmd.Flags().StringVar(&lineEnding, "line-ending", "", "Line ending to select: none, nl, cr or crlf")
	return cmd
}

func pushSettings(ctx context.Context, out io.Writer, flags *clientFlags, settings protocol.MonitorSettings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	payload, err := protocol.EncodeMiddleware(settings)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Settings command JSON to be sent: %s\n", payload)

	conn, err := flags.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close("")

	client := plotter.NewClient(conn, plotter.WithLogger(cliLogger(flags.verbose)))
	if err := client.SetMonitorSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}
	return nil
}

func newSendCmd() *cobra.Command {
	var (
		flags   clientFlags
		message string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to the middleware as the plotter UI would",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sendMessage(cmd.Context(), cmd.OutOrStdout(), &flags, message)
		},
	}
	flags.register(cmd, "ws://127.0.0.1:3030/")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message text for the board")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func sendMessage(ctx context.Context, out io.Writer, flags *clientFlags, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	payload, err := protocol.EncodeInbound(protocol.SendMessageCommand{Message: message})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Message command JSON to be sent: %s\n", payload)

	conn, err := flags.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close("")

	if err := conn.WriteText(ctx, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
