package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MiddlewareCommand is the only message the middleware sends inside an
// Envelope: a settings change for the UI.
type MiddlewareCommand struct {
	Settings MonitorSettings
}

func (c MiddlewareCommand) Envelope() Envelope[MonitorSettings] {
	return Envelope[MonitorSettings]{Command: OnSettingsDidChange, Data: c.Settings}
}

func (c MiddlewareCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Envelope())
}

func (c *MiddlewareCommand) UnmarshalJSON(b []byte) error {
	cmd, err := DecodeMiddleware(b)
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// InboundCommand is a command sent by the plotter UI: either
// SendMessageCommand or ChangeSettingsCommand.
type InboundCommand interface {
	Name() CommandName
	inbound()
}

// SendMessageCommand asks the middleware to write Message to the board.
type SendMessageCommand struct {
	Message string
}

// ChangeSettingsCommand carries settings the user changed in the UI.
type ChangeSettingsCommand struct {
	Settings MonitorSettings
}

func (SendMessageCommand) Name() CommandName    { return SendMessage }
func (ChangeSettingsCommand) Name() CommandName { return ChangeSettings }
func (SendMessageCommand) inbound()             {}
func (ChangeSettingsCommand) inbound()          {}

// EncodeMiddleware serializes settings as an ON_SETTINGS_DID_CHANGE envelope.
func EncodeMiddleware(settings MonitorSettings) ([]byte, error) {
	return json.Marshal(MiddlewareCommand{Settings: settings})
}

// DecodeEnvelope parses b as an Envelope whose data is a T.
func DecodeEnvelope[T any](b []byte) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope[T]{}, &DecodeError{Err: err}
	}
	return env, nil
}

// DecodeMiddleware parses an ON_SETTINGS_DID_CHANGE envelope. Any other
// command yields a *WrongCommandError.
func DecodeMiddleware(b []byte) (MiddlewareCommand, error) {
	env, err := DecodeEnvelope[MonitorSettings](b)
	if err != nil {
		return MiddlewareCommand{}, err
	}
	if env.Command != OnSettingsDidChange {
		return MiddlewareCommand{}, &WrongCommandError{Want: OnSettingsDidChange, Got: env.Command}
	}
	return MiddlewareCommand{Settings: env.Data}, nil
}

type rawEnvelope struct {
	Command *string         `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// DecodeInbound parses a command sent by the UI. The tag is read first and
// the data is then decoded according to it.
func DecodeInbound(b []byte) (InboundCommand, error) {
	var env rawEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if env.Command == nil {
		return nil, &DecodeError{Err: errors.New("missing field command")}
	}
	if len(env.Data) == 0 {
		return nil, &DecodeError{Err: errors.New("missing field data")}
	}

	switch CommandName(*env.Command) {
	case SendMessage:
		var msg string
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		return SendMessageCommand{Message: msg}, nil
	case ChangeSettings:
		var settings MonitorSettings
		if err := unmarshalData(env.Data, &settings); err != nil {
			return nil, err
		}
		return ChangeSettingsCommand{Settings: settings}, nil
	default:
		return nil, &UnknownCommandError{Name: *env.Command}
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &DecodeError{Err: fmt.Errorf("data: expected %T, got null", v)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Err: fmt.Errorf("data: %w", err)}
	}
	return nil
}

// EncodeInbound serializes a UI command into its envelope.
func EncodeInbound(cmd InboundCommand) ([]byte, error) {
	switch c := cmd.(type) {
	case SendMessageCommand:
		return json.Marshal(Envelope[string]{Command: SendMessage, Data: c.Message})
	case ChangeSettingsCommand:
		return json.Marshal(Envelope[MonitorSettings]{Command: ChangeSettings, Data: c.Settings})
	default:
		return nil, fmt.Errorf("unsupported inbound command %T", cmd)
	}
}

// EncodeData serializes plotted lines as a bare JSON array.
func EncodeData(lines []string) ([]byte, error) {
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(lines)
}

// DecodeData parses a data-lines message.
func DecodeData(b []byte) ([]string, error) {
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return lines, nil
}
