// Package protocol defines the JSON messages exchanged with the Arduino
// serial plotter web application.
//
// Every message except plotted data lines travels in an Envelope:
//
//	{"command": "CHANGE_SETTINGS", "data": {...}}
//
// Data lines are sent as a bare JSON array of strings.
package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandName is the tag of an Envelope.
type CommandName string

const (
	// OnSettingsDidChange is sent by the middleware to the UI.
	OnSettingsDidChange CommandName = "ON_SETTINGS_DID_CHANGE"
	// SendMessage is sent by the UI; data is the text to write to the board.
	SendMessage CommandName = "SEND_MESSAGE"
	// ChangeSettings is sent by the UI; data is a MonitorSettings.
	ChangeSettings CommandName = "CHANGE_SETTINGS"
)

func (c CommandName) Valid() bool {
	switch c {
	case OnSettingsDidChange, SendMessage, ChangeSettings:
		return true
	}
	return false
}

func (c CommandName) String() string { return string(c) }

func (c CommandName) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown command %q", string(c))
	}
	return []byte(c), nil
}

func (c *CommandName) UnmarshalText(b []byte) error {
	name := CommandName(b)
	if !name.Valid() {
		return &UnknownCommandError{Name: string(b)}
	}
	*c = name
	return nil
}

// Envelope is the generic {command, data} wrapper.
type Envelope[T any] struct {
	Command CommandName `json:"command"`
	Data    T           `json:"data"`
}

// LabelType is the kind of a pluggable monitor setting. Only "enum" exists.
type LabelType string

const LabelTypeEnum LabelType = "enum"

func (t LabelType) MarshalText() ([]byte, error) {
	if t != LabelTypeEnum {
		return nil, fmt.Errorf("unknown setting type %q", string(t))
	}
	return []byte(t), nil
}

func (t *LabelType) UnmarshalText(b []byte) error {
	if LabelType(b) != LabelTypeEnum {
		return fmt.Errorf("unknown setting type %q", string(b))
	}
	*t = LabelTypeEnum
	return nil
}

// PluggableMonitorSetting is one configurable knob of the connected
// monitor, e.g.
//
//	{"id":"baudrate","label":"Baudrate","type":"enum","values":["9600","115200"],"selectedValue":"9600"}
type PluggableMonitorSetting struct {
	ID            *string    `json:"id,omitempty"`
	Label         *string    `json:"label,omitempty"`
	Type          *LabelType `json:"type,omitempty"`
	// Values is always written, as [] when empty. An empty list decodes
	// to nil, so []string{} and nil are indistinguishable after a round trip.
	Values        []string   `json:"values"`
	SelectedValue string     `json:"selectedValue"`
}

type pluggableMonitorSettingWire struct {
	ID            *string    `json:"id,omitempty"`
	Label         *string    `json:"label,omitempty"`
	Type          *LabelType `json:"type,omitempty"`
	Values        []string   `json:"values"`
	SelectedValue *string    `json:"selectedValue"`
}

func (s PluggableMonitorSetting) MarshalJSON() ([]byte, error) {
	w := pluggableMonitorSettingWire{
		ID:            s.ID,
		Label:         s.Label,
		Type:          s.Type,
		Values:        s.Values,
		SelectedValue: &s.SelectedValue,
	}
	if w.Values == nil {
		w.Values = []string{}
	}
	return json.Marshal(w)
}

func (s *PluggableMonitorSetting) UnmarshalJSON(b []byte) error {
	var w pluggableMonitorSettingWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.SelectedValue == nil {
		return fmt.Errorf("pluggable monitor setting: missing field selectedValue")
	}
	*s = PluggableMonitorSetting{
		ID:            w.ID,
		Label:         w.Label,
		Type:          w.Type,
		SelectedValue: *w.SelectedValue,
	}
	if len(w.Values) > 0 {
		s.Values = w.Values
	}
	return nil
}

// PluggableMonitorSettings maps a setting id (e.g. "baudrate") to the setting.
type PluggableMonitorSettings map[string]PluggableMonitorSetting

// MonitorModelState holds the UI preferences of the serial monitor and
// plotter. Unset fields are left out of the JSON.
type MonitorModelState struct {
	Autoscroll  *bool      `json:"autoscroll,omitempty"`
	Timestamp   *bool      `json:"timestamp,omitempty"`
	LineEnding  *EndOfLine `json:"lineEnding,omitempty"`
	Interpolate *bool      `json:"interpolate,omitempty"`
	DarkTheme   *bool      `json:"darkTheme,omitempty"`
	// WSPort must not be pushed on a live connection: the UI reconnects to it.
	WSPort     *uint16 `json:"wsPort,omitempty"`
	SerialPort *string `json:"serialPort,omitempty"`
	Connected  *bool   `json:"connected,omitempty"`
	Generate   bool    `json:"generate"`
}

// MonitorSettings is the payload of ON_SETTINGS_DID_CHANGE and
// CHANGE_SETTINGS. A nil field is absent on the wire; an empty non-nil
// PluggableMonitorSettings is sent as {}.
type MonitorSettings struct {
	PluggableMonitorSettings PluggableMonitorSettings `json:"pluggableMonitorSettings,omitzero"`
	MonitorUISettings        *MonitorModelState       `json:"monitorUISettings,omitempty"`
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T { return &v }
