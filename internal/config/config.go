package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"serialplotter/internal/protocol"
)

type Config struct {
	Listen    string   `yaml:"listen"`     // host:port of the WebSocket listener
	Path      string   `yaml:"path"`       // HTTP path the UI connects to
	Origins   []string `yaml:"origins"`    // extra allowed Origin host patterns, e.g. "localhost:*"
	ReadLimit int64    `yaml:"read_limit"` // max inbound message size in bytes
	Logging   Logging  `yaml:"logging"`
	Metrics   Metrics  `yaml:"metrics"`
	Plotter   Plotter  `yaml:"plotter"`
}

type Logging struct {
	Level  string `yaml:"level"`  // trace | debug | info | warn | error | disabled
	Format string `yaml:"format"` // console | json
}

type Metrics struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	HealthPath string `yaml:"health_path"`
}

// Plotter holds the settings pushed to the UI when it connects and the
// behavior of the demo data generator.
type Plotter struct {
	DataInterval string   `yaml:"data_interval"`
	Generate     bool     `yaml:"generate"`
	DarkTheme    bool     `yaml:"dark_theme"`
	Interpolate  bool     `yaml:"interpolate"`
	LineEnding   string   `yaml:"line_ending"` // none | nl | cr | crlf
	SerialPort   string   `yaml:"serial_port"`
	Baudrates    []string `yaml:"baudrates"`
	Baudrate     string   `yaml:"baudrate"`

	interval time.Duration
	eol      protocol.EndOfLine
}

var defaultBaudrates = []string{"300", "1200", "2400", "4800", "9600", "19200", "38400", "57600", "115200"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3030"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.ReadLimit == 0 {
		c.ReadLimit = 32 << 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.HealthPath == "" {
		c.Metrics.HealthPath = "/healthz"
	}
	if c.Plotter.DataInterval == "" {
		c.Plotter.DataInterval = "1s"
	}
	if c.Plotter.LineEnding == "" {
		c.Plotter.LineEnding = protocol.NewLine.Name()
	}
	if len(c.Plotter.Baudrates) == 0 {
		c.Plotter.Baudrates = slices.Clone(defaultBaudrates)
	}
	if c.Plotter.Baudrate == "" {
		c.Plotter.Baudrate = "9600"
	}
}

func (c *Config) validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for name, p := range map[string]string{
		"path":                c.Path,
		"metrics.path":        c.Metrics.Path,
		"metrics.health_path": c.Metrics.HealthPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, p)
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Path == c.Path || c.Metrics.HealthPath == c.Path) {
		return fmt.Errorf("metrics paths must differ from the websocket path %q", c.Path)
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("read_limit must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}

	interval, err := time.ParseDuration(c.Plotter.DataInterval)
	if err != nil {
		return fmt.Errorf("plotter.data_interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("plotter.data_interval must be positive")
	}
	c.Plotter.interval = interval

	eol, err := protocol.EndOfLineByName(strings.ToLower(c.Plotter.LineEnding))
	if err != nil {
		return fmt.Errorf("plotter.line_ending must be one of: none, nl, cr, crlf")
	}
	c.Plotter.eol = eol

	if !slices.Contains(c.Plotter.Baudrates, c.Plotter.Baudrate) {
		return fmt.Errorf("plotter.baudrate %q is not in plotter.baudrates", c.Plotter.Baudrate)
	}
	return nil
}

// Interval is the parsed DataInterval.
func (p Plotter) Interval() time.Duration { return p.interval }

// EndOfLine is the parsed LineEnding.
func (p Plotter) EndOfLine() protocol.EndOfLine { return p.eol }

// MonitorSettings builds the settings pushed to the UI right after it
// connects.
func (p Plotter) MonitorSettings() protocol.MonitorSettings {
	ui := &protocol.MonitorModelState{
		DarkTheme:   protocol.Ptr(p.DarkTheme),
		Interpolate: protocol.Ptr(p.Interpolate),
		LineEnding:  protocol.Ptr(p.eol),
		Connected:   protocol.Ptr(true),
		Generate:    p.Generate,
	}
	if p.SerialPort != "" {
		ui.SerialPort = protocol.Ptr(p.SerialPort)
	}
	return protocol.MonitorSettings{
		PluggableMonitorSettings: protocol.PluggableMonitorSettings{
			"baudrate": {
				ID:            protocol.Ptr("baudrate"),
				Label:         protocol.Ptr("Baudrate"),
				Type:          protocol.Ptr(protocol.LabelTypeEnum),
				Values:        slices.Clone(p.Baudrates),
				SelectedValue: p.Baudrate,
			},
		},
		MonitorUISettings: ui,
	}
}
