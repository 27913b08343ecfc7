package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration structure. All of it is
// optional: an absent config file yields a proxy that relays with defaults.
type Config struct {
	FlowTimeout    int `json:"flow_timeout" yaml:"flow_timeout"`         // seconds, idle time before a flow is reaped
	RecvBufferSize int `json:"recv_buffer_size" yaml:"recv_buffer_size"` // UDP socket receive buffer size
	SendBufferSize int `json:"send_buffer_size" yaml:"send_buffer_size"` // UDP socket send buffer size

	Logging LoggingConfig `json:"logging" yaml:"logging"`
	API     APIConfig     `json:"api" yaml:"api"`
	Geo     GeoConfig     `json:"geo" yaml:"geo"`
	Guard   GuardConfig   `json:"guard" yaml:"guard"`
}

// LoggingConfig holds all logging-related configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`             // debug, info, warn, error, dpanic, panic, fatal
	Format     string `json:"format" yaml:"format"`           // json or console
	OutputPath string `json:"output_path" yaml:"output_path"` // file path, "stdout" or "stderr"
	Caller     bool   `json:"caller" yaml:"caller"`           // include caller information
}

// GeoConfig restricts non-private clients to a set of countries. Inactive
// unless both the database path and the allow list are set.
type GeoConfig struct {
	MMDBPath         string   `json:"mmdb_path" yaml:"mmdb_path"`
	AllowedCountries []string `json:"allowed_countries" yaml:"allowed_countries"`
	Strict           bool     `json:"strict" yaml:"strict"` // treat lookup failures as not allowed
}

// GuardRule is a single ingress guard rule. The first rule that evaluates
// true drops the datagram.
type GuardRule struct {
	Rule string `json:"rule" yaml:"rule"`
}

// GuardConfig configures the expression-based ingress guard.
type GuardConfig struct {
	DropRules      []GuardRule `json:"drop_rules" yaml:"drop_rules"`
	SampleInterval string      `json:"sample_interval" yaml:"sample_interval"` // e.g. "1s"
	WindowSize     int         `json:"window_size" yaml:"window_size"`         // number of samples in the sliding window
}

// envOverrides are environment knobs applied on top of the config file.
type envOverrides struct {
	ConfigPath string `env:"UDPGATE_CONFIG"`
	LogLevel   string `env:"UDPGATE_LOG_LEVEL"`
}

// Scanner states for stripJSONComments.
const (
	inCode = iota
	inString
	inEscape
	inLineComment
	inBlockComment
)

// stripJSONComments removes // and /* */ comments so config files can be
// annotated. Comment markers inside string literals are left untouched.
func stripJSONComments(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	state := inCode

	for i := 0; i < len(src); i++ {
		c := src[i]
		next := byte(0)
		if i+1 < len(src) {
			next = src[i+1]
		}

		switch state {
		case inCode:
			switch {
			case c == '"':
				state = inString
				out = append(out, c)
			case c == '/' && next == '/':
				state = inLineComment
				i++
			case c == '/' && next == '*':
				state = inBlockComment
				i++
			default:
				out = append(out, c)
			}

		case inString:
			out = append(out, c)
			switch c {
			case '\\':
				state = inEscape
			case '"':
				state = inCode
			}

		case inEscape:
			out = append(out, c)
			state = inString

		case inLineComment:
			// Keep the newline so JSON error positions stay meaningful
			if c == '\n' {
				out = append(out, c)
				state = inCode
			}

		case inBlockComment:
			if c == '*' && next == '/' {
				state = inCode
				i++
			}
		}
	}

	if state == inBlockComment {
		return nil, errors.New("unterminated block comment")
	}
	return out, nil
}

// loadConfig reads the config file at path. YAML files are selected by
// extension, anything else is parsed as JSON (comments allowed). An empty
// path returns the zero config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		cleanData, err := stripJSONComments(data)
		if err != nil {
			return cfg, fmt.Errorf("failed to process config comments: %w", err)
		}
		if err := json.Unmarshal(cleanData, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return cfg, nil
}
