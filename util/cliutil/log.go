package cliutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogOptions struct {
	// text|json
	LogFormat string

	// info|debug|warn|error
	LogLevel string

	// path to write to; empty or "-" is stdout
	LogPath string
}

// fill in unset options from the environment, the CASTMOD_ prefixed variable winning over the bare one
func (o LogOptions) withEnv() LogOptions {
	lookup := func(names ...string) string {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				return v
			}
		}
		return ""
	}
	if o.LogLevel == "" {
		o.LogLevel = lookup("CASTMOD_LOG_LEVEL", "LOG_LEVEL")
	}
	if o.LogFormat == "" {
		o.LogFormat = lookup("CASTMOD_LOG_FMT", "LOG_FMT")
	}
	if o.LogPath == "" {
		o.LogPath = lookup("CASTMOD_LOG_FILE")
	}
	return o
}

// ParseLevel accepts debug|info|warn|error, case insensitive. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level: %#v", s)
	}
	return level, nil
}

// SetupSlog builds a logger from options, falling back to CASTMOD_LOG_LEVEL, CASTMOD_LOG_FMT and CASTMOD_LOG_FILE,
// and makes it the slog default. The zero LogOptions is fine.
func SetupSlog(options LogOptions) (*slog.Logger, error) {
	options = options.withEnv()
	level, err := ParseLevel(options.LogLevel)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if options.LogPath != "" && options.LogPath != "-" {
		f, err := os.OpenFile(options.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	logger, err := NewLogger(out, options.LogFormat, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// NewLogger builds a text (default) or json slog logger writing to out.
func NewLogger(out io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	hopts := &slog.HandlerOptions{Level: level, AddSource: true}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(out, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, hopts)), nil
	}
	return nil, fmt.Errorf("invalid log format: %#v", format)
}
