// Package logging provides application-wide logging configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var debugEnabled bool

// Init initializes the global logger with console output on stderr.
func Init(debug bool) {
	setup(debug, zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

// InitFile sends structured logs to the file at path instead of the terminal.
// The terminal dashboard owns the screen, so it logs here. The returned
// closer flushes and closes the file.
func InitFile(path string, debug bool) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	setup(debug, f)
	return f, nil
}

func setup(debug bool, out io.Writer) {
	debugEnabled = debug
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// DebugEnabled reports whether debug logging is enabled.
func DebugEnabled() bool {
	return debugEnabled
}
