// Package logging provides structured logging for the CLI and the interactive explorer.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starexec/jobview/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog     zerolog.Logger
	mode     string // "cli" or "tui"
	eventBus *events.EventBus
	output   io.Writer
}

// NewLogger creates a new logger for the specified mode.
//
// CLI mode logs to stderr so that stdout stays clean for table/json/yaml output.
// TUI mode also starts on stderr; the explorer redirects it with SetOutput before
// taking over the terminal.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	output := consoleWriter(os.Stderr)

	return &Logger{
		zlog:     zerolog.New(output).With().Timestamp().Logger(),
		mode:     mode,
		eventBus: eventBus,
		output:   output,
	}
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// Nop returns a logger that discards everything. Used by tests and by callers
// that do not care about diagnostics.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "cli", output: io.Discard}
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		zlog:     l.zlog.With().Str("component", component).Logger(),
		mode:     l.mode,
		eventBus: l.eventBus,
		output:   l.output,
	}
}

// SetOutput changes the output writer for the logger.
// The explorer uses this to move logs into a file while it owns the screen.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(consoleWriter(w)).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Mode returns "cli" or "tui".
func (l *Logger) Mode() string {
	return l.mode
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message and mirrors it onto the event bus, if any.
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Error().Msg(msg)
	if l.eventBus != nil {
		l.eventBus.PublishLog(events.ErrorLevel, msg, l.mode, nil)
	}
}

// Warnf logs a warning and mirrors it onto the event bus, if any.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Warn().Msg(msg)
	if l.eventBus != nil {
		l.eventBus.PublishLog(events.WarnLevel, msg, l.mode, nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
