// Package logger builds the process-wide slog logger: tint on a console,
// JSON otherwise.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Options selects the level and format of the logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

var atomicLevel = new(slog.LevelVar)

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w
func New(opts Options, w io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))
	return slog.New(newHandler(opts.Format, w, level))
}

// Init builds the stdout logger and installs it as the slog default
func Init(opts Options) *slog.Logger {
	atomicLevel.Set(ParseLevel(opts.Level))
	l := slog.New(newHandler(opts.Format, os.Stdout, atomicLevel))
	slog.SetDefault(l)
	return l
}

// SetLevel changes the level of the logger built by Init
func SetLevel(level slog.Level) {
	atomicLevel.Set(level)
}

// WithComponent tags every record of l with the component name
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	return l.With("component", component)
}

func newHandler(format string, w io.Writer, level slog.Leveler) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
