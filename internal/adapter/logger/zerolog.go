package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Zerolog implements domain.Logger on top of a zerolog.Logger.
type Zerolog struct {
	log zerolog.Logger
}

// New creates a logger from cfg. Console format writes human-readable lines
// to stderr; json writes one object per line.
func New(cfg Config) *Zerolog {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if cfg.Format != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	zl := zerolog.New(w).Level(cfg.Level).With().Timestamp().Str("app", "stagehand").Logger()
	return &Zerolog{log: zl}
}

// NewNop returns a logger that discards everything.
func NewNop() *Zerolog {
	return &Zerolog{log: zerolog.Nop()}
}

// Debug logs a debug message.
func (l *Zerolog) Debug(msg string, args ...any) { emit(l.log.Debug(), msg, args) }

// Info logs an informational message.
func (l *Zerolog) Info(msg string, args ...any) { emit(l.log.Info(), msg, args) }

// Warn logs a warning.
func (l *Zerolog) Warn(msg string, args ...any) { emit(l.log.Warn(), msg, args) }

// Error logs an error message.
func (l *Zerolog) Error(msg string, args ...any) { emit(l.log.Error(), msg, args) }

// emit attaches key/value pairs to e. A trailing key without a value is
// logged under "!BADKEY", as log/slog does.
func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = field(e, "!BADKEY", args[i])
			break
		}
		e = field(e, fmt.Sprint(args[i]), args[i+1])
	}
	e.Msg(msg)
}

func field(e *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case error:
		return e.AnErr(key, v)
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	case []string:
		return e.Strs(key, v)
	case fmt.Stringer:
		return e.Stringer(key, v)
	default:
		return e.Interface(key, v)
	}
}
