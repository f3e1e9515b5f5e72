package nostr

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is used by every component that wasn't given a logger of its own.
// It discards everything until SetLogOutput is called.
var Logger = zerolog.Nop()

// SetLogOutput points the package logger at w, only writing messages at level or above.
func SetLogOutput(w io.Writer, level zerolog.Level) {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Str("lib", "nostr").
		Logger()
}

func loggerOr(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	return &Logger
}
