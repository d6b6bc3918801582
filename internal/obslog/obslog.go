// Package obslog wires zerolog into the simulator. Every component logs
// through here instead of the standard library's log package so a
// station's log lines carry structured station_id/action fields.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-formatted zerolog.Logger at the given level
// ("debug", "info", "warn", "error"). An unrecognized level falls back
// to info.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// ForStation returns a child logger tagged with the station's id, the
// way every subcomponent (Engine, Station, ATG) should log.
func ForStation(base zerolog.Logger, stationID string) zerolog.Logger {
	return base.With().Str("station_id", stationID).Logger()
}
