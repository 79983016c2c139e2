package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// For returns the global logger tagged with component. When debug is set
// the returned logger emits debug lines regardless of the global level.
func For(component string, debug bool) zerolog.Logger {
	l := log.With().Str("component", component).Logger()
	if debug {
		l = l.Level(zerolog.DebugLevel)
	}
	return l
}
