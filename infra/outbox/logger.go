package outbox

import (
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

var _ pebble.Logger = pebbleLogger{}

// pebbleLogger routes pebble's printf-style messages into zap. Pebble's
// informational chatter (WAL replay and flush notices) drops to debug.
type pebbleLogger struct {
	s *zap.SugaredLogger
}

func newPebbleLogger(log *zap.Logger) pebbleLogger {
	return pebbleLogger{s: log.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.s.Fatalf(format, args...)
}
