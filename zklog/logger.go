// Package zklog defines the caller-facing logger seam used throughout this
// module: a minimal Printf-shaped interface any logger can satisfy without
// an adapter.
package zklog

import "github.com/sirupsen/logrus"

// Logger is the caller-facing interface session.Manager logs through (set
// with session.WithLogger); the watch and hashring packages log only
// through Internal. A *logrus.Logger or *logrus.Entry
// satisfies this directly (logrus ships a Printf method with this exact
// shape), as does the standard library *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Null discards everything logged to it. It is the default when a caller
// does not supply a Logger.
type Null struct{}

// Printf implements Logger by doing nothing.
func (Null) Printf(format string, v ...interface{}) {}

// Internal returns the package-level structured logger this module uses for
// its own retry/backoff/reconnect diagnostics, distinct from the plain
// caller-facing Logger seam above.
func Internal() *logrus.Logger {
	return internal
}

var internal = logrus.StandardLogger()
