// Package build provides the ambient logging plumbing shared by every
// subsystem package: a rotating log writer and a helper for creating
// per-subsystem loggers before the root logger exists.
package build

import (
	"io"

	"github.com/decred/slog"
	"github.com/jrick/logrotate"
)

// LogTypeStdOut and LogTypeNone name the two non-file logging destinations;
// LoggingType is stdout under both build tags; the filelog tag changes
// LogWriter.Write so it also copies output into relayer.log.
const (
	LogTypeStdOut = "stdout"
	LogTypeNone   = "none"
)

// LogWriter multiplexes log output to stdout (or a log file, under the
// filelog build tag, see log_filelog.go) and a rotator once one has been
// initialized. Write itself is defined in log_stdout.go / log_filelog.go,
// selected by build tag.
type LogWriter struct {
	rotator io.Writer
}

// RotatingLogWriter accumulates a logrotate-backed file destination and a
// slog backend that every subsystem's logger is built from via GenSubLogger.
type RotatingLogWriter struct {
	writer  *LogWriter
	backend *slog.Backend
	loggers map[string]slog.Logger
}

// NewRotatingLogWriter constructs a writer with no file destination yet;
// InitLogRotator must be called once a log file path is known.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &LogWriter{}
	return &RotatingLogWriter{
		writer:  w,
		backend: slog.NewBackend(w),
		loggers: make(map[string]slog.Logger),
	}
}

// InitLogRotator opens (creating if needed) the rotating log file at
// logFile with logrotate's default rotation settings. maxFileSizeMB and
// maxFiles are accepted but not used.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxFileSizeMB, maxFiles int) error {
	rotator, err := logrotate.NewRotator(logFile)
	if err != nil {
		return err
	}
	r.writer.rotator = rotator
	return nil
}

// GenSubLogger creates a new slog.Logger tagged with subsystem, backed by
// this writer's backend.
func (r *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	return r.backend.Logger(subsystem)
}

// RegisterSubLogger records the logger so subsequent lookups (e.g. by a
// runtime log-level CLI command) can find it by subsystem tag.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.loggers[subsystem] = logger
}

// NewSubLogger creates a placeholder logger for subsystem. If genLogger is
// nil (the package is being initialized before the root logger exists) it
// falls back to a disabled logger; setupLoggers in cmd/relayerd later
// replaces it.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}
	return genLogger(subsystem)
}
