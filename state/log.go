package state

import "github.com/decred/slog"

// log is this subsystem's logger, usable even before UseLogger is called
// (it falls back to a disabled logger).
var log = slog.Disabled

// UseLogger sets the package-wide logger used by the state subsystem.
func UseLogger(logger slog.Logger) {
	log = logger
}
