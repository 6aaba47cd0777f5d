package boot

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used during config load and
// snapshot bootstrap.
func UseLogger(logger slog.Logger) {
	log = logger
}
