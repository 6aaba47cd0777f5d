package network

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by the network subsystem.
func UseLogger(logger slog.Logger) {
	log = logger
}
