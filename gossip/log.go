package gossip

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by the gossip subsystem.
func UseLogger(logger slog.Logger) {
	log = logger
}
