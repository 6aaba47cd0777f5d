package arbitrum

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by the Arbitrum chain client.
func UseLogger(logger slog.Logger) {
	log = logger
}
