package api

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by the HTTP/WS API.
func UseLogger(logger slog.Logger) {
	log = logger
}
