package application

import "log/slog"

// ResolveLogger falls back to the process default so use cases never carry a
// nil logger.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
