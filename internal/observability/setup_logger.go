package observability

import (
	"fmt"
	"log/slog"
	"os"
)

// SetupLogger builds the process-wide slog logger. When logFile is empty,
// logs go to stdout; otherwise they're appended to logFile, matching the
// `log_file` config knob operators use to route attempt/retry lines to a
// file a chaos test or log shipper can tail.
func SetupLogger(logFile string) (*slog.Logger, error) {
	out := os.Stdout
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("observability: opening log file %s: %w", logFile, err)
		}
		out = f
	}
	return slog.New(slog.NewJSONHandler(out, nil)), nil
}
