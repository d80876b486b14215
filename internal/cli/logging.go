package cli

import (
	"io"
	"log/slog"

	"github.com/sufield/provenance/internal/config"
)

// newLogger builds the slog logger for a command. Logs go to w (stderr) so that stdout
// stays clean for $(provenance discover) substitution.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
