package sync

import (
	"log/slog"
	"time"
)

// Diagnostics records the lifecycle of sync operations through structured
// logging: one debug line when an operation starts and one info/warn line
// with its duration when it ends.
type Diagnostics struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewDiagnostics wraps logger for sync operation tracing. A nil logger
// falls back to the default.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}

	return &Diagnostics{logger: logger, now: time.Now}
}

// Logger exposes the underlying logger for ad-hoc messages.
func (d *Diagnostics) Logger() *slog.Logger {
	return d.logger
}

// Start logs the beginning of op and returns the function that closes it
// out. Call the returned func with nil on success or the failure error.
func (d *Diagnostics) Start(op string, attrs ...any) func(err error) {
	start := d.now()
	d.logger.Debug("sync operation started", append([]any{"op", op}, attrs...)...)

	return func(err error) {
		elapsed := d.now().Sub(start)

		fields := append([]any{"op", op, "duration_ms", elapsed.Milliseconds()}, attrs...)
		if err != nil {
			d.logger.Warn("sync operation failed", append(fields, "error", err)...)
			return
		}

		d.logger.Info("sync operation completed", fields...)
	}
}
