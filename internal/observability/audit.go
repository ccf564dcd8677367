package observability

import (
	"context"
	"log/slog"

	"appletcore/internal/core"
)

// SlogAudit writes audit entries as structured log records.
type SlogAudit struct {
	logger *slog.Logger
}

var _ core.AuditRecorder = SlogAudit{}

// NewSlogAudit logs through logger, or slog.Default() when nil.
func NewSlogAudit(logger *slog.Logger) SlogAudit {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogAudit{logger: logger.With("component", "audit")}
}

// Record implements core.AuditRecorder. Failed operations are logged at warn.
func (a SlogAudit) Record(ctx context.Context, e core.AuditEntry) {
	attrs := []slog.Attr{
		slog.String("operation", e.Operation),
		slog.String("entity", string(e.Entity)),
		slog.String("action", string(e.Action)),
		slog.String("entity_id", e.EntityID),
		slog.String("status", string(e.Status)),
		slog.Duration("duration", e.Duration),
		slog.Time("at", e.Timestamp),
	}
	if e.Version != "" {
		attrs = append(attrs, slog.String("version", e.Version))
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	level := slog.LevelInfo
	if e.Status == core.AuditStatusError {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", e.Error))
	}
	a.logger.LogAttrs(ctx, level, "applet audit", attrs...)
}
