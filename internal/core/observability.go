package core

import (
	"context"
	"time"

	"appletcore/pkg/domain"
)

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Version   string
	UserID    string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes the duration and outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// Clock supplies timestamps for rows, links and audit entries.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// operationMeta maps audited operations to the entity and action they touch.
// Read-only operations are absent and never audited.
var operationMeta = map[string]struct {
	entity domain.EntityType
	action domain.Action
}{
	OpCreateApplet: {domain.EntityApplet, domain.ActionCreate},
	OpUpdateApplet: {domain.EntityApplet, domain.ActionUpdate},
	OpDeleteApplet: {domain.EntityApplet, domain.ActionDelete},
	OpReindex:      {domain.EntityApplet, domain.ActionUpdate},
	OpLinkEvent:    {domain.EntityEventLink, domain.ActionCreate},
	OpUnlinkEvent:  {domain.EntityEventLink, domain.ActionDelete},
}

// Operation names reported to tracers, metrics and audit recorders.
const (
	OpCreateApplet   = "create_applet"
	OpUpdateApplet   = "update_applet"
	OpDeleteApplet   = "delete_applet"
	OpGetApplet      = "get_applet"
	OpListVersions   = "get_applet_versions"
	OpGetAtVersion   = "get_applet_at_version"
	OpDiff           = "diff"
	OpReindex        = "reindex_option_values"
	OpLinkEvent      = "link_event"
	OpUnlinkEvent    = "unlink_event"
	OpListEventLinks = "list_event_links"
)

// outcome is what an operation reports to the observability hooks.
type outcome struct {
	entityID string
	version  string
	userID   string
}

func (s *Service) recordAudit(ctx context.Context, op string, out outcome, err error, duration time.Duration) {
	meta, ok := operationMeta[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  out.entityID,
		Version:   out.version,
		UserID:    out.userID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
