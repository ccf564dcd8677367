package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAudit) Record(_ context.Context, e AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

type observation struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = append(c.obs, observation{op, success})
}

type captureTracer struct {
	mu    sync.Mutex
	ended map[string]error
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, captureSpan{tracer: c, op: op}
}

func (s captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	if s.tracer.ended == nil {
		s.tracer.ended = map[string]error{}
	}
	s.tracer.ended[s.op] = err
}

func TestObservabilityHooks(t *testing.T) {
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	h := newHarness(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))
	ctx := context.Background()

	full := h.create(t, minimalRequest())
	h.update(t, full, nil)
	_, err := h.svc.GetApplet(ctx, full.ID)
	require.NoError(t, err)
	_, err = h.svc.GetApplet(ctx, "missing")
	require.Error(t, err)

	require.Len(t, audit.entries, 2, "reads are not audited")
	assert.Equal(t, OpCreateApplet, audit.entries[0].Operation)
	assert.Equal(t, domain.ActionCreate, audit.entries[0].Action)
	assert.Equal(t, full.ID, audit.entries[0].EntityID)
	assert.Equal(t, "1.0.0", audit.entries[0].Version)
	assert.Equal(t, ownerID, audit.entries[0].UserID)
	assert.Equal(t, AuditStatusSuccess, audit.entries[0].Status)
	assert.Equal(t, OpUpdateApplet, audit.entries[1].Operation)
	assert.Equal(t, "1.0.1", audit.entries[1].Version)

	assert.Equal(t, []observation{
		{OpCreateApplet, true},
		{OpUpdateApplet, true},
		{OpGetApplet, true},
		{OpGetApplet, false},
	}, metrics.obs)

	assert.NoError(t, tracer.ended[OpCreateApplet])
	assert.True(t, domain.IsNotFound(tracer.ended[OpGetApplet]))
}

func TestAuditRecordsFailures(t *testing.T) {
	audit := &captureAudit{}
	h := newHarness(t, WithAuditRecorder(audit))
	req := minimalRequest()
	req.DisplayName = ""
	_, _, err := h.svc.CreateApplet(context.Background(), ownerID, req)
	require.Error(t, err)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, AuditStatusError, audit.entries[0].Status)
	assert.NotEmpty(t, audit.entries[0].Error)
}

func TestLogLevelsFollowErrorKind(t *testing.T) {
	logger := &captureLogger{}
	h := newHarness(t, WithLogger(logger))
	ctx := context.Background()

	full := h.create(t, minimalRequest())
	_, err := h.svc.GetApplet(ctx, "missing")
	require.Error(t, err)
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.svc.GetApplet(cctx, full.ID)
	require.Error(t, err)

	assert.Len(t, logger.infos, 1)
	assert.Len(t, logger.warns, 1)
	assert.Len(t, logger.errors, 1)
}

type captureArchiver struct {
	mu    sync.Mutex
	snaps []domain.AppletHistoryFull
	err   error
}

func (a *captureArchiver) Archive(_ context.Context, snap domain.AppletHistoryFull) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.snaps = append(a.snaps, snap)
	return nil
}

func TestArchiverReceivesCommittedSnapshots(t *testing.T) {
	arch := &captureArchiver{}
	h := newHarness(t, WithArchiver(arch))
	req := minimalRequest()
	req.Activities[0].Items = []domain.Item{selectItem("q1", option("o1", "a", 1), option("o2", "b", 1))}
	full := h.create(t, req)
	h.update(t, full, nil)
	_, _, err := h.svc.ReindexOptionValues(context.Background(), full.ID, ownerID)
	require.NoError(t, err)

	bad := minimalRequest()
	bad.DisplayName = ""
	_, _, err = h.svc.CreateApplet(context.Background(), ownerID, bad)
	require.Error(t, err)

	require.Len(t, arch.snaps, 3)
	assert.Equal(t, []string{"1.0.0", "1.0.1", "1.0.2"}, []string{arch.snaps[0].Version, arch.snaps[1].Version, arch.snaps[2].Version})
}

func TestArchiverFailureDoesNotFailWrite(t *testing.T) {
	logger := &captureLogger{}
	h := newHarness(t, WithArchiver(&captureArchiver{err: errors.New("bucket offline")}), WithLogger(logger))
	full := h.create(t, minimalRequest())
	assert.Equal(t, "1.0.0", full.Version)
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "archive snapshot failed")
}
