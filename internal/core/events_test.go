package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/pkg/domain"
)

func eventIDs(links []domain.EventLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.EventIDVersion)
	}
	return out
}

func TestLinksFollowNewVersions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	full := h.create(t, minimalRequest())

	_, err := h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)
	_, err = h.svc.LinkEvent(ctx, full.ID, "e2_1")
	require.NoError(t, err)
	_, err = h.svc.UnlinkEvent(ctx, full.ID, "e2_1")
	require.NoError(t, err)

	next := h.update(t, full, func(r *domain.AppletRequest) { r.DisplayName = "A2" })

	links, err := h.svc.ListEventLinks(ctx, full.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1_1"}, eventIDs(links))
	assert.Equal(t, domain.IDVersionOf(full.ID, next.Version), links[0].AppletIDVersion)

	// the previous version keeps its own rows
	old, err := h.svc.ListEventLinks(ctx, full.ID, full.Version)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1_1"}, eventIDs(old))
	state := h.store.ExportState()
	var prev []domain.EventLink
	for _, l := range state.EventLinks {
		if l.AppletIDVersion == domain.IDVersionOf(full.ID, full.Version) {
			prev = append(prev, l)
		}
	}
	assert.Len(t, prev, 2)
}

func TestLinkEventIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	full := h.create(t, minimalRequest())
	_, err := h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)
	_, err = h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)

	links, err := h.svc.ListEventLinks(ctx, full.ID, "")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestRelinkingUnlinkedEventConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	full := h.create(t, minimalRequest())
	_, err := h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)
	_, err = h.svc.UnlinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)

	_, err = h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.Error(t, err)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.ConflictEventUnlinked, conflict.Kind)

	// a new version starts without the unlinked event, so it can be linked again
	h.update(t, full, nil)
	_, err = h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)
}

func TestEventLinksOnUnknownTargets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	full := h.create(t, minimalRequest())

	_, err := h.svc.LinkEvent(ctx, "missing", "e1_1")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
	_, err = h.svc.UnlinkEvent(ctx, full.ID, "never-linked")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
	_, err = h.svc.ListEventLinks(ctx, full.ID, "7.0.0")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}

func TestReindexCarriesLinks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := minimalRequest()
	req.Activities[0].Items = []domain.Item{selectItem("q1", option("o1", "a", 1), option("o2", "b", 1))}
	full := h.create(t, req)
	_, err := h.svc.LinkEvent(ctx, full.ID, "e1_1")
	require.NoError(t, err)

	next, _, err := h.svc.ReindexOptionValues(ctx, full.ID, ownerID)
	require.NoError(t, err)
	require.Equal(t, "1.0.1", next.Version)
	links, err := h.svc.ListEventLinks(ctx, full.ID, next.Version)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1_1"}, eventIDs(links))
}
