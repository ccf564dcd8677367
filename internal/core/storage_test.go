package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/internal/config"
	"appletcore/internal/infra/persistence/memory"
	"appletcore/internal/infra/persistence/sqlite"
	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

func TestOpenPersistentStore(t *testing.T) {
	store, err := OpenPersistentStore(config.Storage{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	path := filepath.Join(t.TempDir(), "applets.db")
	store, err = OpenPersistentStore(config.Storage{SQLitePath: path}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, store)
	require.NoError(t, store.Close())

	_, err = OpenPersistentStore(config.Storage{Driver: "cassandra"}, nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.Core{TxTimeout: config.Duration{Duration: 5 * time.Second}, DefaultBump: "major"})
	require.NoError(t, err)
	svc := NewInMemoryService(nil, opts...)
	assert.Equal(t, 5*time.Second, svc.txTimeout)
	assert.Equal(t, version.BumpMajor, svc.defaultBump)

	_, err = OptionsFromConfig(config.Core{DefaultBump: "huge"})
	assert.Error(t, err)
}

func TestServiceOnSQLite(t *testing.T) {
	store, err := sqlite.NewStore(sqlite.MemoryPath, NewDefaultRulesEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store, WithLogger(discardLogger{}), WithClock(newTestClock()))
	ctx := context.Background()

	full, _, err := svc.CreateApplet(ctx, ownerID, withFlow(minimalRequest()))
	require.NoError(t, err)
	req := requestOf(full)
	req.Activities[0].Name = "act1b"
	next, _, err := svc.UpdateApplet(ctx, full.ID, ownerID, req, version.BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", next.Version)

	versions, err := svc.GetAppletVersions(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)

	cs, err := svc.Diff(ctx, full.ID, "1.0.0", "1.1.0")
	require.NoError(t, err)
	assert.Contains(t, cs.Lines(), "  Activity Name was changed to act1b")

	snap, err := svc.GetAppletAtVersion(ctx, full.ID, "1.1.0")
	require.NoError(t, err)
	current, err := svc.GetApplet(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, "", parityDiff(current, snap))

	_, err = svc.DeleteApplet(ctx, full.ID, ownerID)
	require.NoError(t, err)
	_, err = svc.GetApplet(ctx, full.ID)
	assert.True(t, domain.IsNotFound(err))
}
