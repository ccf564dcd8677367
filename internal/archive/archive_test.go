package archive

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/internal/blob"
	"appletcore/internal/core"
	"appletcore/pkg/domain"
)

func request() domain.AppletRequest {
	return domain.AppletRequest{
		DisplayName: "Mood",
		Activities: []domain.ActivityRequest{{
			Key:  "a",
			Name: "daily",
			Items: []domain.Item{{
				Name:         "feeling",
				Question:     domain.LocalizedText{"en": "How do you feel?"},
				ResponseType: domain.ResponseText,
				Config:       &domain.TextConfig{},
			}},
		}},
	}
}

func TestArchiveWiredIntoService(t *testing.T) {
	store := blob.NewMemory()
	arch := New(store)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithArchiver(arch))
	ctx := context.Background()

	full, _, err := svc.CreateApplet(ctx, "owner", request())
	require.NoError(t, err)
	req := request()
	req.Activities[0].ID = full.Activities[0].ID
	req.Activities[0].Name = "nightly"
	_, _, err = svc.UpdateApplet(ctx, full.ID, "owner", req, "minor")
	require.NoError(t, err)

	versions, err := arch.Versions(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)

	got, err := arch.Load(ctx, full.ID, "1.1.0")
	require.NoError(t, err)
	want, err := svc.GetAppletAtVersion(ctx, full.ID, "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, want.IDVersion, got.IDVersion)
	require.Len(t, got.Activities, 1)
	assert.Equal(t, "nightly", got.Activities[0].Name)
	assert.Equal(t, domain.ResponseText, got.Activities[0].Items[0].ResponseType)

	info, err := store.Head(ctx, Key(full.ID, "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "1.0.0", info.Metadata["version"])
}

func TestArchiveTwiceIsNoop(t *testing.T) {
	arch := New(blob.NewMemory())
	snap := domain.AppletHistoryFull{}
	snap.ID = "a1"
	snap.Version = "1.0.0"
	snap.IDVersion = domain.IDVersionOf("a1", "1.0.0")
	require.NoError(t, arch.Archive(context.Background(), snap))
	require.NoError(t, arch.Archive(context.Background(), snap))
}

func TestLoadMissing(t *testing.T) {
	arch := New(blob.NewMemory())
	_, err := arch.Load(context.Background(), "a1", "1.0.0")
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}

func TestVersionsSkipsForeignKeys(t *testing.T) {
	store := blob.NewMemory()
	ctx := context.Background()
	for _, key := range []string{"applets/a1/1.0.10.json", "applets/a1/notes.json", "applets/a10/1.0.0.json"} {
		_, err := store.Put(ctx, key, bytes.NewReader([]byte("{}")), blob.PutOptions{})
		require.NoError(t, err)
	}
	versions, err := New(store).Versions(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, versions, "1.0.10 is not a valid version and a10 is another applet")

	_, err = store.Put(ctx, "applets/a1/1.2.3.json", bytes.NewReader([]byte("{}")), blob.PutOptions{})
	require.NoError(t, err)
	versions, err = New(store).Versions(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3"}, versions)
}
