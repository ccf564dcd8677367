// Package archive copies committed applet history snapshots into blob
// storage as one JSON document per version.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"appletcore/internal/blob"
	"appletcore/internal/core"
	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

const (
	contentType = "application/json"
	keyPrefix   = "applets/"
)

// Archiver implements core.Archiver on a blob store.
type Archiver struct {
	store blob.Store
}

var _ core.Archiver = (*Archiver)(nil)

// New wraps store.
func New(store blob.Store) *Archiver {
	return &Archiver{store: store}
}

// Key is the blob key of a snapshot.
func Key(appletID, ver string) string {
	return path.Join(keyPrefix, appletID, ver+".json")
}

// Archive stores snap. Snapshots never change once written, so a key that
// is already taken counts as archived.
func (a *Archiver) Archive(ctx context.Context, snap domain.AppletHistoryFull) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.IDVersion, err)
	}
	_, err = a.store.Put(ctx, Key(snap.ID, snap.Version), bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"applet-id": snap.ID, "version": snap.Version},
	})
	if errors.Is(err, blob.ErrExists) {
		return nil
	}
	return err
}

// Load reads one archived snapshot. Absent snapshots surface as
// domain.NotFoundError.
func (a *Archiver) Load(ctx context.Context, appletID, ver string) (domain.AppletHistoryFull, error) {
	key := Key(appletID, ver)
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return domain.AppletHistoryFull{}, &domain.NotFoundError{Entity: domain.EntityAppletHistory, ID: domain.IDVersionOf(appletID, ver)}
		}
		return domain.AppletHistoryFull{}, err
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return domain.AppletHistoryFull{}, fmt.Errorf("read %s: %w", key, err)
	}
	var snap domain.AppletHistoryFull
	if err := json.Unmarshal(body, &snap); err != nil {
		return domain.AppletHistoryFull{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snap, nil
}

// Versions lists the archived versions of appletID in ascending order.
func (a *Archiver) Versions(ctx context.Context, appletID string) ([]string, error) {
	infos, err := a.store.List(ctx, path.Join(keyPrefix, appletID)+"/")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		ver := strings.TrimSuffix(path.Base(info.Key), ".json")
		if _, err := version.Parse(ver); err != nil {
			continue
		}
		out = append(out, ver)
	}
	sort.Slice(out, func(i, j int) bool { return version.Less(out[i], out[j]) })
	return out, nil
}
