package core

import (
	"fmt"
	"time"

	"appletcore/pkg/domain"
)

// rebindEvents carries every live scheduler link of the previous applet
// version over to the new one. Previous links are left untouched and
// soft-deleted links are not carried.
func rebindEvents(tx domain.Transaction, appletID, prevVersion, nextVersion string, now time.Time) (int, error) {
	from := domain.IDVersionOf(appletID, prevVersion)
	to := domain.IDVersionOf(appletID, nextVersion)
	links, err := tx.ListEventLinks(from)
	if err != nil {
		return 0, fmt.Errorf("list event links of %s: %w", from, err)
	}
	n := 0
	for _, l := range links {
		if l.IsDeleted {
			continue
		}
		if err := tx.AddEventLink(domain.EventLink{AppletIDVersion: to, EventIDVersion: l.EventIDVersion, CreatedAt: now}); err != nil {
			return n, fmt.Errorf("link event %s to %s: %w", l.EventIDVersion, to, err)
		}
		n++
	}
	return n, nil
}
