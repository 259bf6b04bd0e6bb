package scrapers

import (
	"github.com/flanksource/gid-seminars/api"
	"github.com/flanksource/gid-seminars/db"
)

// DeleteStaleEvents removes the events of a source that were not seen in
// the latest fetch. An empty fetch never prunes.
func DeleteStaleEvents(ctx api.ScrapeContext, store *db.Store, sourceID string, seen []string) (int, error) {
	if len(seen) == 0 {
		return 0, nil
	}
	removed, err := store.DeleteStale(ctx, sourceID, seen)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		ctx.Infof("Removed %d stale events", removed)
	}
	return int(removed), nil
}
