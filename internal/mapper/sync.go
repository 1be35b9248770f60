package mapper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
	"pingwatch/internal/state"
)

// SyncStats counts the object operations a Sync performed
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Total is the number of write operations
func (s SyncStats) Total() int {
	return s.Created + s.Updated + s.Deleted
}

// Sync reconciles the object store with the layout: missing objects are
// created, changed ones updated and orphans under the namespace deleted.
// Unchanged objects are not touched, so a second Sync of the same layout
// performs no writes. Browse objects are never deleted.
func Sync(ctx context.Context, store state.ObjectStore, l *Layout, log logrus.FieldLogger) (SyncStats, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("namespace", l.Namespace)
	for _, w := range l.Warnings {
		log.Warn(w)
	}

	var stats SyncStats
	existing, err := store.ListObjects(ctx, l.Namespace+".")
	if err != nil {
		return stats, fmt.Errorf("list objects: %w", err)
	}
	current := make(map[string]domain.Object, len(existing))
	for _, o := range existing {
		current[o.ID] = o
	}

	for _, want := range l.Objects {
		have, ok := current[want.ID]
		switch {
		case !ok:
			if err := store.SetObject(ctx, want); err != nil {
				return stats, fmt.Errorf("create %s: %w", want.ID, err)
			}
			stats.Created++
		case have.Equal(want):
			// unchanged
		case have.Extend(want).Equal(want):
			if err := store.ExtendObject(ctx, want.ID, want); err != nil {
				return stats, fmt.Errorf("extend %s: %w", want.ID, err)
			}
			stats.Updated++
		default:
			if err := store.SetObject(ctx, want); err != nil {
				return stats, fmt.Errorf("update %s: %w", want.ID, err)
			}
			stats.Updated++
		}
	}

	planned := l.IDs()
	browse := domain.NewBrowseIDs(l.Namespace).Channel
	var orphans []string
	for id := range current {
		if _, ok := planned[id]; ok {
			continue
		}
		if id == browse || strings.HasPrefix(id, browse+".") {
			continue
		}
		orphans = append(orphans, id)
	}
	// states before their channel
	sort.Sort(sort.Reverse(sort.StringSlice(orphans)))
	for _, id := range orphans {
		if err := store.DeleteObject(ctx, id); err != nil {
			return stats, fmt.Errorf("delete %s: %w", id, err)
		}
		stats.Deleted++
	}

	if stats.Total() > 0 {
		log.WithFields(logrus.Fields{
			"created": stats.Created,
			"updated": stats.Updated,
			"deleted": stats.Deleted,
		}).Info("objects reconciled")
	}
	return stats, nil
}
