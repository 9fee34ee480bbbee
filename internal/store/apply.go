package store

import (
	"context"
	"fmt"
	"time"

	"github.com/seniorcare/opscentre/internal/db"
	"github.com/seniorcare/opscentre/internal/schema"
)

// ApplyRemote replaces the local collections with those of snap when snap
// is strictly newer than the stored last_updated. Collections absent from
// snap are left as they are. The freshness check, the replacement, the
// new last_updated and lastSynced are committed in one transaction.
//
// It reports whether snap was applied.
func (s *Store) ApplyRemote(ctx context.Context, snap *schema.Snapshot, syncedAt time.Time) (bool, error) {
	if snap == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := false
	err := s.db.Update(ctx, func(tx *db.Tx) error {
		local, err := lastUpdated(tx)
		if err != nil {
			return err
		}
		if !snap.NewerThan(local) {
			return nil
		}
		if err := replaceCollections(tx, snap); err != nil {
			return err
		}
		if err := setLastUpdated(tx, snap.LastUpdated); err != nil {
			return err
		}
		settings, err := readSettings(tx)
		if err != nil {
			return err
		}
		settings.MarkSynced(syncedAt)
		if err := putJSON(tx, db.SlotSyncSettings, settings); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.logger.Info("applied remote snapshot",
			"lastUpdated", schema.Stamp(snap.LastUpdated),
			"tasks", len(snap.Tasks), "notes", len(snap.Notes), "docs", len(snap.Docs))
	}
	return applied, nil
}

// Replace swaps in the collections present in snap as a local edit: items
// are validated and last_updated is bumped, so the next push carries them.
func (s *Store) Replace(ctx context.Context, snap *schema.Snapshot) error {
	for i := range snap.Tasks {
		if err := snap.Tasks[i].Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	for i := range snap.Notes {
		if err := snap.Notes[i].Validate(); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	for i := range snap.Docs {
		if err := snap.Docs[i].Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(ctx, func(tx *db.Tx) error {
		if err := replaceCollections(tx, snap); err != nil {
			return err
		}
		return s.touch(tx, s.now())
	})
	if err != nil {
		return err
	}
	s.logger.Info("replaced local collections",
		"tasks", len(snap.Tasks), "notes", len(snap.Notes), "docs", len(snap.Docs))
	return nil
}

func replaceCollections(tx *db.Tx, snap *schema.Snapshot) error {
	if snap.Tasks != nil {
		if err := putJSON(tx, db.SlotTasks, snap.Tasks); err != nil {
			return err
		}
	}
	if snap.Notes != nil {
		if err := putJSON(tx, db.SlotNotes, snap.Notes); err != nil {
			return err
		}
	}
	if snap.Docs != nil {
		if err := putJSON(tx, db.SlotDocs, snap.Docs); err != nil {
			return err
		}
	}
	return nil
}
