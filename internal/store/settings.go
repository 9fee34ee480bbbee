package store

import (
	"context"
	"time"

	"github.com/seniorcare/opscentre/internal/db"
	"github.com/seniorcare/opscentre/internal/schema"
)

// Settings returns the sync settings, or the defaults of a fresh
// installation when none were saved.
func (s *Store) Settings(ctx context.Context) (schema.SyncSettings, error) {
	var settings schema.SyncSettings
	err := s.db.View(ctx, func(tx *db.Tx) error {
		var err error
		settings, err = readSettings(tx)
		return err
	})
	return settings, err
}

// UpdateSettings applies fn to the stored sync settings. Settings are
// metadata: changing them does not bump last_updated.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*schema.SyncSettings) error) (schema.SyncSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings schema.SyncSettings
	err := s.db.Update(ctx, func(tx *db.Tx) error {
		var err error
		settings, err = readSettings(tx)
		if err != nil {
			return err
		}
		if err := fn(&settings); err != nil {
			return err
		}
		return putJSON(tx, db.SlotSyncSettings, settings)
	})
	if err != nil {
		return schema.SyncSettings{}, err
	}
	return settings, nil
}

// RecordPush stores the remote id a successful write reported and stamps
// lastSynced.
func (s *Store) RecordPush(ctx context.Context, remoteID string, syncedAt time.Time) error {
	_, err := s.UpdateSettings(ctx, func(settings *schema.SyncSettings) error {
		if remoteID != "" {
			settings.RemoteID = remoteID
		}
		settings.MarkSynced(syncedAt)
		return nil
	})
	return err
}

func readSettings(tx *db.Tx) (schema.SyncSettings, error) {
	settings := schema.DefaultSyncSettings()
	if err := getJSON(tx, db.SlotSyncSettings, &settings); err != nil {
		return schema.SyncSettings{}, err
	}
	return settings, nil
}
