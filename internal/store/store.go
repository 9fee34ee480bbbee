// Package store implements the local persisted state: typed task, note and
// document collections, the sync settings and the last_updated marker.
//
// Every user edit goes through one path: read the collection, apply the
// change, write it back and bump last_updated, all in a single
// transaction. Pulls from a remote replace collections through the same
// transaction machinery, so the freshness marker can never drift from the
// data it describes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/seniorcare/opscentre/internal/db"
	"github.com/seniorcare/opscentre/internal/schema"
)

// ErrNotFound is returned when an item id does not exist in its collection.
var ErrNotFound = errors.New("not found")

// SystemUser is the actor recorded for entries the application writes itself.
const SystemUser = "System"

// Options configures a Store.
type Options struct {
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
	// Logger receives mutation logs. Defaults to slog.Default().
	Logger *slog.Logger
	// User is the actor recorded in task audit logs.
	User string
}

// Store is the typed view of the local database.
type Store struct {
	db     *db.DB
	now    func() time.Time
	logger *slog.Logger
	user   string

	// mu serializes read-modify-write cycles within the process. SQLite
	// serializes writers across processes.
	mu gosync.Mutex
}

// Open opens (or creates) the database at path and returns a Store over it.
// A fresh database is seeded with a welcome task.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, database, opts)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open database. The schema is created if needed.
func New(ctx context.Context, database *db.DB, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.User == "" {
		opts.User = SystemUser
	}

	if err := database.InitSchemaContext(ctx); err != nil {
		return nil, err
	}

	s := &Store{
		db:     database,
		now:    opts.Now,
		logger: opts.Logger.With("component", "store"),
		user:   opts.User,
	}
	if err := s.seed(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying slot database.
func (s *Store) DB() *db.DB {
	return s.db
}

// User returns the actor recorded in audit logs.
func (s *Store) User() string {
	return s.user
}

// seed writes the welcome task when the tasks slot has never been written.
// last_updated stays at the zero time so any remote snapshot wins.
func (s *Store) seed(ctx context.Context) error {
	return s.db.Update(ctx, func(tx *db.Tx) error {
		_, ok, err := tx.Get(db.SlotTasks)
		if err != nil || ok {
			return err
		}
		now := s.now()
		welcome := schema.Task{
			ID:          uuid.NewString(),
			Title:       "歡迎使用 OpsCentre",
			Location:    "總部營運",
			Assignees:   []string{"Chris"},
			Description: "請執行 opsctl sync setup 設定雲端同步，以便在不同裝置間同步數據。",
			Logs: []schema.AuditLog{
				newLog(SystemUser, "Initialized", now),
			},
		}
		welcome.SetDefaults(now)
		s.logger.Debug("seeding new store", "task", welcome.ID)
		return putJSON(tx, db.SlotTasks, []schema.Task{welcome})
	})
}

// Tasks returns every task.
func (s *Store) Tasks(ctx context.Context) ([]schema.Task, error) {
	var tasks []schema.Task
	err := s.db.View(ctx, func(tx *db.Tx) error {
		return getJSON(tx, db.SlotTasks, &tasks)
	})
	return nonNil(tasks), err
}

// Notes returns every note.
func (s *Store) Notes(ctx context.Context) ([]schema.Note, error) {
	var notes []schema.Note
	err := s.db.View(ctx, func(tx *db.Tx) error {
		return getJSON(tx, db.SlotNotes, &notes)
	})
	return nonNil(notes), err
}

// Docs returns every document.
func (s *Store) Docs(ctx context.Context) ([]schema.Document, error) {
	var docs []schema.Document
	err := s.db.View(ctx, func(tx *db.Tx) error {
		return getJSON(tx, db.SlotDocs, &docs)
	})
	return nonNil(docs), err
}

// LastUpdated returns the local freshness marker. The zero time means the
// store has never been modified.
func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := s.db.View(ctx, func(tx *db.Tx) error {
		var err error
		ts, err = lastUpdated(tx)
		return err
	})
	return ts, err
}

// Snapshot builds a new snapshot of the current collections stamped with
// the stored last_updated.
func (s *Store) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	var snap *schema.Snapshot
	err := s.db.View(ctx, func(tx *db.Tx) error {
		var tasks []schema.Task
		var notes []schema.Note
		var docs []schema.Document
		if err := getJSON(tx, db.SlotTasks, &tasks); err != nil {
			return err
		}
		if err := getJSON(tx, db.SlotNotes, &notes); err != nil {
			return err
		}
		if err := getJSON(tx, db.SlotDocs, &docs); err != nil {
			return err
		}
		ts, err := lastUpdated(tx)
		if err != nil {
			return err
		}
		snap = schema.NewSnapshot(tasks, notes, docs, ts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// mutateSlot is the single mutate+bump+persist path. fn receives the
// current collection and returns the replacement.
func mutateSlot[T any](ctx context.Context, s *Store, slot string, fn func(items []T, now time.Time) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(ctx, func(tx *db.Tx) error {
		var items []T
		if err := getJSON(tx, slot, &items); err != nil {
			return err
		}
		now := s.now()
		items, err := fn(items, now)
		if err != nil {
			return err
		}
		if err := putJSON(tx, slot, nonNil(items)); err != nil {
			return err
		}
		return s.touch(tx, now)
	})
}

// touch advances last_updated to max(now, prev+1ms) so it strictly
// increases even when the clock stalls or steps backwards.
func (s *Store) touch(tx *db.Tx, now time.Time) error {
	prev, err := lastUpdated(tx)
	if err != nil {
		return err
	}
	next := now.UTC().Truncate(time.Millisecond)
	if !next.After(prev) {
		next = prev.Add(time.Millisecond)
	}
	return setLastUpdated(tx, next)
}

func lastUpdated(tx *db.Tx) (time.Time, error) {
	var raw string
	if err := getJSON(tx, db.SlotLastUpdated, &raw); err != nil {
		return time.Time{}, err
	}
	ts, err := schema.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt %s slot: %w", db.SlotLastUpdated, err)
	}
	return ts, nil
}

func setLastUpdated(tx *db.Tx, ts time.Time) error {
	return putJSON(tx, db.SlotLastUpdated, schema.Stamp(ts))
}

func getJSON(tx *db.Tx, slot string, v any) error {
	raw, ok, err := tx.Get(slot)
	if err != nil || !ok || len(raw) == 0 {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("corrupt %s slot: %w", slot, err)
	}
	return nil
}

func putJSON(tx *db.Tx, slot string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", slot, err)
	}
	return tx.Put(slot, raw)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, item := range items {
		if key(item) == id {
			return i
		}
	}
	return -1
}

func newLog(user, action string, at time.Time) schema.AuditLog {
	return schema.AuditLog{
		ID:        uuid.NewString(),
		User:      user,
		Action:    action,
		Timestamp: schema.Stamp(at),
	}
}
