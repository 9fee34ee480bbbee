package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/seniorcare/opscentre/internal/db"
	"github.com/seniorcare/opscentre/internal/schema"
)

func noteID(n schema.Note) string { return n.ID }

// AddNote stamps n and prepends it, newest first as the notes board shows them.
func (s *Store) AddNote(ctx context.Context, n schema.Note) (schema.Note, error) {
	err := mutateSlot(ctx, s, db.SlotNotes, func(notes []schema.Note, now time.Time) ([]schema.Note, error) {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if indexOf(notes, n.ID, noteID) >= 0 {
			return nil, fmt.Errorf("note %s already exists", n.ID)
		}
		n.UpdatedAt = schema.Stamp(now)
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("invalid note: %w", err)
		}
		return append([]schema.Note{n}, notes...), nil
	})
	if err != nil {
		return schema.Note{}, err
	}
	s.logger.Info("note added", "id", n.ID)
	return n, nil
}

// UpdateNote applies fn to the note with the given id.
func (s *Store) UpdateNote(ctx context.Context, id string, fn func(*schema.Note) error) (schema.Note, error) {
	var updated schema.Note
	err := mutateSlot(ctx, s, db.SlotNotes, func(notes []schema.Note, now time.Time) ([]schema.Note, error) {
		i, err := resolve(notes, id, noteID)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", id, err)
		}
		n := notes[i]
		if err := fn(&n); err != nil {
			return nil, err
		}
		if n.ID != notes[i].ID {
			return nil, fmt.Errorf("note id cannot change")
		}
		n.UpdatedAt = schema.Stamp(now)
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("invalid note: %w", err)
		}
		notes[i] = n
		updated = n
		return notes, nil
	})
	if err != nil {
		return schema.Note{}, err
	}
	s.logger.Info("note updated", "id", updated.ID)
	return updated, nil
}

// DeleteNote removes the note with the given id.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	var removed string
	err := mutateSlot(ctx, s, db.SlotNotes, func(notes []schema.Note, _ time.Time) ([]schema.Note, error) {
		i, err := resolve(notes, id, noteID)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", id, err)
		}
		removed = notes[i].ID
		return slices.Delete(notes, i, i+1), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("note deleted", "id", removed)
	return nil
}
