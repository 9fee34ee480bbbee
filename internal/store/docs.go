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

func docID(d schema.Document) string { return d.ID }

// AddDoc stamps d with today's date and appends it.
func (s *Store) AddDoc(ctx context.Context, d schema.Document) (schema.Document, error) {
	err := mutateSlot(ctx, s, db.SlotDocs, func(docs []schema.Document, now time.Time) ([]schema.Document, error) {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if indexOf(docs, d.ID, docID) >= 0 {
			return nil, fmt.Errorf("document %s already exists", d.ID)
		}
		d.UpdatedAt = schema.FormatDate(now)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid document: %w", err)
		}
		return append(docs, d), nil
	})
	if err != nil {
		return schema.Document{}, err
	}
	s.logger.Info("document added", "id", d.ID)
	return d, nil
}

// UpdateDoc applies fn to the document with the given id.
func (s *Store) UpdateDoc(ctx context.Context, id string, fn func(*schema.Document) error) (schema.Document, error) {
	var updated schema.Document
	err := mutateSlot(ctx, s, db.SlotDocs, func(docs []schema.Document, now time.Time) ([]schema.Document, error) {
		i, err := resolve(docs, id, docID)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		d := docs[i]
		if err := fn(&d); err != nil {
			return nil, err
		}
		if d.ID != docs[i].ID {
			return nil, fmt.Errorf("document id cannot change")
		}
		d.UpdatedAt = schema.FormatDate(now)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid document: %w", err)
		}
		docs[i] = d
		updated = d
		return docs, nil
	})
	if err != nil {
		return schema.Document{}, err
	}
	s.logger.Info("document updated", "id", updated.ID)
	return updated, nil
}

// DeleteDoc removes the document with the given id.
func (s *Store) DeleteDoc(ctx context.Context, id string) error {
	var removed string
	err := mutateSlot(ctx, s, db.SlotDocs, func(docs []schema.Document, _ time.Time) ([]schema.Document, error) {
		i, err := resolve(docs, id, docID)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		removed = docs[i].ID
		return slices.Delete(docs, i, i+1), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("document deleted", "id", removed)
	return nil
}
