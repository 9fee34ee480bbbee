package store

import (
	"context"
	"time"

	"github.com/seniorcare/opscentre/internal/schema"
)

// Stats summarises the local collections.
type Stats struct {
	Tasks       int                   `json:"tasks"`
	ByStatus    map[schema.Status]int `json:"by_status"`
	Overdue     int                   `json:"overdue"`
	DueToday    int                   `json:"due_today"`
	Notes       int                   `json:"notes"`
	Docs        int                   `json:"docs"`
	LastUpdated time.Time             `json:"last_updated"`
}

// Stats counts tasks by status and the overdue and due-today
// notifications relative to today.
func (s *Store) Stats(ctx context.Context, today time.Time) (Stats, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Tasks:       len(snap.Tasks),
		ByStatus:    make(map[schema.Status]int, len(schema.Statuses)),
		Notes:       len(snap.Notes),
		Docs:        len(snap.Docs),
		LastUpdated: snap.LastUpdated,
	}
	for _, st := range schema.Statuses {
		stats.ByStatus[st] = 0
	}
	for _, t := range snap.Tasks {
		stats.ByStatus[t.Status]++
		if t.IsOverdue(today) {
			stats.Overdue++
		}
		if t.IsDueOn(today) {
			stats.DueToday++
		}
	}
	return stats, nil
}
