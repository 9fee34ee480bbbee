package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Snapshot is the complete application state at one instant. It is built
// fresh for every write and never mutated afterwards.
type Snapshot struct {
	Tasks       []Task     `json:"tasks" yaml:"tasks" toml:"tasks"`
	Notes       []Note     `json:"notes" yaml:"notes" toml:"notes"`
	Docs        []Document `json:"docs" yaml:"docs" toml:"docs"`
	LastUpdated time.Time  `json:"lastUpdated" yaml:"lastUpdated" toml:"lastUpdated"`
}

// snapshotWire mirrors Snapshot with a string timestamp so that documents
// carrying an empty or missing lastUpdated still decode.
type snapshotWire struct {
	Tasks       []Task     `json:"tasks"`
	Notes       []Note     `json:"notes"`
	Docs        []Document `json:"docs"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
}

// NewSnapshot builds a Snapshot from the given collections. Nil collections
// are replaced by empty ones so the encoded document always carries all three.
func NewSnapshot(tasks []Task, notes []Note, docs []Document, lastUpdated time.Time) *Snapshot {
	if tasks == nil {
		tasks = []Task{}
	}
	if notes == nil {
		notes = []Note{}
	}
	if docs == nil {
		docs = []Document{}
	}
	return &Snapshot{
		Tasks:       tasks,
		Notes:       notes,
		Docs:        docs,
		LastUpdated: lastUpdated,
	}
}

// MarshalJSON encodes lastUpdated in the web client's ISO-8601 form.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := snapshotWire{
		Tasks: s.Tasks,
		Notes: s.Notes,
		Docs:  s.Docs,
	}
	if !s.LastUpdated.IsZero() {
		w.LastUpdated = Stamp(s.LastUpdated)
	}
	return json.Marshal(w)
}

// snapshotInput accepts lastUpdated as a string or as epoch milliseconds.
type snapshotInput struct {
	Tasks       []Task          `json:"tasks"`
	Notes       []Note          `json:"notes"`
	Docs        []Document      `json:"docs"`
	LastUpdated json.RawMessage `json:"lastUpdated"`
}

// UnmarshalJSON decodes a snapshot, treating an empty lastUpdated as the
// zero time.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotInput
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw := strings.TrimSpace(string(w.LastUpdated))
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(w.LastUpdated, &raw); err != nil {
			return fmt.Errorf("invalid lastUpdated: %w", err)
		}
	} else if raw == "null" {
		raw = ""
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return fmt.Errorf("invalid lastUpdated: %w", err)
	}
	*s = Snapshot{
		Tasks:       w.Tasks,
		Notes:       w.Notes,
		Docs:        w.Docs,
		LastUpdated: ts,
	}
	return nil
}

// ParseSnapshot decodes a JSON snapshot document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// NewerThan reports whether s is strictly fresher than t. A snapshot
// without a timestamp is never newer. Both sides are compared at the
// millisecond precision the store keeps.
func (s *Snapshot) NewerThan(t time.Time) bool {
	if s == nil || s.LastUpdated.IsZero() {
		return false
	}
	return NormalizeTime(s.LastUpdated).After(NormalizeTime(t))
}

// SameAge reports whether s carries a lastUpdated equal to t. A snapshot
// without a timestamp never ties.
func (s *Snapshot) SameAge(t time.Time) bool {
	if s == nil || s.LastUpdated.IsZero() {
		return false
	}
	return NormalizeTime(s.LastUpdated).Equal(NormalizeTime(t))
}

// NormalizeTime drops everything below the millisecond, the precision of
// Stamp and of the web client's timestamps.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

// timestampLayouts are tried in order after RFC 3339. Forms without a zone
// are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"2006-01-02",
}

// jsZoneName matches the " (China Standard Time)" suffix of Date.toString.
var jsZoneName = regexp.MustCompile(`\s*\([^)]*\)$`)

// ParseTimestamp parses a lastUpdated value: ISO-8601 first, then the other
// forms a JavaScript Date accepts or prints, then epoch milliseconds. The
// empty string yields the zero time. Results are normalized to UTC
// milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NormalizeTime(t), nil
	}
	trimmed := jsZoneName.ReplaceAllString(s, "")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return NormalizeTime(t), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return NormalizeTime(time.UnixMilli(ms)), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
