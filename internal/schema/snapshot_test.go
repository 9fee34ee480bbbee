package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSnapshot_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 15, 30, 123000000, time.UTC)
	snap := NewSnapshot(nil, nil, nil, ts)

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"tasks":[],"notes":[],"docs":[],"lastUpdated":"2025-03-10T08:15:30.123Z"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	task := validTask()
	snap := NewSnapshot(
		[]Task{task},
		[]Note{{ID: "n-1", Title: "Handover", Category: "General", Content: "Call vendor", UpdatedAt: "2025-03-10T08:00:00.000Z"}},
		[]Document{{ID: "d-1", Title: "Fire drill", Category: DocGuideline, URL: "https://example.org/drill.pdf", UpdatedAt: "2025-03-10"}},
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	)

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSnapshot_AbsentCollections(t *testing.T) {
	got, err := ParseSnapshot([]byte(`{"tasks":[],"lastUpdated":"2025-03-10T08:00:00.000Z"}`))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if got.Tasks == nil {
		t.Errorf("present empty tasks decoded as nil")
	}
	if got.Notes != nil || got.Docs != nil {
		t.Errorf("absent collections should decode as nil, got notes=%v docs=%v", got.Notes, got.Docs)
	}
}

func TestParseSnapshot_Timestamps(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    time.Time
		wantErr bool
	}{
		{name: "missing", doc: `{}`},
		{name: "empty", doc: `{"lastUpdated":""}`},
		{
			name: "offset normalised to utc",
			doc:  `{"lastUpdated":"2025-03-10T16:00:00+08:00"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "sub-millisecond truncated",
			doc:  `{"lastUpdated":"2025-03-10T08:00:00.000500Z"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "null",
			doc:  `{"lastUpdated":null}`,
		},
		{
			name: "no zone read as utc",
			doc:  `{"lastUpdated":"2025-03-10T08:00:00.123"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 123e6, time.UTC),
		},
		{
			name: "date only",
			doc:  `{"lastUpdated":"2025-03-10"}`,
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "date string",
			doc:  `{"lastUpdated":"Mon Mar 10 2025 16:00:00 GMT+0800 (China Standard Time)"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "utc string",
			doc:  `{"lastUpdated":"Mon, 10 Mar 2025 08:00:00 GMT"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "epoch millis",
			doc:  `{"lastUpdated":1741593600123}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 123e6, time.UTC),
		},
		{
			name: "epoch millis string",
			doc:  `{"lastUpdated":"1741593600123"}`,
			want: time.Date(2025, 3, 10, 8, 0, 0, 123e6, time.UTC),
		},
		{name: "garbage", doc: `{"lastUpdated":"yesterday"}`, wantErr: true},
		{name: "wrong type", doc: `{"lastUpdated":true}`, wantErr: true},
		{name: "not json", doc: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnapshot([]byte(tt.doc))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSnapshot() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSnapshot failed: %v", err)
			}
			if !got.LastUpdated.Equal(tt.want) {
				t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, tt.want)
			}
		})
	}
}

func TestSnapshot_NewerThan(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	if !(&Snapshot{LastUpdated: base.Add(time.Millisecond)}).NewerThan(base) {
		t.Errorf("later snapshot should be newer")
	}
	if (&Snapshot{LastUpdated: base}).NewerThan(base) {
		t.Errorf("equal timestamps should not be newer")
	}
	if (&Snapshot{}).NewerThan(time.Time{}) {
		t.Errorf("snapshot without timestamp should never be newer")
	}
	if (&Snapshot{LastUpdated: base.Add(500 * time.Microsecond)}).NewerThan(base) {
		t.Errorf("sub-millisecond difference should not be newer")
	}
	if !(&Snapshot{LastUpdated: base.Add(500 * time.Microsecond)}).SameAge(base) {
		t.Errorf("sub-millisecond difference should be the same age")
	}
	if (&Snapshot{}).SameAge(time.Time{}) {
		t.Errorf("snapshot without timestamp should never tie")
	}
	var nilSnap *Snapshot
	if nilSnap.NewerThan(base) {
		t.Errorf("nil snapshot should never be newer")
	}
}

func TestSyncSettings_JSONKeys(t *testing.T) {
	s := DefaultSyncSettings()
	s.Credential = "ghp_secret"
	s.RemoteID = "abc123"

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{`"provider":"github"`, `"isEnabled":true`, `"lastSynced":null`, `"githubToken":"ghp_secret"`, `"gistId":"abc123"`, `"scriptUrl":""`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded settings %s missing %s", data, key)
		}
	}

	s.MarkSynced(time.Date(2025, 3, 10, 16, 0, 0, 0, time.FixedZone("HKT", 8*3600)))
	if s.LastSynced == nil || s.LastSynced.Location() != time.UTC || s.LastSynced.Hour() != 8 {
		t.Errorf("MarkSynced() = %v, want 08:00 UTC", s.LastSynced)
	}
}
