// Package schema defines the opscentre data model: tasks, notes, documents,
// the Snapshot exchanged with remote stores, and the sync settings.
//
// # Wire format
//
// A Snapshot is serialized as a single JSON document:
//
//	{
//	  "tasks": [...],
//	  "notes": [...],
//	  "docs": [...],
//	  "lastUpdated": "2026-01-10T07:36:29.000Z"
//	}
//
// Enum fields use the display strings of the original web client (for
// example a pending task has "status": "待處理") so documents written by
// either client decode cleanly. English aliases are accepted by the Parse*
// helpers for command-line input.
//
// # Freshness
//
// lastUpdated is the only freshness signal. Per-record timestamps (note and
// document updatedAt, audit log entries) are informational strings and are
// never compared.
//
// # Absent collections
//
// A collection missing from a decoded Snapshot is nil, while an explicitly
// empty one is a non-nil empty slice. Pulls leave local collections alone
// when the remote side is nil.
package schema
