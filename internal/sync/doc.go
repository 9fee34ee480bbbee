// Package sync reconciles the local store with its remote mirror.
//
// Overview
//
// A run compares the remote snapshot's lastUpdated with the local one and
// moves whole snapshots in one direction:
//
//	remote newer            -> pull: replace local collections
//	local newer, or no remote -> push (manual push only)
//	equal                   -> nothing
//
// Background runs (ModeAutoPull) only ever read from the remote. Only a
// manual push writes, and a push with no usable remote id creates a new
// remote object and adopts its id.
//
// State machine
//
// Each run walks an explicit state machine and records the states it
// visited in the Result:
//
//	Idle -> Fetching -> Comparing -> Pulling -> Done
//	                              -> Pushing -> Done
//	                              -> Done
//	any  -> Failed
//
// Error handling
//
// Remote and store errors never escape a run. They are logged, classified
// into a Reason and returned in the Result together with a message that
// can be shown to the user. Local state is untouched by a failed run.
//
// Concurrency
//
// Runs for the same provider and remote id are mutually exclusive: a
// second run while one is in flight returns OutcomeSkipped. When a lock
// directory is configured the exclusion also holds across processes.
package sync
