// Package daemon runs sync passes in the background.
//
// The scheduler:
//  1. Runs an auto-pull at startup
//  2. Runs an auto-pull on every poll interval
//  3. Runs manual pushes and pulls on request
//  4. Reloads the poll interval when the config file changes
//  5. Handles graceful shutdown
//
// All runs happen on one worker goroutine, so a manual trigger never
// overlaps a poll from the same process. The reconciler's own guard covers
// other processes.
package daemon
