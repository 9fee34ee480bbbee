// Package remote talks to the single-file blob stores that mirror the local
// snapshot: a GitHub Gist, or a plain HTTP endpoint (the web client's
// Apps Script backend).
//
// Clients never panic and never touch local state. Every failure comes
// back as one of the sentinel errors below, possibly wrapped, or as an
// *APIError carrying the server's message.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/seniorcare/opscentre/internal/schema"
)

var (
	// ErrNotFound means the referenced remote object does not exist.
	ErrNotFound = errors.New("remote not found")
	// ErrUnauthorized means the credential was rejected.
	ErrUnauthorized = errors.New("remote rejected credential")
	// ErrNetwork wraps transport failures and timeouts.
	ErrNetwork = errors.New("network failure")
	// ErrMalformed means the remote object lacks the snapshot file or its
	// content does not parse.
	ErrMalformed = errors.New("malformed remote content")
	// ErrInvalidID means the identifier is not a canonical remote id.
	ErrInvalidID = errors.New("invalid remote identifier")
	// ErrNoCredential means the target carries no credential or endpoint.
	ErrNoCredential = errors.New("no credential configured")
)

// APIError is a non-success response not covered by a sentinel error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.Status)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.Status, e.Message)
}

// Target addresses one remote snapshot.
type Target struct {
	// Credential is the bearer token. Unused by endpoint stores.
	Credential string
	// ID is the remote identifier as the user entered it. Stores sanitize
	// it themselves.
	ID string
	// Endpoint is the URL of an endpoint store.
	Endpoint string
}

// Store reads and writes whole snapshots.
type Store interface {
	// Fetch returns the remote snapshot.
	Fetch(ctx context.Context, t Target) (*schema.Snapshot, error)
	// Write creates or updates the remote snapshot and returns its id. An
	// empty or non-canonical t.ID creates a new remote object.
	Write(ctx context.Context, t Target, snap *schema.Snapshot) (string, error)
}

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
