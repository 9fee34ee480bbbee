package sync

import (
	"context"
	"errors"
	"time"

	"github.com/seniorcare/opscentre/internal/remote"
)

// Result describes one run.
type Result struct {
	Mode    Mode    `json:"mode"`
	Outcome Outcome `json:"outcome"`
	Reason  Reason  `json:"reason,omitempty"`
	// Message is a human readable explanation for failures and no-ops.
	Message string `json:"message,omitempty"`
	// RemoteID is the remote id after the run.
	RemoteID string `json:"remote_id,omitempty"`
	// LastUpdated is the local freshness marker after the run.
	LastUpdated time.Time     `json:"last_updated"`
	States      []State       `json:"-"`
	Err         error         `json:"-"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
}

// OK reports whether the run did not fail.
func (r Result) OK() bool {
	return r.Outcome != OutcomeFailed
}

// Changed reports whether the run moved data in either direction.
func (r Result) Changed() bool {
	return r.Outcome == OutcomePulled || r.Outcome == OutcomePushed
}

// Visited reports whether the run passed through s.
func (r Result) Visited(s State) bool {
	for _, v := range r.States {
		if v == s {
			return true
		}
	}
	return false
}

// Classify maps an error from a remote or the store to a Reason.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, remote.ErrNoCredential):
		return ReasonConfiguration
	case errors.Is(err, remote.ErrInvalidID):
		return ReasonInvalidIdentifier
	case errors.Is(err, remote.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, remote.ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, remote.ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ReasonNetwork
	case errors.Is(err, remote.ErrMalformed):
		return ReasonMalformed
	}
	return ReasonOther
}

// describe returns the user facing message for a failure.
func describe(reason Reason, err error) string {
	switch reason {
	case ReasonConfiguration:
		return "sync is not configured: run `opsctl sync setup`"
	case ReasonInvalidIdentifier:
		return "the gist id is not valid: enter the 20 or 32 character id, or the gist URL (not a profile URL)"
	case ReasonNotFound:
		return "gist not found: check the gist id, and that the URL is a gist rather than a profile page"
	case ReasonUnauthorized:
		return "the token is invalid or has expired"
	case ReasonNetwork:
		return "network failure: check the connection and try again"
	case ReasonMalformed:
		return "the remote copy is unreadable"
	case ReasonBusy:
		return "another sync is already in progress"
	}
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "sync failed"
}
