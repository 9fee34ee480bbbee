package sync

import (
	"fmt"
	"strings"
)

// Mode is what triggered a run.
type Mode int

const (
	// ModeAutoPull is the background poll. It never writes to the remote.
	ModeAutoPull Mode = iota
	// ModePull is a manual download.
	ModePull
	// ModePush is a manual upload.
	ModePush
)

func (m Mode) String() string {
	switch m {
	case ModeAutoPull:
		return "auto-pull"
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText encodes a Mode by its String form.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts any form ParseMode does.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Manual reports whether the run was requested by a user, whose failures
// are surfaced rather than only logged.
func (m Mode) Manual() bool {
	return m != ModeAutoPull
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto-pull", "auto", "autopull":
		return ModeAutoPull, nil
	case "pull", "download":
		return ModePull, nil
	case "push", "upload":
		return ModePush, nil
	}
	return 0, fmt.Errorf("unknown sync mode %q", s)
}

// State is a step of a run.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateComparing
	StatePulling
	StatePushing
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "fetching", "comparing", "pulling", "pushing", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome is what a run did.
type Outcome string

const (
	OutcomePulled  Outcome = "pulled"
	OutcomePushed  Outcome = "pushed"
	OutcomeNoop    Outcome = "noop"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Reason classifies why a run failed or did nothing.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonConfiguration     Reason = "ConfigurationError"
	ReasonInvalidIdentifier Reason = "InvalidIdentifier"
	ReasonNotFound          Reason = "NotFound"
	ReasonUnauthorized      Reason = "Unauthorized"
	ReasonNetwork           Reason = "NetworkFailure"
	ReasonMalformed         Reason = "MalformedRemoteContent"
	ReasonBusy              Reason = "Busy"
	ReasonOther             Reason = "Other"
)
