package schema

import "time"

// Provider selects the remote store implementation.
type Provider string

const (
	// ProviderGitHub mirrors the snapshot into a single-file GitHub Gist.
	ProviderGitHub Provider = "github"
	// ProviderScript posts the snapshot to an HTTP endpoint (a deployed
	// Apps Script in the original client).
	ProviderScript Provider = "google"
)

// SyncSettings is the user-controlled remote sync configuration. Only user
// actions and successful reconciliation runs change it.
type SyncSettings struct {
	Provider   Provider   `json:"provider" yaml:"provider"`
	Enabled    bool       `json:"isEnabled" yaml:"isEnabled"`
	LastSynced *time.Time `json:"lastSynced" yaml:"lastSynced"`
	Credential string     `json:"githubToken" yaml:"githubToken"`
	RemoteID   string     `json:"gistId" yaml:"gistId"`
	Endpoint   string     `json:"scriptUrl" yaml:"scriptUrl"`
}

// DefaultSyncSettings returns the settings of a fresh installation: GitHub
// provider, enabled, nothing configured yet.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		Provider: ProviderGitHub,
		Enabled:  true,
	}
}

// MarkSynced records a successful run at t.
func (s *SyncSettings) MarkSynced(t time.Time) {
	synced := t.UTC()
	s.LastSynced = &synced
}
