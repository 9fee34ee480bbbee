package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seniorcare/opscentre/internal/schema"
)

// ScriptStore keeps the snapshot behind a single HTTP endpoint: GET returns
// the snapshot document and POST replaces it. The web client used a
// deployed Apps Script for this ("google" provider). There is no id.
type ScriptStore struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ Store = (*ScriptStore)(nil)

// NewScriptStore returns a ScriptStore. A nil client means http.DefaultClient.
func NewScriptStore(client *http.Client, timeout time.Duration, logger *slog.Logger) *ScriptStore {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptStore{
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "script"),
	}
}

// Fetch reads the snapshot from t.Endpoint.
func (s *ScriptStore) Fetch(ctx context.Context, t Target) (*schema.Snapshot, error) {
	if err := validEndpoint(t.Endpoint); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.do(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, ErrNotFound
	}
	snap, err := schema.ParseSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return snap, nil
}

// Write posts the snapshot to t.Endpoint. The returned id is always empty.
func (s *ScriptStore) Write(ctx context.Context, t Target, snap *schema.Snapshot) (string, error) {
	if err := validEndpoint(t.Endpoint); err != nil {
		return "", err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.do(ctx, http.MethodPost, t.Endpoint, payload); err != nil {
		return "", err
	}
	s.logger.Info("posted snapshot", "bytes", len(payload))
	return "", nil
}

func (s *ScriptStore) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode == http.StatusForbidden {
		// Apps Script answers 403 for deployments not shared with the caller.
		return nil, ErrUnauthorized
	}
	return data, statusError(resp.StatusCode, data)
}

func validEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return ErrNoCredential
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint %q", ErrInvalidID, endpoint)
	}
	return nil
}
