package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"

	"github.com/seniorcare/opscentre/internal/schema"
)

// Defaults match the documents the web client wrote, so both can share a gist.
const (
	DefaultAPIURL      = "https://api.github.com"
	DefaultFilename    = "opscentre_data.json"
	DefaultDescription = "SeniorCare OpsCentre Backup"
	DefaultTimeout     = 20 * time.Second
)

// maxBodySize bounds every response read. Raw gist files top out at 10MB.
const maxBodySize = 16 << 20

// GistConfig configures a GistStore.
type GistConfig struct {
	APIURL      string
	Filename    string
	Description string
	Timeout     time.Duration
	// HTTPClient is the base client the bearer transport wraps.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GistStore keeps the snapshot as one file of a secret GitHub Gist.
type GistStore struct {
	apiURL      string
	filename    string
	description string
	timeout     time.Duration
	base        *http.Client
	logger      *slog.Logger
}

var _ Store = (*GistStore)(nil)

// NewGistStore returns a GistStore with defaults filled in.
func NewGistStore(cfg GistConfig) *GistStore {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Filename == "" {
		cfg.Filename = DefaultFilename
	}
	if cfg.Description == "" {
		cfg.Description = DefaultDescription
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GistStore{
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		filename:    cfg.Filename,
		description: cfg.Description,
		timeout:     cfg.Timeout,
		base:        cfg.HTTPClient,
		logger:      cfg.Logger.With("component", "gist"),
	}
}

// Fetch downloads the gist and decodes the snapshot file.
func (g *GistStore) Fetch(ctx context.Context, t Target) (*schema.Snapshot, error) {
	if t.Credential == "" {
		return nil, ErrNoCredential
	}
	id := Sanitize(t.ID)
	if !IsCanonical(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, t.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	client := g.client(ctx, t.Credential)

	body, err := g.do(ctx, client, http.MethodGet, g.apiURL+"/gists/"+id, nil)
	if err != nil {
		return nil, err
	}

	file := gjson.GetBytes(body, "files."+escapePath(g.filename))
	if !file.Exists() {
		return nil, malformed("gist %s has no file %s", id, g.filename)
	}

	content := file.Get("content").String()
	if file.Get("truncated").Bool() {
		rawURL := file.Get("raw_url").String()
		if rawURL == "" {
			return nil, malformed("truncated file %s has no raw_url", g.filename)
		}
		g.logger.Debug("fetching truncated gist file", "id", id, "size", file.Get("size").Int())
		raw, err := g.do(ctx, client, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		content = string(raw)
	}
	if strings.TrimSpace(content) == "" {
		return nil, malformed("file %s is empty", g.filename)
	}

	snap, err := schema.ParseSnapshot([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	g.logger.Debug("fetched gist", "id", id, "lastUpdated", snap.LastUpdated)
	return snap, nil
}

// Write updates the gist named by t.ID, or creates a new secret gist when
// the id is empty or not canonical. It returns the gist id.
func (g *GistStore) Write(ctx context.Context, t Target, snap *schema.Snapshot) (string, error) {
	if t.Credential == "" {
		return "", ErrNoCredential
	}

	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	id := Sanitize(t.ID)
	create := !IsCanonical(id)

	body, err := sjson.SetBytes([]byte(`{}`), "description", g.description)
	if err == nil && create {
		body, err = sjson.SetBytes(body, "public", false)
	}
	if err == nil {
		body, err = sjson.SetBytes(body, "files."+escapePath(g.filename)+".content", string(content))
	}
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	method, url := http.MethodPatch, g.apiURL+"/gists/"+id
	if create {
		method, url = http.MethodPost, g.apiURL+"/gists"
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.do(ctx, g.client(ctx, t.Credential), method, url, body)
	if err != nil {
		return "", err
	}

	newID := gjson.GetBytes(resp, "id").String()
	if newID == "" {
		return "", malformed("response to %s has no id", method)
	}
	g.logger.Info("wrote gist", "id", newID, "created", create, "bytes", len(content))
	return newID, nil
}

// client returns an HTTP client that sends the bearer credential.
func (g *GistStore) client(ctx context.Context, credential string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}

func (g *GistStore) do(ctx context.Context, client *http.Client, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, networkError(err)
	}

	return data, statusError(resp.StatusCode, data)
}

// statusError maps a GitHub response status to the package errors.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	}
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" && !gjson.ValidBytes(body) {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return &APIError{Status: status, Message: msg}
}

// escapePath escapes the gjson path metacharacters in a literal key.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
