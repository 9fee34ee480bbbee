package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/seniorcare/opscentre/internal/schema"
)

// Format is a backup file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported format %q (want json, yaml or toml)", s)
}

// FormatFromPath picks the format from a file name's extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Export writes the current snapshot to w. The JSON form is byte-compatible
// with the remote document.
func (s *Store) Export(ctx context.Context, w io.Writer, format Format) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	return EncodeSnapshot(w, snap, format)
}

// Import reads a snapshot from r and replaces the collections it contains.
func (s *Store) Import(ctx context.Context, r io.Reader, format Format) (*schema.Snapshot, error) {
	snap, err := DecodeSnapshot(r, format)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to import: %w", err)
	}
	return snap, nil
}

// EncodeSnapshot writes snap to w in the given format.
func EncodeSnapshot(w io.Writer, snap *schema.Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported format %q", format)
}

// DecodeSnapshot reads a snapshot in the given format from r.
func DecodeSnapshot(r io.Reader, format Format) (*schema.Snapshot, error) {
	var snap schema.Snapshot
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return schema.ParseSnapshot(data)
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return &snap, nil
}
