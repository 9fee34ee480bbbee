package schema

import (
	"fmt"
	"net/url"
)

// Document is a reference to an external guideline, directory, form or policy.
type Document struct {
	ID          string      `json:"id" yaml:"id" toml:"id"`
	Title       string      `json:"title" yaml:"title" toml:"title"`
	Category    DocCategory `json:"category" yaml:"category" toml:"category"`
	Description string      `json:"description" yaml:"description" toml:"description"`
	URL         string      `json:"url" yaml:"url" toml:"url"`
	UpdatedAt   string      `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt"`
}

// Validate checks the required fields, the category and the URL.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !isOneOf(d.Category, DocCategories) {
		return fmt.Errorf("unknown document category %q", d.Category)
	}
	if d.URL != "" {
		u, err := url.Parse(d.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid url %q", d.URL)
		}
	}
	return nil
}
