package schema

import "fmt"

// Note is a free-form operational note.
type Note struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	Title     string `json:"title" yaml:"title" toml:"title"`
	Category  string `json:"category" yaml:"category" toml:"category"`
	Content   string `json:"content" yaml:"content" toml:"content"`
	UpdatedAt string `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt"`
}

// Validate checks the required fields.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
