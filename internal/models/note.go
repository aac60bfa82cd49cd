// Package models defines the domain types exchanged between the vault store
// and the metadata index.
package models

import (
	"time"

	"github.com/starford/ansuz/internal/value"
)

// Document is one note as supplied by the store adapter.
type Document struct {
	Path        string
	Frontmatter value.Value // mapping; empty when absent or malformed
	Body        string
	// BodyTags holds inline #tags when the adapter already parsed them.
	// When nil the metadata index scans Body itself.
	BodyTags   []string
	ModifiedAt time.Time
	CreatedAt  time.Time
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
	Size      int64     `json:"size"`
}

// Links holds the link graph neighbourhood of one note.
type Links struct {
	Outlinks []string `json:"outlinks"` // raw wikilink targets written in the note
	Inlinks  []string `json:"inlinks"`  // paths of notes linking to it
}
