// Package storage defines the read side of the vault file store. Writes,
// renames and deletes belong to the external editor and are observed through
// the index watcher.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every note under dir (relative to vault root),
	// in lexical path order.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
