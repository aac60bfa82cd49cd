package index

import "time"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	CreatedAt(path string) (time.Time, bool, error)
	AllCreated() (map[string]time.Time, error)
	AllChecksums() (map[string]string, error)
	Outlinks(path string) ([]string, error)
	Inlinks(path string) ([]string, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
