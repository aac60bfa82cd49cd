// Package noteservice adapts the vault store and the SQLite link index into
// the document feed consumed by the metadata index.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, logger: logger}
}

// Sync brings the link index up to date with the vault.
func (s *Service) Sync(_ context.Context) (index.SyncStats, error) {
	return index.Sync(s.db, s.store, s.logger)
}

// ListDocuments syncs the link index, then reads and parses every note in
// the vault. Files that cannot be read are skipped with a warning; malformed
// frontmatter yields an empty mapping rather than an error.
func (s *Service) ListDocuments(ctx context.Context) ([]models.Document, error) {
	if _, err := s.Sync(ctx); err != nil {
		return nil, fmt.Errorf("noteservice: sync: %w", err)
	}
	metas, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("noteservice: list: %w", err)
	}
	created, err := s.db.AllCreated()
	if err != nil {
		return nil, fmt.Errorf("noteservice: created times: %w", err)
	}

	docs := make([]models.Document, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("noteservice: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res := parser.Parse(data)
		if res.Malformed {
			s.logger.Debug("noteservice: malformed frontmatter", slog.String("path", m.Path))
		}
		ctime, ok := created[m.Path]
		if !ok || ctime.After(m.UpdatedAt) {
			ctime = m.UpdatedAt
		}
		docs = append(docs, models.Document{
			Path:        m.Path,
			Frontmatter: res.Frontmatter,
			Body:        res.Body,
			BodyTags:    nonNilSlice(res.BodyTags),
			ModifiedAt:  m.UpdatedAt,
			CreatedAt:   ctime,
		})
	}
	return docs, nil
}

// LinkGraph returns the outgoing wikilink targets and incoming link sources
// of the note at path.
func (s *Service) LinkGraph(path string) (models.Links, error) {
	out, err := s.db.Outlinks(path)
	if err != nil {
		return models.Links{}, err
	}
	in, err := s.db.Inlinks(path)
	if err != nil {
		return models.Links{}, err
	}
	return models.Links{Outlinks: nonNilSlice(out), Inlinks: nonNilSlice(in)}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
