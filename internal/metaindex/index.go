// Package metaindex builds the immutable per-note metadata index that queries
// run against.
package metaindex

import (
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/value"
)

// LinkGraph supplies the outgoing and incoming links of a note.
type LinkGraph interface {
	LinkGraph(path string) (models.Links, error)
}

// Index maps note paths to records. It is never mutated after Build, so a
// single Index may be shared by any number of concurrent readers.
type Index struct {
	records map[string]*Record
	order   []string
	links   *resolver
	buildID string
	builtAt time.Time
}

// Build computes the record of every document. Documents keep their input
// order, which becomes the index insertion order. A nil graph, or a graph
// lookup error for one note, leaves that note's link lists empty.
func Build(docs []models.Document, graph LinkGraph) *Index {
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	res := newResolver(paths)

	idx := &Index{
		records: make(map[string]*Record, len(docs)),
		order:   make([]string, 0, len(docs)),
		links:   res,
		buildID: uuid.NewString(),
		builtAt: time.Now(),
	}
	for _, d := range docs {
		if _, dup := idx.records[d.Path]; dup {
			continue
		}
		idx.records[d.Path] = buildRecord(d, graph, res)
		idx.order = append(idx.order, d.Path)
	}
	return idx
}

func buildRecord(d models.Document, graph LinkGraph, res *resolver) *Record {
	fm := d.Frontmatter
	if fm.Kind() != value.KindMapping {
		fm = value.Mapping(nil, nil)
	}
	fm = value.MapLinks(fm, func(l value.Link) value.Link {
		return value.Link{Path: res.resolve(l.Path), Name: l.Name, Display: l.Display}
	})

	bodyTags := d.BodyTags
	if bodyTags == nil {
		bodyTags = parser.BodyTags(d.Body)
	}

	rec := &Record{
		Path:        d.Path,
		Frontmatter: fm,
		Name:        value.BaseName(d.Path),
		Folder:      folderOf(d.Path),
		Tags:        parser.MergeTags(parser.FrontmatterTags(fm), bodyTags),
		MTime:       d.ModifiedAt,
		CTime:       d.CreatedAt,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	rec.Outlinks = []value.Link{}
	rec.Inlinks = []value.Link{}
	if graph == nil {
		return rec
	}
	g, err := graph.LinkGraph(d.Path)
	if err != nil {
		return rec
	}
	seen := make(map[string]struct{})
	for _, target := range g.Outlinks {
		p := res.resolve(target)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		rec.Outlinks = append(rec.Outlinks, value.NewLink(p, ""))
	}
	for _, src := range g.Inlinks {
		rec.Inlinks = append(rec.Inlinks, value.NewLink(src, ""))
	}
	return rec
}

func folderOf(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "" {
		return "/"
	}
	return dir
}

// Lookup returns the record for path.
func (idx *Index) Lookup(path string) (*Record, bool) {
	r, ok := idx.records[path]
	return r, ok
}

// Records returns all records in insertion order.
func (idx *Index) Records() []*Record {
	out := make([]*Record, len(idx.order))
	for i, p := range idx.order {
		out[i] = idx.records[p]
	}
	return out
}

// Paths returns every indexed path in insertion order.
func (idx *Index) Paths() []string { return slices.Clone(idx.order) }

// Len returns the number of records.
func (idx *Index) Len() int { return len(idx.order) }

// BuildID identifies this snapshot.
func (idx *Index) BuildID() string { return idx.buildID }

// BuiltAt reports when the snapshot was built.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Resolve maps a raw wikilink target to the vault path it refers to.
func (idx *Index) Resolve(target string) string { return idx.links.resolve(target) }

// resolver maps wikilink targets to vault paths. Precedence: exact path,
// path with ".md" appended, then a unique note name. Anything else resolves
// to the target with ".md" appended.
type resolver struct {
	paths map[string]struct{}
	names map[string][]string
}

func newResolver(paths []string) *resolver {
	r := &resolver{
		paths: make(map[string]struct{}, len(paths)),
		names: make(map[string][]string),
	}
	for _, p := range paths {
		r.paths[p] = struct{}{}
		name := strings.ToLower(value.BaseName(p))
		r.names[name] = append(r.names[name], p)
	}
	return r
}

func (r *resolver) resolve(target string) string {
	target = strings.TrimPrefix(strings.TrimSpace(target), "/")
	if _, ok := r.paths[target]; ok {
		return target
	}
	if _, ok := r.paths[target+".md"]; ok {
		return target + ".md"
	}
	if !strings.Contains(target, "/") {
		if cands := r.names[strings.ToLower(value.BaseName(target))]; len(cands) == 1 {
			return cands[0]
		}
	}
	if path.Ext(target) == "" {
		return target + ".md"
	}
	return target
}
