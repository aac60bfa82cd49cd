package metaindex

import (
	"time"

	"github.com/starford/ansuz/internal/value"
)

// VirtualFields lists the names resolvable under the "file." prefix.
var VirtualFields = []string{"name", "path", "link", "folder", "tags", "outlinks", "inlinks", "mtime", "ctime"}

// Record is the indexed form of one note. Records are immutable after Build.
type Record struct {
	Path        string
	Frontmatter value.Value // mapping, link targets resolved to vault paths
	Name        string
	Folder      string
	Tags        []string
	Outlinks    []value.Link
	Inlinks     []value.Link
	MTime       time.Time
	CTime       time.Time
}

// Link returns a link value pointing at the record itself.
func (r *Record) Link() value.Link {
	return value.NewLink(r.Path, "")
}

// Virtual returns the file.<name> field. ok is false for unknown names.
func (r *Record) Virtual(name string) (value.Value, bool) {
	switch name {
	case "name":
		return value.String(r.Name), true
	case "path":
		return value.String(r.Path), true
	case "link":
		return value.LinkTo(r.Link()), true
	case "folder":
		return value.String(r.Folder), true
	case "tags":
		items := make([]value.Value, len(r.Tags))
		for i, t := range r.Tags {
			items[i] = value.String(t)
		}
		return value.List(items...), true
	case "outlinks":
		return linkList(r.Outlinks), true
	case "inlinks":
		return linkList(r.Inlinks), true
	case "mtime":
		return dateOrUndefined(r.MTime), true
	case "ctime":
		return dateOrUndefined(r.CTime), true
	}
	return value.Undefined, false
}

// File returns all virtual fields as a mapping, in VirtualFields order.
func (r *Record) File() value.Value {
	m := make(map[string]value.Value, len(VirtualFields))
	for _, name := range VirtualFields {
		m[name], _ = r.Virtual(name)
	}
	return value.Mapping(m, VirtualFields)
}

func linkList(links []value.Link) value.Value {
	items := make([]value.Value, len(links))
	for i, l := range links {
		items[i] = value.LinkTo(l)
	}
	return value.List(items...)
}

func dateOrUndefined(t time.Time) value.Value {
	if t.IsZero() {
		return value.Undefined
	}
	return value.Date(t)
}
