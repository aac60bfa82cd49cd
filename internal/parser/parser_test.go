package parser

import (
	"fmt"
	"testing"

	"github.com/starford/ansuz/internal/value"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - ansuz\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	title, ok := r.Frontmatter.Get("title")
	if s, _ := title.AsString(); !ok || s != "Hello" {
		t.Errorf("title = %v", title.Text())
	}
	if len(r.Tags) != 2 || r.Tags[0] != "go" || r.Tags[1] != "ansuz" {
		t.Errorf("tags = %v, want [go ansuz]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Malformed {
		t.Error("frontmatter should not be malformed")
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter.Kind() != value.KindMapping || r.Frontmatter.Len() != 0 {
		t.Errorf("expected empty mapping, got %v", r.Frontmatter.Text())
	}
}

func TestParse_InvalidYAMLDegradesToEmptyMapping(t *testing.T) {
	r := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody #tag\n"))
	if r.Frontmatter.Kind() != value.KindMapping || r.Frontmatter.Len() != 0 {
		t.Errorf("expected empty mapping on invalid YAML")
	}
	if !r.Malformed {
		t.Error("expected Malformed to be set")
	}
	if len(r.Tags) != 1 || r.Tags[0] != "tag" {
		t.Errorf("body tags should still be indexed, got %v", r.Tags)
	}
}

const bombYAML = "a: &a [x, x, x, x, x, x, x, x, x, x]\nb: &b [*a, *a, *a, *a, *a, *a, *a, *a, *a, *a]\nc: &c [*b, *b, *b, *b, *b, *b, *b, *b, *b, *b]\nd: &d [*c, *c, *c, *c, *c, *c, *c, *c, *c, *c]\ne: &e [*d, *d, *d, *d, *d, *d, *d, *d, *d, *d]\nf: [*e, *e, *e, *e, *e, *e, *e, *e, *e, *e]\n"

const aliasBomb = "---\n%s---\nBody #tag\n"

func TestParse_CyclicAliasIsMalformed(t *testing.T) {
	r := Parse([]byte("---\na: &x [*x]\n---\nbody #tag"))
	if !r.Malformed {
		t.Error("expected Malformed to be set")
	}
	if r.Frontmatter.Kind() != value.KindMapping || r.Frontmatter.Len() != 0 {
		t.Errorf("expected empty mapping, got %v", r.Frontmatter.Text())
	}
	if len(r.Tags) != 1 || r.Tags[0] != "tag" {
		t.Errorf("body tags should still be indexed, got %v", r.Tags)
	}
}

func TestParse_AliasExpansionIsBounded(t *testing.T) {
	r := Parse([]byte(fmt.Sprintf(aliasBomb, bombYAML)))
	if !r.Malformed {
		t.Error("expected Malformed to be set")
	}
	if r.Frontmatter.Len() != 0 {
		t.Errorf("expected empty mapping, got %d keys", r.Frontmatter.Len())
	}
	if len(r.Tags) != 1 || r.Tags[0] != "tag" {
		t.Errorf("body tags should still be indexed, got %v", r.Tags)
	}
}

func TestParse_SharedAliasIsAccepted(t *testing.T) {
	r := Parse([]byte("---\nbase: &b [one, two]\nleft: *b\nright: *b\n---\nbody"))
	if r.Malformed {
		t.Fatal("repeated non-cyclic alias should parse")
	}
	right, _ := r.Frontmatter.Get("right")
	if right.Len() != 2 {
		t.Errorf("right = %v", right.Text())
	}
}

func TestParse_ScalarFrontmatterIsMalformed(t *testing.T) {
	r := Parse([]byte("---\njust a string\n---\nbody"))
	if !r.Malformed || r.Frontmatter.Len() != 0 {
		t.Errorf("scalar frontmatter should degrade, got %v", r.Frontmatter.Text())
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again and [[Note C#Heading]]."
	links := extractLinks(body, value.Undefined)
	want := []string{"Note A", "Note B", "Note C"}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	links := extractLinks("see [[ ]] and [[|alias]]", value.Undefined)
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestParse_FrontmatterLinksCountAsOutlinks(t *testing.T) {
	r := Parse([]byte("---\nproject: \"[[roadmap]]\"\n---\nsee [[design]]\n"))
	if len(r.Links) != 2 || r.Links[0] != "design" || r.Links[1] != "roadmap" {
		t.Errorf("links = %v, want [design roadmap]", r.Links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := value.Mapping(map[string]value.Value{
		"tags": value.List(value.String("alpha"), value.String("#gamma")),
	}, nil)
	tags := extractTags("Some text #beta and #alpha again.", fm)
	want := []string{"alpha", "gamma", "beta"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestExtractTags_StringField(t *testing.T) {
	fm := value.Mapping(map[string]value.Value{"tags": value.String("one, two three")}, nil)
	tags := extractTags("", fm)
	if len(tags) != 3 || tags[0] != "one" || tags[2] != "three" {
		t.Errorf("tags = %v", tags)
	}
}

func TestParse_IgnoresCode(t *testing.T) {
	input := []byte("Real #tag and [[real]].\n\n```c\n#include <stdio.h>\n[[fake]]\n```\n\nInline `#notatag [[nolink]]` here.\n")
	r := Parse(input)
	if len(r.Tags) != 1 || r.Tags[0] != "tag" {
		t.Errorf("tags = %v, want [tag]", r.Tags)
	}
	if len(r.Links) != 1 || r.Links[0] != "real" {
		t.Errorf("links = %v, want [real]", r.Links)
	}
}

func TestParse_NestedTags(t *testing.T) {
	r := Parse([]byte("tagged #project/alpha and #_private\n"))
	if len(r.Tags) != 2 || r.Tags[0] != "project/alpha" || r.Tags[1] != "_private" {
		t.Errorf("tags = %v", r.Tags)
	}
}
