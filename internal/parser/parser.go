// Package parser extracts frontmatter, wikilinks, and tags from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/value"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\p{L}_][\p{L}\p{N}_/-]*)`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Frontmatter is always a mapping; it is empty when the file has no
	// frontmatter block or the block is not valid YAML.
	Frontmatter value.Value
	// Malformed is set when a frontmatter block was present but unusable.
	Malformed bool
	Body      string
	Links     []string
	Tags      []string
	BodyTags  []string
}

// Parse extracts frontmatter, body, wikilinks, and tags from raw Markdown bytes.
// It never fails: malformed frontmatter degrades to an empty mapping.
func Parse(data []byte) *Result {
	fm, body, malformed := splitFrontmatter(data)
	scan := maskCode([]byte(body))

	return &Result{
		Frontmatter: fm,
		Malformed:   malformed,
		Body:        body,
		Links:       extractLinks(string(scan), fm),
		Tags:        extractTags(string(scan), fm),
		BodyTags:    bodyTags(string(scan)),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (value.Value, string, bool) {
	const delim = "---"
	empty := value.Mapping(map[string]value.Value{}, nil)
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return empty, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: treat everything as body.
		return empty, string(data), false
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var node yaml.Node
	if err := yaml.Unmarshal(yamlBlock, &node); err != nil {
		return empty, body, true
	}
	fm, err := value.FromYAML(&node)
	if err != nil {
		return empty, body, true
	}
	switch fm.Kind() {
	case value.KindMapping:
		return fm, body, false
	case value.KindUndefined:
		// "---\n---" is an empty but well-formed block.
		return empty, body, false
	}
	return empty, body, true
}

// maskCode blanks out fenced/indented code blocks and inline code spans so
// that "#include" or "[[x]]" inside code is not mistaken for a tag or link.
// Byte offsets and newlines are preserved.
func maskCode(body []byte) []byte {
	out := bytes.Clone(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(body))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				blank(out, seg.Start, seg.Stop)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					blank(out, t.Segment.Start, t.Segment.Stop)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func blank(buf []byte, start, stop int) {
	if start < 0 {
		start = 0
	}
	if stop > len(buf) {
		stop = len(buf)
	}
	for i := start; i < stop; i++ {
		if buf[i] != '\n' && buf[i] != '\r' {
			buf[i] = ' '
		}
	}
}

// extractLinks returns deduplicated wikilink targets from the body followed by
// link-valued frontmatter fields, normalising aliases and heading anchors.
func extractLinks(body string, fm value.Value) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(target string) {
		if target == "" {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		if l, ok := value.ParseLink("[[" + m[1] + "]]"); ok {
			add(l.Path)
		}
	}
	collectLinks(fm, add)
	return out
}

func collectLinks(v value.Value, add func(string)) {
	switch v.Kind() {
	case value.KindLink:
		l, _ := v.AsLink()
		add(l.Path)
	case value.KindList:
		items, _ := v.AsList()
		for _, item := range items {
			collectLinks(item, add)
		}
	case value.KindMapping:
		for _, k := range v.Keys() {
			child, _ := v.Get(k)
			collectLinks(child, add)
		}
	}
}

// FrontmatterTags reads the "tags" field as a list or a comma/space
// separated string. A leading '#' is stripped.
func FrontmatterTags(fm value.Value) []string {
	raw, ok := fm.Get("tags")
	if !ok {
		return nil
	}
	var out []string
	switch raw.Kind() {
	case value.KindList:
		items, _ := raw.AsList()
		for _, item := range items {
			if s, ok := item.AsString(); ok {
				out = append(out, s)
			}
		}
	case value.KindString:
		s, _ := raw.AsString()
		out = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return out
}

// BodyTags returns the inline #tags of a Markdown body, skipping code.
func BodyTags(body string) []string {
	return bodyTags(string(maskCode([]byte(body))))
}

func bodyTags(scan string) []string {
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(scan, -1) {
		out = append(out, m[1])
	}
	return out
}

// MergeTags concatenates tag lists, dropping empty entries, leading '#'
// and duplicates. Order is first occurrence.
func MergeTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimPrefix(strings.TrimSpace(t), "#")
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// extractTags collects tags from the frontmatter "tags" field followed by
// inline #tags from the body; first occurrence wins.
func extractTags(scan string, fm value.Value) []string {
	return MergeTags(FrontmatterTags(fm), bodyTags(scan))
}
