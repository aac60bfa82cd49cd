package mcpserver

// QueryLanguageReference documents the query grammar for LLM consumers.
const QueryLanguageReference = `# Ansuz Query Language

Queries read note metadata (YAML frontmatter plus file facts) and render a
table or a list. Keywords are case-insensitive.

## Shape

` + "```" + `
TABLE [WITHOUT ID] column [AS alias], ...
LIST  [WITHOUT ID] [column]
  [FROM source]
  [WHERE expression]
  [SORT column [ASC|DESC], ...]
  [GROUP BY field]
  [LIMIT n]
` + "```" + `

SORT and GROUP BY may appear in either order. Each clause appears at most once.

## Columns

- A frontmatter field: ` + "`status`" + `, nested with dots: ` + "`meta.owner`" + `.
- A file field: ` + "`file.name`, `file.path`, `file.link`, `file.folder`, `file.tags`, `file.outlinks`, `file.inlinks`, `file.mtime`, `file.ctime`" + `.
- ` + "`length(field)`" + `: item count of a list, character count of a string, 0 otherwise.
- ` + "`dateformat(field, \"YYYY-MM-DD\")`" + `: tokens YYYY YY MMMM MMM MM M DD D dddd ddd HH H hh h mm ss A a; text in [brackets] is literal.

Missing fields come back as null. dateformat renders "-" for values that are not dates.

## Sources

- ` + "`\"folder/path\"`" + `: notes in that folder or below.
- ` + "`#tag`" + `: notes carrying the tag or a nested tag (` + "`#project`" + ` matches ` + "`#project/alpha`" + `).
- ` + "`[[note]]`" + `: notes linking to that note.
- Combine with ` + "`and`, `or`, `-`" + ` (negation) and parentheses.

## Expressions (WHERE)

Comparisons ` + "`= == != < <= > >=`" + `, boolean ` + "`and or !`" + `, literals
(strings, numbers, true, false, null, [[links]]), and functions
` + "`contains(a, b)`, `startswith(a, b)`, `endswith(a, b)`, `lower(s)`, `length(x)`, `date(today)`" + `.
A string compared with a date is read as a date.

## Grouping

With GROUP BY each group is one row. Columns refer to ` + "`key`" + ` (the group value),
` + "`rows`" + ` (the member notes) or ` + "`rows.field`" + ` (that field for every member).

## Examples

` + "```" + `
TABLE status, dateformat(due, "MMM D") AS "Due" FROM "projects" WHERE status != "done" SORT due
LIST FROM #meeting SORT file.ctime DESC LIMIT 10
TABLE length(rows) AS count GROUP BY status
` + "```" + `
`
