// Package parser extracts the YAML frontmatter block from a daily note.
package parser

import (
	"bytes"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a daily note.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Date        string
	Projects    []string
	People      []string
	Topics      []string
	Title       string
}

// Parse splits the leading YAML frontmatter from the markdown body and
// pulls out the entity-bearing fields. Notes without frontmatter, or with
// invalid YAML, parse as body-only — never an error.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Date:        stringField(fm, "date"),
		Projects:    stringList(fm, "projects"),
		People:      stringList(fm, "people"),
		Topics:      stringList(fm, "topics"),
		Title:       deriveTitle(fm, body),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// stringField returns a scalar frontmatter field as a string. yaml.v3
// resolves bare dates to time.Time when decoding into any, so those are
// formatted back to YYYY-MM-DD.
func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format("2006-01-02")
	}
	return ""
}

// stringList returns a frontmatter list field as trimmed, non-empty strings.
// A scalar value is treated as a single-element list.
func stringList(fm map[string]any, key string) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm[key]
	if !ok {
		return nil
	}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		add(v)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringField(fm, "title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
