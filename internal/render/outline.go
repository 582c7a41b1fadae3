package render

import (
	"strings"
)

// Section is one heading of an explanation and the text under it.
type Section struct {
	Title     string     `json:"title"`
	Depth     int        `json:"depth"` // 1=H1 .. 4=H4
	Path      string     `json:"path"`  // " / "-delimited: "Pathophysiology / Airways"
	Content   string     `json:"content,omitempty"`
	WordCount int        `json:"wordCount"`
	Children  []*Section `json:"children,omitempty"`
}

// Outline is the heading tree of an explanation. Text before the first heading is
// kept as Preamble so nothing is lost.
type Outline struct {
	Preamble string     `json:"preamble,omitempty"`
	Sections []*Section `json:"sections,omitempty"`
}

// boldHeadingDepth is the depth given to a line that is entirely **bold**.
const boldHeadingDepth = 3

// ParseOutline splits lightweight markup into a forest of sections. Markdown ATX
// headings (up to ####) and whole-line bold labels start sections; everything
// else, tables and lists included, stays opaque body text.
func ParseOutline(text string) Outline {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var out Outline
	var stack []*Section
	var current *Section
	var body []string

	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		body = nil
		if current == nil {
			out.Preamble = joined
			return
		}
		current.Content = joined
		current.WordCount = len(strings.Fields(joined))
	}

	for _, line := range lines {
		depth, title, ok := parseHeading(line)
		if !ok {
			body = append(body, line)
			continue
		}
		flush()

		node := &Section{Title: title, Depth: depth}
		for len(stack) > 0 && stack[len(stack)-1].Depth >= depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			node.Path = title
			out.Sections = append(out.Sections, node)
		} else {
			parent := stack[len(stack)-1]
			node.Path = parent.Path + " / " + title
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
		current = node
	}
	flush()

	return out
}

// parseHeading recognises "# Title" .. "#### Title" and "**Title**" lines.
func parseHeading(line string) (depth int, title string, ok bool) {
	for d := 4; d >= 1; d-- {
		prefix := strings.Repeat("#", d) + " "
		if strings.HasPrefix(line, prefix) {
			return d, strings.TrimSpace(line[len(prefix):]), true
		}
	}
	trimmed := strings.TrimSpace(line)
	if len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**") {
		inner := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		if inner != "" && !strings.Contains(inner, "**") {
			return boldHeadingDepth, strings.TrimSuffix(inner, ":"), true
		}
	}
	return 0, "", false
}

// Walk visits every section depth-first in document order.
func (o Outline) Walk(fn func(*Section)) {
	var visit func([]*Section)
	visit = func(nodes []*Section) {
		for _, n := range nodes {
			fn(n)
			visit(n.Children)
		}
	}
	visit(o.Sections)
}
