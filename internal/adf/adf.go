// Package adf extracts plain text from Atlassian Document Format, the
// nested JSON structure Jira Cloud uses for rich text fields.
package adf

import (
	"encoding/json"
	"strings"
)

// Node is one node of an ADF document tree. Fields not listed here
// (version, collaborative-editing identifiers such as attrs.localId, mark
// metadata) are intentionally not extracted: only human-authored text may
// appear in the output.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Extract flattens an ADF document (raw JSON) into plain text. A plain
// string payload is returned trimmed as-is. Unknown node types are skipped,
// never fatal. Empty or absent input yields "".
func Extract(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	// Jira server instances still return wiki-markup strings here.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var doc Node
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return ExtractNode(doc)
}

// ExtractNode flattens an already-decoded ADF node tree.
func ExtractNode(doc Node) string {
	var parts []string
	walk(doc, &parts)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func walk(n Node, parts *[]string) {
	switch n.Type {
	case "paragraph", "heading", "codeBlock":
		var line strings.Builder
		inline(n.Content, &line)
		*parts = append(*parts, line.String())

	case "bulletList", "orderedList":
		for _, item := range n.Content {
			var line strings.Builder
			line.WriteString("• ")
			inline(item.Content, &line)
			*parts = append(*parts, line.String())
		}

	case "blockquote", "panel", "expand", "doc", "tableRow", "table", "tableCell", "tableHeader", "listItem", "nestedExpand":
		for _, child := range n.Content {
			walk(child, parts)
		}

	case "rule":
		*parts = append(*parts, "---")

	default:
		// Unknown block type: descend so nested text is not lost.
		for _, child := range n.Content {
			walk(child, parts)
		}
	}
}

// inline renders the inline children of a block node onto one line.
// Marks (bold, italic, code, links) are unwrapped to their text; mentions
// and emoji resolve to their visible label.
func inline(nodes []Node, out *strings.Builder) {
	for _, n := range nodes {
		switch n.Type {
		case "text":
			out.WriteString(n.Text)
		case "mention", "emoji", "status", "date":
			out.WriteString(visibleLabel(n.Attrs))
		case "hardBreak":
			out.WriteString("\n")
		case "inlineCard":
			if url, ok := n.Attrs["url"].(string); ok {
				out.WriteString(url)
			}
		default:
			if n.Text != "" {
				out.WriteString(n.Text)
			}
			inline(n.Content, out)
		}
	}
}

// visibleLabel returns the human-visible label of an inline node. Internal
// identifiers (attrs.id, attrs.localId) are never returned.
func visibleLabel(attrs map[string]any) string {
	for _, key := range []string{"text", "shortName", "timestamp"} {
		if v, ok := attrs[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
