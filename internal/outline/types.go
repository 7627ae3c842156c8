// Package outline converts uploaded requirement documents into a tree of
// backlog, story and task nodes.
//
// Two input modes are supported: a markdown-like outline (headings, bullets,
// free text) and structured JSON or YAML in several loosely specified shapes.
// The parser keeps no state between calls; every Parse owns its stack and
// priority counter, so a single Parser may be shared across goroutines.
package outline

import (
	"encoding/json"
	"strings"
)

// Format is the lowercase, extension-derived hint for an input document.
type Format string

// Known input formats. Any other value is treated as plain text.
const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// FormatFromExt maps a file extension (with or without the leading dot) to a Format.
func FormatFromExt(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "txt", "text":
		return FormatText
	case "md", "markdown":
		return FormatMarkdown
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return Format(ext)
	}
}

// Known reports whether f is one of the formats with a strict text encoding.
func (f Format) Known() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// Node is one element of a parsed outline.
//
// A node with children is a grouping node (epic or feature); a node without
// children is a user story. Entries of Tasks are task leaves and never carry
// Children or Tasks of their own.
type Node struct {
	Name                 string  // Display title
	Description          string  // Free text from non-heading lines
	AcceptanceCriteria   string  // Bullets directly under a heading
	Priority             int     // 10, 20, 30... in source order unless supplied
	EstimatedStoryPoints float64 // Story nodes only
	EstimatedHours       float64 // Task leaves only
	Children             []*Node // Nested grouping or story nodes
	Tasks                []*Node // Task leaves attached to this node

	// Level is the heading depth (1-6) during text parsing. It is zero for
	// nodes built from structured input and is never serialized.
	Level int

	task bool // tagged with a task marker
}

// IsLeaf reports whether n has no nested children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// IsTask reports whether n is a task leaf (no children or tasks slices at all).
func (n *Node) IsTask() bool {
	return n.Children == nil && n.Tasks == nil
}

// Walk visits n and its descendants depth-first in document order.
// Children are visited before tasks.
func (n *Node) Walk(fn func(node, parent *Node)) {
	walk(n, nil, fn)
}

func walk(n, parent *Node, fn func(node, parent *Node)) {
	fn(n, parent)
	for _, child := range n.Children {
		walk(child, n, fn)
	}
	for _, task := range n.Tasks {
		walk(task, n, fn)
	}
}

// Count returns the number of nodes in the forest, task leaves included.
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		n.Walk(func(*Node, *Node) { total++ })
	}
	return total
}

type nodeJSON struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	AcceptanceCriteria   string   `json:"acceptance_criteria"`
	Priority             int      `json:"priority"`
	EstimatedStoryPoints float64  `json:"estimated_story_points"`
	EstimatedHours       float64  `json:"estimated_hours"`
	Children             *[]*Node `json:"children,omitempty"`
	Tasks                *[]*Node `json:"tasks,omitempty"`
}

// MarshalJSON emits children and tasks for every non-task node, even when
// empty, and omits both for task leaves.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		Name:                 n.Name,
		Description:          n.Description,
		AcceptanceCriteria:   n.AcceptanceCriteria,
		Priority:             n.Priority,
		EstimatedStoryPoints: n.EstimatedStoryPoints,
		EstimatedHours:       n.EstimatedHours,
	}
	if !n.IsTask() {
		children, tasks := n.Children, n.Tasks
		if children == nil {
			children = []*Node{}
		}
		if tasks == nil {
			tasks = []*Node{}
		}
		out.Children = &children
		out.Tasks = &tasks
	}
	return json.Marshal(out)
}

func newGroupNode(name string, level, priority int) *Node {
	return &Node{
		Name:     name,
		Level:    level,
		Priority: priority,
		Children: make([]*Node, 0),
		Tasks:    make([]*Node, 0),
	}
}
