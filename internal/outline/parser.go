package outline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	// DefaultName is used for nodes whose source supplies no title.
	DefaultName = "Untitled"

	priorityStep = 10

	// maxLineSize bounds a single input line. Longer lines fail the parse
	// instead of being truncated.
	maxLineSize = 1 << 20
)

// DefaultTaskMarkers tag a heading as a task. Matching is case-insensitive.
var DefaultTaskMarkers = []string{"[task]", "[任务]"}

var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// ErrEncoding is returned when a document with a strict format hint is not valid text.
var ErrEncoding = errors.New("invalid text encoding")

// ParseError reports a document that could not be parsed at all.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("parse outline: %v", e.Err)
	}
	return fmt.Sprintf("parse outline (%s): %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures a Parser.
type Options struct {
	// TaskMarkers are heading prefixes that tag a node as a task.
	TaskMarkers []string

	// DefaultName replaces missing or empty titles.
	DefaultName string
}

// Parser turns outline documents into Node trees.
type Parser struct {
	markers     []string
	defaultName string
}

// NewParser creates a Parser. Zero-valued options fall back to the defaults.
func NewParser(opts Options) *Parser {
	p := &Parser{
		markers:     DefaultTaskMarkers,
		defaultName: DefaultName,
	}
	if len(opts.TaskMarkers) > 0 {
		p.markers = make([]string, 0, len(opts.TaskMarkers))
		for _, m := range opts.TaskMarkers {
			if m = strings.TrimSpace(m); m != "" {
				p.markers = append(p.markers, m)
			}
		}
	}
	if name := strings.TrimSpace(opts.DefaultName); name != "" {
		p.defaultName = name
	}
	return p
}

var defaultParser = NewParser(Options{})

// Parse parses text with the default options. See Parser.Parse.
func Parse(text string, hint Format) ([]*Node, error) {
	return defaultParser.Parse(text, hint)
}

// ParseText parses a markdown-like outline with the default options.
func ParseText(r io.Reader) ([]*Node, error) {
	return defaultParser.ParseText(r)
}

// ParseText parses a markdown-like outline.
//
// Headings (# to ######) open nodes; a node attaches under the nearest open
// node with a smaller heading level. A heading tagged with a task marker
// becomes a task leaf of its parent when that parent is not itself a task and
// has no children yet; otherwise it is an ordinary child. Bullets ("- " or
// "* ") directly under a heading are acceptance criteria; once the current
// node has children or description text, bullets are description too. Any
// other line is description.
//
// Content before the first heading goes to an implicit node named after
// the default name, so a document without headings yields one flat node.
func (p *Parser) ParseText(r io.Reader) ([]*Node, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	root := newGroupNode("", 0, 0)
	stack := []*Node{root}

	priority := 0
	nextPriority := func() int {
		priority += priorityStep
		return priority
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if matches := headerRegex.FindStringSubmatch(line); matches != nil {
			level := len(matches[1])
			title, isTask := p.stripTaskMarker(strings.TrimSpace(matches[2]))
			if title == "" {
				title = p.defaultName
			}

			// Close sibling and deeper sections
			for len(stack) > 1 && stack[len(stack)-1].Level >= level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1]

			// The synthetic root never takes tasks: they would not be returned.
			if isTask && parent != root && !parent.task && len(parent.Children) == 0 {
				parent.Tasks = append(parent.Tasks, &Node{
					Name:     title,
					Level:    level,
					Priority: nextPriority(),
					task:     true,
				})
				continue
			}

			node := newGroupNode(title, level, nextPriority())
			node.task = isTask
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
			continue
		}

		current := stack[len(stack)-1]
		if current == root {
			current = newGroupNode(p.defaultName, 1, nextPriority())
			root.Children = append(root.Children, current)
			stack = append(stack, current)
		}

		if text, ok := bulletText(line); ok {
			// Only bullets right after the heading count as criteria.
			if len(current.Children) == 0 && current.Description == "" {
				current.AcceptanceCriteria += text + "\n"
			} else {
				current.Description += text + "\n"
			}
			continue
		}

		current.Description += line + "\n"
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return root.Children, nil
}

// stripTaskMarker removes a leading task marker from a heading title.
func (p *Parser) stripTaskMarker(title string) (string, bool) {
	for _, marker := range p.markers {
		if len(title) >= len(marker) && strings.EqualFold(title[:len(marker)], marker) {
			return strings.TrimSpace(title[len(marker):]), true
		}
	}
	return title, false
}

func bulletText(line string) (string, bool) {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:]), true
	}
	return "", false
}
