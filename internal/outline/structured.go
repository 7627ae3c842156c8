package outline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Shape identifies which structured layout a decoded document follows.
type Shape int

const (
	// ShapeUnknown is any value that is neither an object nor a list.
	ShapeUnknown Shape = iota

	// ShapeList is a top-level list; every element is a root node.
	ShapeList

	// ShapeAggregate is a container object ("stories"/"backlogs", or a
	// backlog-typed object with children). Only its contents become roots.
	ShapeAggregate

	// ShapeChildren is an object holding a "children" list. The children
	// become roots; the object's own fields are dropped.
	ShapeChildren

	// ShapeAssistant is the epic/features/user_stories/tasks layout
	// produced by chat assistants.
	ShapeAssistant

	// ShapeNode is a single node object.
	ShapeNode
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeAggregate:
		return "aggregate"
	case ShapeChildren:
		return "children"
	case ShapeAssistant:
		return "assistant"
	case ShapeNode:
		return "node"
	default:
		return "unknown"
	}
}

// aggregateTypes are "type" tags of container objects that are not
// materialized themselves.
var aggregateTypes = map[string]bool{
	"backlog":         true,
	"product_backlog": true,
	"project":         true,
	"aggregate":       true,
}

// objectShapes are evaluated in order; the first match wins.
var objectShapes = []struct {
	shape Shape
	match func(obj map[string]any) bool
}{
	{ShapeAggregate, func(obj map[string]any) bool {
		if hasList(obj, "stories") || hasList(obj, "backlogs") {
			return true
		}
		tag, _ := obj["type"].(string)
		return aggregateTypes[strings.ToLower(tag)] && hasList(obj, "children")
	}},
	{ShapeChildren, func(obj map[string]any) bool {
		return hasList(obj, "children")
	}},
	{ShapeAssistant, func(obj map[string]any) bool {
		return hasList(obj, "features")
	}},
	{ShapeNode, func(map[string]any) bool { return true }},
}

// Classify reports the shape of a decoded JSON or YAML value.
func Classify(v any) Shape {
	if _, ok := v.([]any); ok {
		return ShapeList
	}
	obj, ok := asObject(v)
	if !ok {
		return ShapeUnknown
	}
	for _, s := range objectShapes {
		if s.match(obj) {
			return s.shape
		}
	}
	return ShapeUnknown
}

// Parse parses a document using hint to choose the input mode.
//
// Text that decodes as a JSON object or list is treated as structured input
// whatever the hint says. YAML is only tried under the yaml hint, since any
// plain text is a valid YAML scalar. Structured input that fails to decode
// falls back to the text outline algorithm.
func (p *Parser) Parse(text string, hint Format) ([]*Node, error) {
	if hint == FormatYAML {
		var v any
		if err := yaml.Unmarshal([]byte(text), &v); err == nil {
			if nodes, ok := p.ParseStructured(v); ok {
				return nodes, nil
			}
		}
	} else if looksLikeJSON(text) {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			if nodes, ok := p.ParseStructured(v); ok {
				return nodes, nil
			}
		}
	}

	nodes, err := p.ParseText(strings.NewReader(text))
	if err != nil {
		return nil, &ParseError{Format: hint, Err: err}
	}
	return nodes, nil
}

// ParseStructured normalizes a decoded JSON or YAML value into root nodes.
// It returns false when v is not an object or list.
func (p *Parser) ParseStructured(v any) ([]*Node, bool) {
	n := normalizer{defaultName: p.defaultName}

	switch Classify(v) {
	case ShapeList:
		return n.nodes(v, false), true
	case ShapeAggregate:
		obj, _ := asObject(v)
		roots := n.nodes(obj["backlogs"], false)
		roots = append(roots, n.nodes(obj["stories"], false)...)
		if len(roots) == 0 {
			roots = n.nodes(obj["children"], false)
		}
		return roots, true
	case ShapeChildren:
		obj, _ := asObject(v)
		return n.nodes(obj["children"], false), true
	case ShapeAssistant:
		obj, _ := asObject(v)
		return n.assistant(obj), true
	case ShapeNode:
		obj, _ := asObject(v)
		return []*Node{n.node(obj, 0, false)}, true
	default:
		return nil, false
	}
}

type normalizer struct {
	defaultName string
}

// nodes normalizes a list value. Strings become nodes with that name;
// elements that are neither objects nor strings are skipped.
func (n normalizer) nodes(v any, tasks bool) []*Node {
	list, _ := v.([]any)
	out := make([]*Node, 0, len(list))
	for _, item := range list {
		idx := len(out)
		if name, ok := item.(string); ok {
			out = append(out, n.node(map[string]any{"name": name}, idx, tasks))
			continue
		}
		if obj, ok := asObject(item); ok {
			out = append(out, n.node(obj, idx, tasks))
		}
	}
	return out
}

// node fills defaults for one object and recurses into children and tasks.
// Task leaves get neither.
func (n normalizer) node(obj map[string]any, index int, leaf bool) *Node {
	node := &Node{
		Name:                 n.name(obj, "name", "title"),
		Description:          stringField(obj, "description"),
		AcceptanceCriteria:   criteria(obj["acceptance_criteria"]),
		Priority:             (index + 1) * priorityStep,
		EstimatedStoryPoints: numberField(obj, "estimated_story_points", "story_points"),
		EstimatedHours:       numberField(obj, "estimated_hours", "hours"),
	}
	if p, ok := toNumber(obj["priority"]); ok {
		node.Priority = int(math.Round(p))
	}
	if leaf {
		return node
	}
	node.Children = n.nodes(obj["children"], false)
	node.Tasks = n.nodes(obj["tasks"], true)
	return node
}

// assistant flattens the epic -> features -> user_stories -> tasks layout.
// A named epic becomes the single root; otherwise features are the roots.
func (n normalizer) assistant(obj map[string]any) []*Node {
	featureList, _ := obj["features"].([]any)
	features := make([]*Node, 0, len(featureList))
	for _, item := range featureList {
		f, ok := asObject(item)
		if !ok {
			continue
		}
		feature := newGroupNode(n.name(f, "feature_name", "name", "title"), 0, (len(features)+1)*priorityStep)
		feature.Description = stringField(f, "description", "feature_description")
		if id, ok := toNumber(f["feature_id"]); ok {
			feature.Priority = int(math.Round(id)) * priorityStep
		}

		stories := f["user_stories"]
		if stories == nil {
			stories = f["stories"]
		}
		storyList, _ := stories.([]any)
		for _, s := range storyList {
			so, ok := asObject(s)
			if !ok {
				continue
			}
			story := newGroupNode(n.name(so, "story_name", "name", "title"), 0, (len(feature.Children)+1)*priorityStep)
			story.Description = stringField(so, "description", "story_description")
			story.AcceptanceCriteria = criteria(so["acceptance_criteria"])
			story.EstimatedStoryPoints = numberField(so, "story_points", "estimated_story_points")
			if p, ok := toNumber(so["priority"]); ok {
				story.Priority = int(math.Round(p))
			}

			taskList, _ := so["tasks"].([]any)
			for _, t := range taskList {
				to, ok := asObject(t)
				if !ok {
					continue
				}
				desc := stringField(to, "description", "task_description")
				if role := stringField(to, "role", "assignee_role"); role != "" {
					desc = fmt.Sprintf("[%s] %s", role, desc)
				}
				story.Tasks = append(story.Tasks, &Node{
					Name:           n.name(to, "task_name", "name", "title"),
					Description:    desc,
					Priority:       (len(story.Tasks) + 1) * priorityStep,
					EstimatedHours: numberField(to, "estimated_hours", "hours"),
					task:           true,
				})
			}
			feature.Children = append(feature.Children, story)
		}
		features = append(features, feature)
	}

	epicName := stringField(obj, "epic_name", "epic")
	if epicName == "" {
		return features
	}
	epic := newGroupNode(epicName, 0, priorityStep)
	epic.Description = stringField(obj, "epic_description", "description")
	epic.Children = features
	return []*Node{epic}
}

func (n normalizer) name(obj map[string]any, keys ...string) string {
	if name := strings.TrimSpace(stringField(obj, keys...)); name != "" {
		return name
	}
	return n.defaultName
}

// criteria accepts either a block of text or a list of criteria; list
// entries are written one per line, matching the text parser.
func criteria(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var b strings.Builder
		for _, item := range c {
			text := strings.TrimSpace(scalarString(item))
			if text == "" {
				continue
			}
			b.WriteString(text)
			b.WriteString("\n")
		}
		return b.String()
	default:
		return ""
	}
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func numberField(obj map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := toNumber(obj[k]); ok {
			return f
		}
	}
	return 0.0
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asObject accepts JSON objects and YAML mappings, including mappings with
// non-string keys.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func hasList(obj map[string]any, key string) bool {
	_, ok := obj[key].([]any)
	return ok
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
