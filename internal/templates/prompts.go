// Package templates loads the prompt sets used for AI analyses. A prompt
// set is a YAML file naming a system message and one text/template per
// analysis kind; the built-in set is embedded.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Kinds lists the analysis kinds a prompt may target.
var Kinds = []string{"quality", "requirement", "code_review", "sprint_review"}

//go:embed prompts.yaml
var defaultPrompts []byte

var defaultSet = mustParse(defaultPrompts)

// PromptTemplate is the prompt for one analysis kind.
type PromptTemplate struct {
	Kind     string `yaml:"kind"`
	Template string `yaml:"template"`
}

// PromptSet is a named collection of analysis prompts.
type PromptSet struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	System      string           `yaml:"system"`
	Prompts     []PromptTemplate `yaml:"prompts"`

	parsed map[string]*template.Template
}

// Default returns the embedded prompt set.
func Default() *PromptSet {
	return defaultSet
}

// LoadPromptSet reads and validates a YAML prompt set. Kinds the file does
// not define fall back to the built-in prompts, and so does an empty
// system message.
func LoadPromptSet(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	set, err := ParsePromptSet(data)
	if err != nil {
		return nil, err
	}
	set.inherit(defaultSet)
	return set, nil
}

// ParsePromptSet decodes and validates YAML prompt set data.
func ParsePromptSet(data []byte) (*PromptSet, error) {
	var set PromptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &set, nil
}

func mustParse(data []byte) *PromptSet {
	set, err := ParsePromptSet(data)
	if err != nil {
		panic(fmt.Sprintf("templates: built-in prompts: %v", err))
	}
	return set
}

// Validate checks the set's structure and compiles every template.
func (s *PromptSet) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("prompt set name is required")
	}
	if len(s.Prompts) == 0 {
		return fmt.Errorf("prompt set must have at least one prompt")
	}

	parsed := make(map[string]*template.Template, len(s.Prompts))
	for i, p := range s.Prompts {
		if !validKind(p.Kind) {
			return fmt.Errorf("prompt %d: invalid kind %q (must be %s)", i, p.Kind, strings.Join(Kinds, ", "))
		}
		if _, dup := parsed[p.Kind]; dup {
			return fmt.Errorf("duplicate prompt kind: %s", p.Kind)
		}
		if strings.TrimSpace(p.Template) == "" {
			return fmt.Errorf("prompt %s: template is required", p.Kind)
		}

		tmpl, err := template.New(p.Kind).Funcs(funcs).Option("missingkey=error").Parse(p.Template)
		if err != nil {
			return fmt.Errorf("prompt %s: %w", p.Kind, err)
		}
		parsed[p.Kind] = tmpl
	}
	s.parsed = parsed
	return nil
}

// inherit fills kinds and the system message missing from s with base's.
func (s *PromptSet) inherit(base *PromptSet) {
	if strings.TrimSpace(s.System) == "" {
		s.System = base.System
	}
	for _, p := range base.Prompts {
		if _, ok := s.parsed[p.Kind]; !ok {
			s.Prompts = append(s.Prompts, p)
			s.parsed[p.Kind] = base.parsed[p.Kind]
		}
	}
}

// Has reports whether the set defines a prompt for kind.
func (s *PromptSet) Has(kind string) bool {
	_, ok := s.parsed[kind]
	return ok
}

// Render executes the prompt for kind against data.
func (s *PromptSet) Render(kind string, data any) (string, error) {
	tmpl, ok := s.parsed[kind]
	if !ok {
		return "", fmt.Errorf("no prompt for kind %q", kind)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", kind, err)
	}
	return b.String(), nil
}

var funcs = template.FuncMap{
	// num prints a float without trailing zeros: 5, 2.5.
	"num": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

func validKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
