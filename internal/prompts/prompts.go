// Package prompts loads the generation prompt templates. Defaults are embedded
// in the binary; a directory of same-named .txt files overrides them.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"contractrag/internal/domain"
)

// Well-known template names.
const (
	Clauses    = "clauses"
	RedFlags   = "redflags"
	RagQA      = "rag_qa"
	Summarize  = "summarize"
	Definition = "definition"
)

//go:embed templates/*.txt
var defaults embed.FS

// required lists the fields each template must reference. Downstream parsers
// depend on these names.
var required = map[string][]string{
	Clauses:    {"text", "target_clauses"},
	RedFlags:   {"clauses"},
	RagQA:      {"context", "question"},
	Summarize:  {"text"},
	Definition: {"term", "sentence"},
}

// Store holds validated templates.
type Store struct {
	templates map[string]string
}

// NewStore loads the embedded templates and applies overrides from dir when
// dir is non-empty. An override that drops a required field is a
// domain.ErrConfig error.
func NewStore(dir string) (*Store, error) {
	s := &Store{templates: make(map[string]string, len(required))}
	for name := range required {
		data, err := defaults.ReadFile("templates/" + name + ".txt")
		if err != nil {
			return nil, fmt.Errorf("embedded template %s: %w", name, err)
		}
		s.templates[name] = string(data)
	}
	if dir == "" {
		return s, nil
	}
	for name := range required {
		data, err := os.ReadFile(filepath.Join(dir, name+".txt"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: reading prompt %s: %v", domain.ErrConfig, name, err)
		}
		if err := validate(name, string(data)); err != nil {
			return nil, err
		}
		s.templates[name] = string(data)
	}
	return s, nil
}

// Default returns a store with only the embedded templates.
func Default() *Store {
	s, err := NewStore("")
	if err != nil {
		panic(err)
	}
	return s
}

func validate(name, tmpl string) error {
	var missing []string
	for _, f := range required[name] {
		if !strings.Contains(tmpl, "{"+f+"}") {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: prompt %s is missing required fields %s", domain.ErrConfig, name, strings.Join(missing, ", "))
	}
	return nil
}

// Template returns the raw template text.
func (s *Store) Template(name string) (string, bool) {
	t, ok := s.templates[name]
	return t, ok
}

// Render substitutes {field} placeholders in one pass, so field values that
// contain braces are left alone.
func (s *Store) Render(name string, fields map[string]string) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", fields[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}
