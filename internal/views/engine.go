// Package views loads the site's HTML templates once at startup and
// renders them by name.
package views

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path/filepath"
	"slices"
)

var (
	// ErrTemplateNotFound is returned by Render for an unknown template name
	ErrTemplateNotFound = errors.New("template not found")
	// ErrNoTemplates is returned by Load when the directory holds no .html files
	ErrNoTemplates = errors.New("no templates found")
	// ErrDuplicateTemplate is returned by Load when two files share a base name
	ErrDuplicateTemplate = errors.New("duplicate template name")
)

// Context holds the variables a template is rendered against
type Context map[string]any

// Engine is an immutable set of parsed templates keyed by file name.
// It is safe for concurrent use.
type Engine struct {
	templates *template.Template
	names     []string
}

// Load parses every .html file below dir. Templates are addressed by their
// base name, e.g. "index.html".
func Load(dir string) (*Engine, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".html" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan templates in %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTemplates, dir)
	}

	// ParseFiles keys by base name; a later file would replace an earlier one
	seen := make(map[string]string, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("%w %q: %s and %s", ErrDuplicateTemplate, base, prev, f)
		}
		seen[base] = f
	}

	tmpl, err := template.New("").
		Funcs(funcMap()).
		Option("missingkey=error").
		ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	slices.Sort(names)

	return &Engine{templates: tmpl, names: names}, nil
}

// Names returns the sorted names of all loaded templates
func (e *Engine) Names() []string {
	return slices.Clone(e.names)
}

// Render executes the named template against ctx. Output is buffered, so a
// failed render never yields partial HTML.
func (e *Engine) Render(name string, ctx Context) (string, error) {
	t := e.templates.Lookup(name)
	if t == nil || name == "" {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
