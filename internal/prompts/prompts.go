// Package prompts loads prompt templates from disk and renders them with
// named variable substitution.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// varPattern matches {{name}} placeholders.
var varPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// Template is a loaded prompt template.
type Template struct {
	Name string
	Text string
}

// Render substitutes {{name}} placeholders from vars. A placeholder with no
// matching variable is an error; unused variables are ignored.
func (t Template) Render(vars map[string]string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q missing variables: %s", t.Name, strings.Join(missing, ", "))
	}
	return out, nil
}

// Loader reads .txt templates from a directory. Templates are cached after
// first load.
type Loader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]Template
}

// NewLoader creates a loader over the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]Template),
	}
}

// Load returns the named template, reading <dir>/<name>.txt on first use.
func (l *Loader) Load(name string) (Template, error) {
	l.mu.RLock()
	tmpl, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	path := filepath.Join(l.dir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("failed to load prompt template %q; %w", name, err)
	}

	tmpl = Template{Name: name, Text: string(data)}
	l.mu.Lock()
	l.cache[name] = tmpl
	l.mu.Unlock()
	return tmpl, nil
}

// Render loads the named template and renders it in one call.
func (l *Loader) Render(name string, vars map[string]string) (string, error) {
	tmpl, err := l.Load(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}
