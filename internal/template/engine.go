package template

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders challenge text with Go templates and the sprig function
// library. Templates reference variables as {{ .name }}.
type Engine struct {
	funcs           template.FuncMap
	variablePattern *regexp.Regexp
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		funcs:           sprig.TxtFuncMap(),
		variablePattern: regexp.MustCompile(`\{\{[^}]*?\.([a-zA-Z_][a-zA-Z0-9_]*)[^}]*\}\}`),
	}
}

// Render executes src against vars. Strings without template actions are
// returned unchanged; a reference to a missing variable is an error.
func (e *Engine) Render(src string, vars map[string]interface{}) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}
	tmpl, err := template.New("challenge").Option("missingkey=error").Funcs(e.funcs).Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", src, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", src, err)
	}
	return buf.String(), nil
}

// RenderAll renders every string in place, stopping at the first error.
func (e *Engine) RenderAll(vars map[string]interface{}, targets ...*string) error {
	for _, t := range targets {
		out, err := e.Render(*t, vars)
		if err != nil {
			return err
		}
		*t = out
	}
	return nil
}

// ExtractVariables returns the sorted variable names referenced by src.
func (e *Engine) ExtractVariables(src string) []string {
	seen := make(map[string]bool)
	for _, match := range e.variablePattern.FindAllStringSubmatch(src, -1) {
		seen[match[1]] = true
	}
	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// ValidateContext ensures all variables referenced by src are present
func (e *Engine) ValidateContext(src string, vars map[string]interface{}) error {
	var missingVars []string
	for _, name := range e.ExtractVariables(src) {
		if _, exists := vars[name]; !exists {
			missingVars = append(missingVars, name)
		}
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing template variables: %s", strings.Join(missingVars, ", "))
	}
	return nil
}
