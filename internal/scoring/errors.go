package scoring

import (
	"fmt"
	"strings"
)

// Definition kinds reported by DefinitionError.
const (
	KindChallenge = "challenge"
	KindExam      = "exam"
	KindLibrary   = "library"
)

// DefinitionError is one problem found in a challenge library entry.
type DefinitionError struct {
	Kind    string
	ID      string
	Field   string
	Message string
}

func (e DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.ID != "" {
		fmt.Fprintf(&b, " %q", e.ID)
	}
	b.WriteString(": ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// DefinitionErrors collects every problem in one pass so an author can fix
// a file without reloading it once per mistake.
type DefinitionErrors []DefinitionError

func (d DefinitionErrors) Error() string {
	switch len(d) {
	case 0:
		return "no definition errors"
	case 1:
		return d[0].Error()
	}
	msgs := make([]string, len(d))
	for i, e := range d {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d definition errors: %s", len(d), strings.Join(msgs, "; "))
}

// Fields returns the offending field paths in report order.
func (d DefinitionErrors) Fields() []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Field
	}
	return out
}

func (d *DefinitionErrors) add(kind, id, field, format string, args ...any) {
	*d = append(*d, DefinitionError{
		Kind:    kind,
		ID:      id,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (d DefinitionErrors) orNil() error {
	if len(d) == 0 {
		return nil
	}
	return d
}
