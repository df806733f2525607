package orders

import (
	"sort"
	"strings"
)

// ValidationError lists the problems with a request, keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
	cause  error
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the store error behind an unresolvable reference, so
// errors.Is(err, db.ErrNotFound) holds for a missing customer.
func (e *ValidationError) Unwrap() error {
	return e.cause
}
