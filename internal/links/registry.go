// Package links holds the table of URL shapes the site uses when it stores a
// notification pointing at a content item. Each content kind registers its
// templates via init(), so new kinds can add their link shape without
// touching the cleanup logic.
package links

import (
	"fmt"

	"github.com/atelier-studio/admin-service/internal/domain"
)

// Template builds a relative URL for a content identifier.
type Template func(id string) string

var templates = map[domain.Kind][]Template{}

// generic templates apply to every kind in addition to kind-specific ones.
var generic []Template

// Register binds a template to a content kind.
// Should be called from init() in kinds.go. Panics on a nil template to
// catch registration mistakes early.
func Register(kind domain.Kind, t Template) {
	if t == nil {
		panic("links: nil template registered for kind " + string(kind))
	}
	templates[kind] = append(templates[kind], t)
}

// RegisterGeneric binds a template that applies regardless of kind.
func RegisterGeneric(t Template) {
	if t == nil {
		panic("links: nil generic template registered")
	}
	generic = append(generic, t)
}

// Candidates returns every candidate link string for one deleted item:
// the kind-specific templates followed by the generic ones. Matching against
// stored notifications is exact, so each candidate must reproduce the link
// byte for byte.
func Candidates(kind domain.Kind, id string) []string {
	ts := templates[kind]
	out := make([]string, 0, len(ts)+len(generic))
	for _, t := range ts {
		out = append(out, t(id))
	}
	for _, t := range generic {
		out = append(out, t(id))
	}
	return out
}

// sprintf wraps a format string with one %s verb as a Template.
func sprintf(format string) Template {
	return func(id string) string { return fmt.Sprintf(format, id) }
}
