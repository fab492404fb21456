package cli

import (
	"fmt"
	"strings"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type ambiguousError struct {
	kind    string
	name    string
	matches []string
}

func (e ambiguousError) Error() string {
	return fmt.Sprintf("%s name %q is ambiguous (ids: %s); pass the id instead", e.kind, e.name, strings.Join(e.matches, ", "))
}

func errAmbiguous(kind, name string, matches []string) error {
	return ambiguousError{kind: kind, name: name, matches: matches}
}

type noCompanyError struct {
	choices []string
}

func (e noCompanyError) Error() string {
	if len(e.choices) == 0 {
		return "no company available for this account"
	}
	return fmt.Sprintf("no company selected; pass --company or set EMCTL_COMPANY (one of: %s)", strings.Join(e.choices, ", "))
}
