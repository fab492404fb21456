// Package allocation implements the many-to-many allocation editor: pick a
// pivot entity on one side of a relation, load its members, edit them as a
// working set and commit the full membership back with replace semantics.
package allocation

import (
	"fmt"
	"strings"

	"emctl/internal/model"
)

// Mode selects which side of a relation is the pivot.
type Mode int

const (
	// ByA pivots on the relation's A side; members come from B.
	ByA Mode = iota
	// ByB pivots on the relation's B side; members come from A.
	ByB
)

func (m Mode) Other() Mode {
	if m == ByA {
		return ByB
	}
	return ByA
}

func (m Mode) String() string {
	if m == ByB {
		return "by-b"
	}
	return "by-a"
}

// Endpoint is one direction of a relation on the wire:
// GET/PATCH /company/{id}/{Path}/{pivotId} with body {Field: [...]}.
type Endpoint struct {
	Path  string
	Field string
	// Updated formats the success notice; %s is the pivot name.
	Updated string
}

// Relation describes an assignment relation between two entity kinds.
type Relation struct {
	Name string
	A    model.Kind
	B    model.Kind
	ByA  Endpoint
	ByB  Endpoint
}

var (
	// UserProject: which users are on a project / which projects a user is on.
	UserProject = Relation{
		Name: "user-project",
		A:    model.KindProject,
		B:    model.KindUser,
		ByA:  Endpoint{Path: "project-allocation", Field: "userIds", Updated: "Project allocations %s updated"},
		ByB:  Endpoint{Path: "user-allocation", Field: "projectIds", Updated: "User allocations %s updated"},
	}

	// ActivityProject: which activities a project uses / which projects use an activity.
	ActivityProject = Relation{
		Name: "activity-project",
		A:    model.KindProject,
		B:    model.KindActivity,
		ByA:  Endpoint{Path: "project-activity", Field: "activityIds", Updated: "Project activities assignment %s updated"},
		ByB:  Endpoint{Path: "activity-assignment", Field: "projectIds", Updated: "Activity project assignment %s updated"},
	}
)

func Relations() []Relation {
	return []Relation{UserProject, ActivityProject}
}

func RelationByName(name string) (Relation, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range Relations() {
		if r.Name == name {
			return r, true
		}
		// Accept the reversed spelling too ("project-user").
		if string(r.B)+"-"+string(r.A) == name || string(r.A)+"-"+string(r.B) == name {
			return r, true
		}
	}
	return Relation{}, false
}

func (r Relation) PivotKind(m Mode) model.Kind {
	if m == ByB {
		return r.B
	}
	return r.A
}

func (r Relation) MemberKind(m Mode) model.Kind {
	if m == ByB {
		return r.A
	}
	return r.B
}

func (r Relation) Endpoint(m Mode) Endpoint {
	if m == ByB {
		return r.ByB
	}
	return r.ByA
}

// ParseMode maps a kind name ("project", "user", ...) to the mode that pivots on it.
func (r Relation) ParseMode(s string) (Mode, error) {
	k, ok := model.ParseKind(s)
	if !ok {
		return ByA, fmt.Errorf("unknown side %q for relation %s (want %s or %s)", s, r.Name, r.A, r.B)
	}
	switch k {
	case r.A:
		return ByA, nil
	case r.B:
		return ByB, nil
	}
	return ByA, fmt.Errorf("relation %s has no %s side (want %s or %s)", r.Name, k, r.A, r.B)
}

// ModeLabel is the operator-facing name of a mode, e.g. "by project".
func (r Relation) ModeLabel(m Mode) string {
	return "by " + string(r.PivotKind(m))
}
