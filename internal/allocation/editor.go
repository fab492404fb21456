package allocation

import (
	"emctl/internal/catalog"
	"emctl/internal/model"
)

// Editor is the working set of members for the shown pivot.
//
// The set is keyed by entity id; names only serve display and search, so a
// rename between seed and commit does not lose the member.
type Editor struct {
	members *catalog.Catalog
	seed    []string
	working []string
	index   map[string]bool
	editing bool
}

func NewEditor(members *catalog.Catalog) *Editor {
	e := &Editor{members: members}
	e.Seed(nil)
	return e
}

func (e *Editor) setCatalog(c *catalog.Catalog) {
	e.members = c
}

func (e *Editor) Catalog() *catalog.Catalog { return e.members }

// Seed replaces the working set wholesale and records it as the revert point.
func (e *Editor) Seed(ids []string) {
	e.seed = dedupe(ids)
	e.reset()
}

func (e *Editor) reset() {
	e.working = append([]string(nil), e.seed...)
	e.index = make(map[string]bool, len(e.working))
	for _, id := range e.working {
		e.index[id] = true
	}
}

func (e *Editor) SetEditing(on bool) { e.editing = on }

func (e *Editor) Editing() bool { return e.editing }

// Add resolves name in the member catalog and adds it. It reports false when
// not editing or when the name does not resolve; adding a present member is a no-op.
func (e *Editor) Add(name string) bool {
	if !e.editing {
		return false
	}
	ent, ok := e.members.ByName(name)
	if !ok {
		return false
	}
	e.AddID(ent.ID)
	return true
}

// Remove drops the member called name, if any.
func (e *Editor) Remove(name string) bool {
	if !e.editing {
		return false
	}
	ent, ok := e.members.ByName(name)
	if !ok {
		return false
	}
	e.RemoveID(ent.ID)
	return true
}

func (e *Editor) AddID(id string) {
	if !e.editing || id == "" || e.index[id] {
		return
	}
	e.working = append(e.working, id)
	e.index[id] = true
}

func (e *Editor) RemoveID(id string) {
	if !e.editing || !e.index[id] {
		return
	}
	delete(e.index, id)
	for i, w := range e.working {
		if w == id {
			e.working = append(e.working[:i], e.working[i+1:]...)
			break
		}
	}
}

// Cancel discards edits, restoring the last seed, and leaves edit mode.
func (e *Editor) Cancel() {
	e.reset()
	e.editing = false
}

func (e *Editor) Contains(id string) bool { return e.index[id] }

// IDs returns the working set in insertion order.
func (e *Editor) IDs() []string {
	return append([]string(nil), e.working...)
}

// Names returns display names of resolvable members in catalog order.
func (e *Editor) Names() []string {
	return e.members.Names(e.working)
}

// Entities is Names with ids attached.
func (e *Editor) Entities() []model.Entity {
	out := make([]model.Entity, 0, len(e.working))
	for _, ent := range e.members.All() {
		if e.index[ent.ID] {
			out = append(out, ent)
		}
	}
	return out
}

// Candidates lists catalog entries matching query that are not members yet.
func (e *Editor) Candidates(query string) []model.Entity {
	return e.members.Filter(query, e.index)
}

// Dirty reports whether the working set differs from the seed.
func (e *Editor) Dirty() bool {
	if len(e.working) != len(e.seed) {
		return true
	}
	for _, id := range e.seed {
		if !e.index[id] {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
