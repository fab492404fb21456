// Package catalog holds the read-only entity lists that back name search and
// name <-> id resolution for one side of an allocation relation.
package catalog

import (
	"strings"

	"emctl/internal/model"
)

// Catalog is immutable once built. A reload produces a new Catalog with a higher version.
type Catalog struct {
	kind     model.Kind
	version  uint64
	entities []model.Entity
	byID     map[string]int
	byName   map[string]int
	// dupNames holds names carried by more than one entity; they never resolve.
	dupNames map[string]bool
}

// New copies entities in the given order. Entities with an empty id are skipped.
func New(kind model.Kind, version uint64, entities []model.Entity) *Catalog {
	c := &Catalog{
		kind:     kind,
		version:  version,
		entities: make([]model.Entity, 0, len(entities)),
		byID:     make(map[string]int, len(entities)),
		byName:   make(map[string]int, len(entities)),
		dupNames: map[string]bool{},
	}
	for _, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			continue
		}
		if _, seen := c.byID[e.ID]; seen {
			continue
		}
		idx := len(c.entities)
		c.entities = append(c.entities, e)
		c.byID[e.ID] = idx
		if _, taken := c.byName[e.Name]; taken {
			c.dupNames[e.Name] = true
			continue
		}
		c.byName[e.Name] = idx
	}
	return c
}

// Empty returns a catalog with no entities.
func Empty(kind model.Kind) *Catalog {
	return New(kind, 0, nil)
}

func (c *Catalog) Kind() model.Kind {
	if c == nil {
		return ""
	}
	return c.kind
}

func (c *Catalog) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entities)
}

// All returns the entities in fetch order.
func (c *Catalog) All() []model.Entity {
	if c == nil {
		return nil
	}
	out := make([]model.Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// ByName resolves an exact display name. Unknown names and names shared by
// several entities both fail.
func (c *Catalog) ByName(name string) (model.Entity, bool) {
	if c == nil || c.dupNames[name] {
		return model.Entity{}, false
	}
	idx, ok := c.byName[name]
	if !ok {
		return model.Entity{}, false
	}
	return c.entities[idx], true
}

// Ambiguous reports whether name is carried by more than one entity.
func (c *Catalog) Ambiguous(name string) bool {
	return c != nil && c.dupNames[name]
}

func (c *Catalog) ByID(id string) (model.Entity, bool) {
	if c == nil {
		return model.Entity{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return model.Entity{}, false
	}
	return c.entities[idx], true
}

// Lookup resolves s as an id first and as a display name second.
func (c *Catalog) Lookup(s string) (model.Entity, bool) {
	s = strings.TrimSpace(s)
	if e, ok := c.ByID(s); ok {
		return e, true
	}
	return c.ByName(s)
}

// Filter returns entities whose name contains query (case-insensitive), in
// fetch order, skipping ids present in excluding.
func (c *Catalog) Filter(query string, excluding map[string]bool) []model.Entity {
	if c == nil {
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		if excluding[e.ID] {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Names maps ids to display names in catalog order. Unknown ids are dropped.
func (c *Catalog) Names(ids []string) []string {
	if c == nil {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, e := range c.entities {
		if want[e.ID] {
			out = append(out, e.Name)
		}
	}
	return out
}

// Set bundles the three catalogs of one company.
type Set struct {
	Users      *Catalog
	Projects   *Catalog
	Activities *Catalog
}

func (s Set) For(kind model.Kind) *Catalog {
	switch kind {
	case model.KindUser:
		return s.Users
	case model.KindProject:
		return s.Projects
	case model.KindActivity:
		return s.Activities
	}
	return nil
}
