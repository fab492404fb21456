package allocation

import (
	"strings"

	"emctl/internal/catalog"
	"emctl/internal/model"
)

// Selector holds the pivot choice: which side is the pivot and the typed pivot name.
// Typing never fetches anything; the controller's Show does.
type Selector struct {
	relation  Relation
	catalogs  catalog.Set
	mode      Mode
	pivotName string
}

func NewSelector(r Relation, catalogs catalog.Set) *Selector {
	return &Selector{relation: r, catalogs: catalogs, mode: ByA}
}

func (s *Selector) Mode() Mode { return s.mode }

func (s *Selector) PivotName() string { return s.pivotName }

// SelectMode switches the pivot side and clears the typed name.
func (s *Selector) SelectMode(m Mode) {
	s.mode = m
	s.pivotName = ""
}

func (s *Selector) SetPivotName(text string) {
	s.pivotName = text
}

func (s *Selector) setCatalogs(c catalog.Set) {
	s.catalogs = c
}

func (s *Selector) PivotCatalog() *catalog.Catalog {
	return s.catalogs.For(s.relation.PivotKind(s.mode))
}

func (s *Selector) MemberCatalog() *catalog.Catalog {
	return s.catalogs.For(s.relation.MemberKind(s.mode))
}

// Suggestions lists pivot candidates matching the typed text.
func (s *Selector) Suggestions() []model.Entity {
	return s.PivotCatalog().Filter(s.pivotName, nil)
}

// Resolve maps the typed text to a pivot entity: exact name first, then id.
func (s *Selector) Resolve() (model.Entity, bool) {
	text := strings.TrimSpace(s.pivotName)
	if text == "" {
		return model.Entity{}, false
	}
	c := s.PivotCatalog()
	if e, ok := c.ByName(text); ok {
		return e, true
	}
	if e, ok := c.ByName(s.pivotName); ok {
		return e, true
	}
	return c.ByID(text)
}
