package clinical

import (
	"math/rand"
	"strings"
)

// AllSpecialties disables the specialty filter.
const AllSpecialties = "ALL"

// Catalog is the read-only collection of case templates. It is shared by
// every spawned patient and never mutated after construction.
type Catalog struct {
	all  []*CaseTemplate
	byID map[string]*CaseTemplate
}

// NewCatalog normalizes the templates and indexes them by id. Templates with
// an empty id are dropped; on duplicate ids the first one wins.
func NewCatalog(templates []CaseTemplate) *Catalog {
	c := &Catalog{
		all:  make([]*CaseTemplate, 0, len(templates)),
		byID: make(map[string]*CaseTemplate, len(templates)),
	}
	for i := range templates {
		tpl := templates[i]
		tpl.Normalize()
		if tpl.ID == "" {
			continue
		}
		if _, dup := c.byID[tpl.ID]; dup {
			continue
		}
		c.all = append(c.all, &tpl)
		c.byID[tpl.ID] = &tpl
	}
	return c
}

// CatalogOrDefault builds a catalog from templates, falling back to the
// built-in cases when nothing usable is left.
func CatalogOrDefault(templates []CaseTemplate) (*Catalog, bool) {
	c := NewCatalog(templates)
	if c.Len() > 0 {
		return c, false
	}
	return NewCatalog(DefaultCases()), true
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.all)
}

// All returns the templates in catalog order.
func (c *Catalog) All() []*CaseTemplate {
	out := make([]*CaseTemplate, len(c.all))
	copy(out, c.all)
	return out
}

// ByID returns the template with the given id, or nil.
func (c *Catalog) ByID(id string) *CaseTemplate {
	return c.byID[id]
}

// Specialties returns the distinct specialties in catalog order.
func (c *Catalog) Specialties() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.all {
		if t.Specialty == "" || seen[t.Specialty] {
			continue
		}
		seen[t.Specialty] = true
		out = append(out, t.Specialty)
	}
	return out
}

// Random picks a template matching pred uniformly. A nil pred matches all.
// Returns nil when nothing matches.
func (c *Catalog) Random(rng *rand.Rand, pred func(*CaseTemplate) bool) *CaseTemplate {
	pool := c.all
	if pred != nil {
		pool = make([]*CaseTemplate, 0, len(c.all))
		for _, t := range c.all {
			if pred(t) {
				pool = append(pool, t)
			}
		}
	}
	if len(pool) == 0 {
		return nil
	}
	return pool[rng.Intn(len(pool))]
}

// Filter is the content filter used when picking the next patient.
type Filter struct {
	Specialty     string `json:"specialty"`
	MaxDifficulty int    `json:"maxDifficulty"`
}

// Matches reports whether the template passes the filter.
func (f Filter) Matches(t *CaseTemplate) bool {
	if t == nil {
		return false
	}
	if f.MaxDifficulty > 0 && t.Difficulty > f.MaxDifficulty {
		return false
	}
	want := strings.TrimSpace(f.Specialty)
	if want != "" && !strings.EqualFold(want, AllSpecialties) && !strings.EqualFold(want, t.Specialty) {
		return false
	}
	return true
}
