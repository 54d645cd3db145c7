package store

import (
	"github.com/jacentio/grove/uid"
)

// Criteria selects documents: the uid must match UID and every Equals path
// must hold the given value.
type Criteria struct {
	UID    *uid.Pattern
	Equals map[string]any
}

// NewCriteria builds criteria for id, narrowed by an optional filter. The
// filter is flattened into dotted-path equality constraints, and its keys may
// themselves be dotted paths. A "uid" entry in it is ignored since the
// identifier constraint always comes from id.
func NewCriteria(id uid.UID, filter map[string]any) (Criteria, error) {
	c := Criteria{UID: id.Pattern()}
	if len(filter) == 0 {
		return c, nil
	}

	equals, err := flattenFilter(filter)
	if err != nil {
		return Criteria{}, err
	}
	delete(equals, FieldUID)
	if len(equals) > 0 {
		c.Equals = equals
	}
	return c, nil
}

// Matches evaluates the criteria against doc in process.
func (c Criteria) Matches(doc Document) bool {
	if c.UID == nil || !c.UID.MatchString(doc.UID()) {
		return false
	}
	for path, want := range c.Equals {
		got, ok := lookup(doc, path)
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}
