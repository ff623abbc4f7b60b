package models

import "sort"

// Collection is the ordered set of sessions. The order is persisted
// separately from session bodies.
type Collection struct {
	Sessions map[string]*Session
	Order    []string
}

// NewCollection returns an empty collection
func NewCollection() *Collection {
	return &Collection{Sessions: make(map[string]*Session)}
}

// Reconcile drops order entries for unknown or repeated ids and appends
// sessions missing from the order in discovery order (created_at, then id).
// It reports whether the order changed.
func (c *Collection) Reconcile() bool {
	seen := make(map[string]bool, len(c.Order))
	kept := make([]string, 0, len(c.Sessions))
	changed := false
	for _, id := range c.Order {
		if _, ok := c.Sessions[id]; !ok || seen[id] {
			changed = true
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}

	var missing []*Session
	for id, s := range c.Sessions {
		if !seen[id] {
			missing = append(missing, s)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if !missing[i].CreatedAt.Equal(missing[j].CreatedAt) {
			return missing[i].CreatedAt.Before(missing[j].CreatedAt)
		}
		return missing[i].ID < missing[j].ID
	})
	for _, s := range missing {
		kept = append(kept, s.ID)
		changed = true
	}

	c.Order = kept
	return changed
}

// Ordered returns sessions in display order
func (c *Collection) Ordered() []*Session {
	out := make([]*Session, 0, len(c.Order))
	for _, id := range c.Order {
		if s, ok := c.Sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// IndexOf returns the position of id in the order, or -1
func (c *Collection) IndexOf(id string) int {
	for i, o := range c.Order {
		if o == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Sessions: make(map[string]*Session, len(c.Sessions)),
		Order:    append([]string(nil), c.Order...),
	}
	for id, s := range c.Sessions {
		out.Sessions[id] = s.Clone()
	}
	return out
}
