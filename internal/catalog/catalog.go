package catalog

import (
	"errors"
	"fmt"
)

// Group is the immutable configuration for one preset pool: an ordered list
// of candidate names sharing a container and a trigger context. Loaded once
// at startup and never mutated.
type Group struct {
	ID        string
	Label     string
	Container string
	Trigger   string
	Presets   []string
}

// Catalog holds all configured groups with lookup by ID and by trigger
// context.
type Catalog struct {
	groups    []Group
	byID      map[string]*Group
	byTrigger map[string]*Group
}

// New validates the groups and builds the catalog. Invalid configuration is
// a startup error, not a recoverable runtime condition.
func New(groups []Group) (*Catalog, error) {
	if len(groups) == 0 {
		return nil, errors.New("catalog requires at least one group")
	}
	c := &Catalog{
		groups:    append([]Group(nil), groups...),
		byID:      make(map[string]*Group, len(groups)),
		byTrigger: make(map[string]*Group, len(groups)),
	}
	for i := range c.groups {
		g := &c.groups[i]
		if err := validateGroup(g); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.ID, err)
		}
		if _, dup := c.byID[g.ID]; dup {
			return nil, fmt.Errorf("duplicate group id %q", g.ID)
		}
		c.byID[g.ID] = g
		if g.Trigger != "" {
			if other, dup := c.byTrigger[g.Trigger]; dup {
				return nil, fmt.Errorf("trigger %q shared by groups %q and %q", g.Trigger, other.ID, g.ID)
			}
			c.byTrigger[g.Trigger] = g
		}
	}
	return c, nil
}

func validateGroup(g *Group) error {
	if g.ID == "" {
		return errors.New("missing id")
	}
	if g.Container == "" {
		return errors.New("missing container id")
	}
	if len(g.Presets) == 0 {
		return errors.New("empty preset list")
	}
	seen := make(map[string]struct{}, len(g.Presets))
	for _, n := range g.Presets {
		if n == "" {
			return errors.New("empty preset name")
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate preset name %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Group returns the group with the given id.
func (c *Catalog) Group(id string) (Group, bool) {
	g, ok := c.byID[id]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// GroupByTrigger returns the group whose trigger context matches contextID.
func (c *Catalog) GroupByTrigger(contextID string) (Group, bool) {
	g, ok := c.byTrigger[contextID]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// Groups returns all groups in configuration order.
func (c *Catalog) Groups() []Group {
	return append([]Group(nil), c.groups...)
}

// HasPreset reports whether name is one of the group's candidate names.
func (g Group) HasPreset(name string) bool {
	for _, n := range g.Presets {
		if n == name {
			return true
		}
	}
	return false
}
