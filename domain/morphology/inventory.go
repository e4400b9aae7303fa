package morphology

import (
	"fmt"
	"sort"

	"glyphstat/domain/core"
)

// ComponentKind names the slot a component fills in a decomposition.
type ComponentKind string

const (
	KindPrefix      ComponentKind = "prefix"
	KindSuffix      ComponentKind = "suffix"
	KindArticulator ComponentKind = "articulator"
)

// IsValid reports whether the kind is one of the known slots.
func (k ComponentKind) IsValid() bool {
	switch k {
	case KindPrefix, KindSuffix, KindArticulator:
		return true
	}
	return false
}

// Component is one inventory entry with the evidence note that justified it.
type Component struct {
	Kind       ComponentKind `json:"kind" yaml:"kind"`
	Text       string        `json:"text" yaml:"text"`
	Provenance string        `json:"provenance" yaml:"provenance"`
}

// Inventory is a versioned, append-only set of known components. Every
// decomposition for a corpus references the same inventory value.
type Inventory struct {
	revision   int
	components []Component
	// longest first, ties lexical
	byKind  map[ComponentKind][]string
	members map[ComponentKind]map[string]bool
	hash    core.InventoryVersion
}

// NewInventory builds revision 1 of an inventory.
func NewInventory(components []Component) (*Inventory, error) {
	inv := &Inventory{}
	return inv.extend(components, 1)
}

// Append returns a new inventory one revision ahead that also holds the given
// components. The receiver is not modified.
func (inv *Inventory) Append(components ...Component) (*Inventory, error) {
	return inv.extend(components, inv.revision+1)
}

func (inv *Inventory) extend(add []Component, revision int) (*Inventory, error) {
	next := &Inventory{
		revision:   revision,
		components: make([]Component, 0, len(inv.components)+len(add)),
		byKind:     make(map[ComponentKind][]string),
		members:    make(map[ComponentKind]map[string]bool),
	}
	for _, k := range []ComponentKind{KindPrefix, KindSuffix, KindArticulator} {
		next.members[k] = make(map[string]bool)
	}

	for _, c := range inv.components {
		next.components = append(next.components, c)
		next.members[c.Kind][c.Text] = true
	}
	for i, c := range add {
		if !c.Kind.IsValid() {
			return nil, fmt.Errorf("%w: component %d: unknown kind %q", core.ErrInvalidInput, i, c.Kind)
		}
		if err := ValidateToken(c.Text); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		if next.members[c.Kind][c.Text] {
			return nil, fmt.Errorf("%w: %s %q", core.ErrRecordExists, c.Kind, c.Text)
		}
		next.components = append(next.components, c)
		next.members[c.Kind][c.Text] = true
	}

	for kind, set := range next.members {
		list := make([]string, 0, len(set))
		for text := range set {
			list = append(list, text)
		}
		sort.Slice(list, func(a, b int) bool {
			if len(list[a]) != len(list[b]) {
				return len(list[a]) > len(list[b])
			}
			return list[a] < list[b]
		})
		next.byKind[kind] = list
	}

	h := core.NewHasher("inventory/v1").Int(int64(next.revision))
	for _, kind := range []ComponentKind{KindPrefix, KindSuffix, KindArticulator} {
		h.Field(string(kind)).Int(int64(len(next.byKind[kind])))
		for _, text := range next.byKind[kind] {
			h.Field(text)
		}
	}
	next.hash = core.InventoryVersion(h.Sum())
	return next, nil
}

// Revision is the monotonically increasing revision number.
func (inv *Inventory) Revision() int { return inv.revision }

// Version is the content hash of the inventory.
func (inv *Inventory) Version() core.InventoryVersion { return inv.hash }

// Components returns a copy of all entries in insertion order.
func (inv *Inventory) Components() []Component {
	out := make([]Component, len(inv.components))
	copy(out, inv.components)
	return out
}

// Has reports whether text is a known component of the given kind.
func (inv *Inventory) Has(kind ComponentKind, text string) bool {
	return inv.members[kind][text]
}

// Candidates returns the components of one kind, longest first.
func (inv *Inventory) Candidates(kind ComponentKind) []string {
	return append([]string(nil), inv.byKind[kind]...)
}
