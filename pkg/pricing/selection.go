package pricing

import (
	"github.com/jordanlanch/storefront/pkg/catalog"
)

// Selection tracks which catalog items a single checkout session has chosen.
// It is not safe for concurrent use; each session owns its own Selection.
type Selection struct {
	cat    *catalog.Catalog
	chosen map[string]bool
}

// NewSelection starts an empty selection over cat.
func NewSelection(cat *catalog.Catalog) *Selection {
	return &Selection{cat: cat, chosen: make(map[string]bool, cat.Len())}
}

// Toggle flips id and reports whether id belongs to the catalog. Unknown ids are ignored.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.cat.Lookup(id); !ok {
		return false
	}
	if s.chosen[id] {
		delete(s.chosen, id)
	} else {
		s.chosen[id] = true
	}
	return true
}

// IsSelected reports whether id is chosen.
func (s *Selection) IsSelected(id string) bool {
	return s.chosen[id]
}

// Count returns the number of chosen items.
func (s *Selection) Count() int {
	return len(s.chosen)
}

// Selected returns the chosen items in catalog order.
func (s *Selection) Selected() []catalog.Item {
	out := make([]catalog.Item, 0, len(s.chosen))
	for _, it := range s.cat.Items() {
		if s.chosen[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// IDs returns the chosen price ids in catalog order.
func (s *Selection) IDs() []string {
	items := s.Selected()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Summary prices the current selection under the catalog policy.
func (s *Selection) Summary() Summary {
	return ComputeSummary(s.Selected(), s.cat.Policy())
}
