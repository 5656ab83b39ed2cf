// Package sequence keeps the dense 1..N ordering of sibling tasks and objectives.
package sequence

import (
	"errors"
	"sort"
)

var (
	// ErrInvalidPosition is returned when a target position is outside 1..N.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrNotFound is returned when the moved item is not part of the group.
	ErrNotFound = errors.New("item not in group")
)

// Item is one member of a sibling group.
type Item struct {
	ID    int64
	Order int
}

// Reorder moves itemID to newPosition and returns only the items whose order
// changed, with their new order. The input slice is not modified.
//
// Moving down shifts the siblings in (old, new] up by one; moving up shifts
// the siblings in [new, old) down by one. A move to the current position
// returns no changes.
func Reorder(items []Item, itemID int64, newPosition int) ([]Item, error) {
	if newPosition < 1 || newPosition > len(items) {
		return nil, ErrInvalidPosition
	}

	oldPosition := 0
	for _, it := range items {
		if it.ID == itemID {
			oldPosition = it.Order
			break
		}
	}
	if oldPosition == 0 {
		return nil, ErrNotFound
	}
	if oldPosition == newPosition {
		return []Item{}, nil
	}

	changed := make([]Item, 0, abs(newPosition-oldPosition)+1)
	for _, it := range items {
		switch {
		case it.ID == itemID:
			changed = append(changed, Item{ID: it.ID, Order: newPosition})
		case newPosition > oldPosition && it.Order > oldPosition && it.Order <= newPosition:
			changed = append(changed, Item{ID: it.ID, Order: it.Order - 1})
		case newPosition < oldPosition && it.Order >= newPosition && it.Order < oldPosition:
			changed = append(changed, Item{ID: it.ID, Order: it.Order + 1})
		}
	}
	return changed, nil
}

// Apply returns a copy of items with the changes produced by Reorder merged in,
// sorted by order.
func Apply(items []Item, changes []Item) []Item {
	next := make(map[int64]int, len(changes))
	for _, c := range changes {
		next[c.ID] = c.Order
	}
	out := make([]Item, len(items))
	for i, it := range items {
		if order, ok := next[it.ID]; ok {
			it.Order = order
		}
		out[i] = it
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Compact renumbers a group densely from 1, keeping the current relative
// order, and returns the items whose order changed. It is used after a
// sibling has been removed.
func Compact(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	changed := make([]Item, 0)
	for i, it := range sorted {
		if it.Order != i+1 {
			changed = append(changed, Item{ID: it.ID, Order: i + 1})
		}
	}
	return changed
}

// Contiguous reports whether the group's orders are exactly 1..N.
func Contiguous(items []Item) bool {
	seen := make([]bool, len(items)+1)
	for _, it := range items {
		if it.Order < 1 || it.Order > len(items) || seen[it.Order] {
			return false
		}
		seen[it.Order] = true
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
