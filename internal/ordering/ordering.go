// Package ordering maintains the manual display order of active tasks.
//
// Active and completed tasks share one dense index space. Completed tasks keep
// their slot so uncompleting returns a task to its last known position; a
// reorder of the active list only permutes the slots active tasks already hold.
package ordering

// Item is the part of a task the ordering engine looks at.
type Item struct {
	ID    int64
	Index int
}

// Assign maps the caller's order onto the slots held by current, which must be
// the active tasks sorted by index. The k-th id receives the k-th smallest
// slot, so with no completed tasks interleaved the k-th id gets index k.
//
// Ids that are not in current, or repeat, are skipped. Active tasks missing
// from orderedIDs follow the supplied ones in their current order. Only items
// whose index changes are returned.
func Assign(current []Item, orderedIDs []int64) []Item {
	slots := make([]int, len(current))
	byID := make(map[int64]Item, len(current))
	for i, it := range current {
		slots[i] = it.Index
		byID[it.ID] = it
	}

	seq := make([]Item, 0, len(current))
	placed := make(map[int64]bool, len(current))
	for _, id := range orderedIDs {
		it, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		seq = append(seq, it)
	}
	for _, it := range current {
		if !placed[it.ID] {
			seq = append(seq, it)
		}
	}

	var changed []Item
	for k, it := range seq {
		if it.Index != slots[k] {
			changed = append(changed, Item{ID: it.ID, Index: slots[k]})
		}
	}
	return changed
}

// Compact re-ranks items, already in display order, to 0..n-1 and returns
// the ones whose index changes.
func Compact(items []Item) []Item {
	var changed []Item
	for k, it := range items {
		if it.Index != k {
			changed = append(changed, Item{ID: it.ID, Index: k})
		}
	}
	return changed
}

// Move returns a copy of ids with the element at from moved to position to.
// Out of range positions return ids unchanged.
func Move(ids []int64, from, to int) []int64 {
	out := append([]int64(nil), ids...)
	if from == to || from < 0 || to < 0 || from >= len(ids) || to >= len(ids) {
		return out
	}
	id := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]int64{id}, out[to:]...)...)
	return out
}

// MoveToTop returns a copy of ids with id first and the rest in their
// original relative order. Unknown ids leave the order unchanged.
func MoveToTop(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return Move(ids, i, 0)
		}
	}
	return append([]int64(nil), ids...)
}

// Dense reports whether the indices form exactly 0..n-1.
func Dense(items []Item) bool {
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(items) || seen[it.Index] {
			return false
		}
		seen[it.Index] = true
	}
	return true
}
