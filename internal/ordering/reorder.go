// Package ordering maintains the manual display order of orders.
package ordering

// Reorder moves every ID in moving to sit as one contiguous block next to
// target. The block keeps its relative order and lands after target when
// lead started above target (a downward drag) and before it otherwise.
// The sequence is returned unchanged when target is one of the moving IDs
// or is not present.
func Reorder(seq []string, moving []string, target, lead string) []string {
	out := append([]string(nil), seq...)
	if len(moving) == 0 {
		return out
	}
	movingSet := make(map[string]struct{}, len(moving))
	for _, id := range moving {
		movingSet[id] = struct{}{}
	}
	if _, ok := movingSet[target]; ok {
		return out
	}

	targetPos, leadPos := -1, -1
	for i, id := range seq {
		if id == target {
			targetPos = i
		}
		if id == lead {
			leadPos = i
		}
	}
	if targetPos < 0 {
		return out
	}

	block := make([]string, 0, len(moving))
	rest := make([]string, 0, len(seq))
	for _, id := range seq {
		if _, ok := movingSet[id]; ok {
			block = append(block, id)
			continue
		}
		rest = append(rest, id)
	}
	if len(block) == 0 {
		return out
	}

	insertAt := 0
	for i, id := range rest {
		if id == target {
			insertAt = i
			break
		}
	}
	if leadPos >= 0 && leadPos < targetPos {
		insertAt++
	}

	result := make([]string, 0, len(seq))
	result = append(result, rest[:insertAt]...)
	result = append(result, block...)
	result = append(result, rest[insertAt:]...)
	return result
}

// Arrange orders ids (already sorted by date, newest first) by index. IDs
// missing from the index come first in their given order; stale index
// entries that no longer match an ID are dropped.
func Arrange(ids []string, index []string) []string {
	if len(index) == 0 {
		return append([]string(nil), ids...)
	}
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	indexed := make(map[string]struct{}, len(index))
	ordered := make([]string, 0, len(ids))
	for _, id := range index {
		if _, ok := present[id]; !ok {
			continue
		}
		if _, dup := indexed[id]; dup {
			continue
		}
		indexed[id] = struct{}{}
		ordered = append(ordered, id)
	}

	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := indexed[id]; !ok {
			result = append(result, id)
		}
	}
	return append(result, ordered...)
}
