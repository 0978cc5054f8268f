// Package ordering generates persisted experiment orderings and resolves which
// experiment a subject should see next.
// This is part of the Functional Core - no I/O, only pure functions.
package ordering

// Source is the randomness used for shuffling. *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// Item is one position of a generated ordering.
type Item struct {
	BatteryExperimentID string
	Position            int
}

// Permute returns a uniformly random permutation of ids (Fisher-Yates).
// The input slice is not modified.
func Permute(ids []string, src Source) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// GenerateItems shuffles the battery experiment ids and assigns 0-based positions.
func GenerateItems(batteryExperimentIDs []string, src Source) []Item {
	shuffled := Permute(batteryExperimentIDs, src)
	items := make([]Item, len(shuffled))
	for i, id := range shuffled {
		items[i] = Item{BatteryExperimentID: id, Position: i}
	}
	return items
}

// Unfinished filters candidate experiment instance ids down to those not in exempt,
// preserving order.
func Unfinished(candidates []string, exempt map[string]bool) []string {
	var out []string
	for _, id := range candidates {
		if !exempt[id] {
			out = append(out, id)
		}
	}
	return out
}
