package evaluation

import "math/rand"

// PermutationCount is how many criterion orderings phase 1 asks for.
const PermutationCount = 5

// SelectPermutations picks up to n distinct orderings of criteria, greedily
// preferring orderings whose first element has not been used yet so the
// phase-1 queries lead with different criteria. Candidate order is shuffled
// first to avoid deterministic bias when k! exceeds n. With two criteria
// only two orderings exist, so the result is shorter than n; callers must
// tolerate that.
func SelectPermutations(criteria []string, n int) [][]string {
	all := permutations(criteria)
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	selected := make([][]string, 0, n)
	picked := make([]bool, len(all))
	usedFirst := map[string]bool{}

	for i, perm := range all {
		if len(selected) == n {
			return selected
		}
		if len(perm) > 0 && !usedFirst[perm[0]] {
			usedFirst[perm[0]] = true
			picked[i] = true
			selected = append(selected, perm)
		}
	}
	for i, perm := range all {
		if len(selected) == n {
			break
		}
		if !picked[i] {
			picked[i] = true
			selected = append(selected, perm)
		}
	}
	return selected
}

func permutations(values []string) [][]string {
	if len(values) == 0 {
		return nil
	}
	var out [][]string
	perm := make([]string, len(values))
	copy(perm, values)

	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			fixed := make([]string, len(perm))
			copy(fixed, perm)
			out = append(out, fixed)
			return
		}
		for i := 0; i < k; i++ {
			generate(k - 1)
			if k%2 == 0 {
				perm[i], perm[k-1] = perm[k-1], perm[i]
			} else {
				perm[0], perm[k-1] = perm[k-1], perm[0]
			}
		}
	}
	generate(len(perm))
	return out
}
