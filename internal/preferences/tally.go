package preferences

import (
	"slices"
	"sort"
)

// tally counts votes while remembering the order values were first seen, so every ranking
// it produces is stable for a given input sequence.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: map[K]int{}}
}

func (t *tally[K]) add(values ...K) {
	for _, v := range values {
		if _, seen := t.counts[v]; !seen {
			t.order = append(t.order, v)
		}
		t.counts[v]++
	}
}

func (t *tally[K]) count(v K) int {
	return t.counts[v]
}

func (t *tally[K]) len() int {
	return len(t.order)
}

// ranked returns every value by descending count, ties in first-seen order.
func (t *tally[K]) ranked() []K {
	out := slices.Clone(t.order)
	sort.SliceStable(out, func(i, j int) bool {
		return t.counts[out[i]] > t.counts[out[j]]
	})
	return out
}

func (t *tally[K]) top(n int) []K {
	ranked := t.ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (t *tally[K]) mode() (K, bool) {
	var zero K
	if len(t.order) == 0 {
		return zero, false
	}
	return t.ranked()[0], true
}

// union returns the distinct members of lists in first-seen order. The result is never nil.
func union[K comparable](lists ...[]K) []K {
	seen := map[K]struct{}{}
	out := make([]K, 0)
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// without returns the members of list not contained in exclude, keeping order.
func without[K comparable](list, exclude []K) []K {
	out := make([]K, 0, len(list))
	for _, v := range list {
		if !slices.Contains(exclude, v) {
			out = append(out, v)
		}
	}
	return out
}

func intersect[K comparable](a, b []K) []K {
	out := make([]K, 0)
	for _, v := range union(a) {
		if slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
