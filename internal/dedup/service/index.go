package service

import (
	"sort"
)

// Index is a trigram inverted index over normalized reference names, used to
// narrow ranking queries before scoring.
type Index struct {
	byName map[string][]int
	inv    map[string]map[int]struct{} // trigram -> set(reference position)
}

func buildIndex(names []string) *Index {
	idx := &Index{
		byName: make(map[string][]int),
		inv:    make(map[string]map[int]struct{}),
	}
	for i, nn := range names {
		if nn == "" {
			continue
		}
		idx.byName[nn] = append(idx.byName[nn], i)

		for g := range trigramSet(nn) {
			bucket, ok := idx.inv[g]
			if !ok {
				bucket = make(map[int]struct{})
				idx.inv[g] = bucket
			}
			bucket[i] = struct{}{}
		}
	}
	return idx
}

func trigramSet(s string) map[string]struct{} {
	m := make(map[string]struct{})
	if s == "" {
		return m
	}
	p := " " + s + " "
	r := []rune(p)
	if len(r) < 3 {
		m[p] = struct{}{}
		return m
	}
	for i := 0; i <= len(r)-3; i++ {
		m[string(r[i:i+3])] = struct{}{}
	}
	return m
}

// Exact returns the positions whose normalized name equals norm.
func (idx *Index) Exact(norm string) []int {
	return idx.byName[norm]
}

// Candidates returns positions sharing at least minShared trigrams with norm,
// in ascending order.
func (idx *Index) Candidates(norm string, minShared int) []int {
	if norm == "" {
		return nil
	}
	if minShared < 1 {
		minShared = 1
	}
	hits := make(map[int]int)
	for g := range trigramSet(norm) {
		for pos := range idx.inv[g] {
			hits[pos]++
		}
	}
	out := make([]int, 0, len(hits))
	for pos, n := range hits {
		if n >= minShared {
			out = append(out, pos)
		}
	}
	sort.Ints(out) // deterministic order
	return out
}
