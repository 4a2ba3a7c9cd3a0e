package set

import (
	"cmp"
	"fmt"
	"sort"
)

type Set[E comparable] map[E]struct{}

func MakeFromSlice[E comparable](slice []E) *Set[E] {
	S := Set[E]{}
	for _, v := range slice {
		S.Add(v)
	}
	return &S
}

func (S *Set[E]) String() string {
	result := "{ "
	for e := range *S {
		result += fmt.Sprintf("%v, ", e)
	}
	result = result[0:len(result)-1] + "}"
	return result
}

func (S *Set[E]) ToSlice() []E {
	result := []E{}
	for e := range *S {
		result = append(result, e)
	}
	return result
}

func (S *Set[E]) IsEmpty() bool {
	return len(*S) == 0
}

func (S Set[E]) Add(e E) {
	S[e] = struct{}{}
}

func (S Set[E]) AddSet(T Set[E]) {
	for e := range T {
		S.Add(e)
	}
}

func (S Set[E]) OverlapsWith(T Set[E]) bool {
	for e := range T {
		if S.Contains(e) {
			return true
		}
	}
	return false
}

func (S Set[E]) Remove(e E) {
	delete(S, e)
}

func (S Set[E]) Contains(e E) bool {
	_, found := S[e]
	return found
}

// Sorted returns the elements in ascending order. Everything downstream of the
// elaborator must be byte-deterministic, so iteration over sets is always done
// through this rather than by ranging over the map.
func Sorted[E cmp.Ordered](S Set[E]) []E {
	result := make([]E, 0, len(S))
	for e := range S {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
