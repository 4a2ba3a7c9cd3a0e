package digraph

// We have a digraph given in the form of a map associating each node with the set
// of nodes it points to. We want to list all the nodes of the graph in such a way that
// no node X ever precedes a node Y in the list if there is a route from X to Y, or, if this
// is not possible given the map, our function should notice this and say so.

// (This is possible only if the graph is acyclic, i.e. a forest.)

// We can do this like this:

// while there are leaf nodes in the graph :
// add all the leaf nodes to the end of the list
// remove the leaf nodes from the graph
// if there are still nodes in the graph :
// complain that the graph is cyclic
// otherwise :
// return the list

// In this implementation we return as parameters the list and a cycle from
// the digraph: if the cycle is of length zero then the list is valid.

// Node types are constrained to cmp.Ordered rather than comparable because the
// elaborator must report the same ordering and the same cycle on every run over
// the same input, so every iteration here is in ascending node order.

import (
	"cmp"
	"fmt"
	"sort"

	"github.com/tenorlang/tenor/source/set"
)

type Digraph[E cmp.Ordered] map[E]set.Set[E]

func (D *Digraph[E]) String() string {
	result := "{\n"
	for _, k := range D.SortedNodes() {
		v := (*D)[k]
		result += fmt.Sprintf("%v : %v\n", k, v.String())
	}
	result += "}\n"
	return result
}

func Ordering[E cmp.Ordered](D Digraph[E]) ([]E, []E) {
	result := []E{}
	for leafnodes := D.StripLeafnodes(); len(leafnodes) > 0; leafnodes = D.StripLeafnodes() {
		result = append(result, leafnodes...)
	}
	return result, extractCycle(&D)
}

// This is just for the Ordering function to use: *IF* the digraph at the end of the
// Ordering function is non-empty, then it consists of a bunch of cycles, and we can
// choose one of them to return as proof of this fact. We walk from the least node,
// always to the least neighbor, so the cycle we choose is a function of the graph.
func extractCycle[E cmp.Ordered](D *Digraph[E]) []E {
	nodes := D.SortedNodes()
	if len(nodes) == 0 {
		return []E{}
	}
	result := []E{nodes[0]}
	for next := leastNeighbor(D, nodes[0]); ; next = leastNeighbor(D, next) {
		if i := Index(result, next); i != -1 {
			result = result[i:]
			break
		}
		result = append(result, next)
	}
	return result
}

func leastNeighbor[E cmp.Ordered](D *Digraph[E], node E) E {
	neighbors := set.Sorted((*D)[node])
	if len(neighbors) == 0 {
		panic("extractCycle has found a leaf node, this is bad.")
	}
	return neighbors[0]
}

// In a digraph D, if we have x in D[y] for some y but x itself is undefined, something
// has gone wrong. (x would NOT represent a leaf node, which would be represented by
// D[x] being {}.) Here the particular thing gone wrong would be a construct defined
// in terms of another construct which doesn't exist.
func (D *Digraph[E]) Check() (bool, E) {
	nodes := *(D.SetOfNodes())
	for v := range nodes {
		for w := range (*D)[v] {
			if !nodes.Contains(w) {
				return false, w
			}
		}
	}
	var x E
	return true, x
}

func (D *Digraph[E]) SetOfNodes() *set.Set[E] {
	result := set.Set[E]{}
	for x := range *D {
		result.Add(x)
	}
	return &result
}

func (D *Digraph[E]) SortedNodes() []E {
	result := make([]E, 0, len(*D))
	for k := range *D {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// This checks to see if a node already has an entry before adding it to the digraph.
func (D *Digraph[E]) AddSafe(node E, neighbors []E) bool {
	if !D.SetOfNodes().Contains(node) {
		D.Add(node, neighbors)
		return true
	}
	return false
}

// This adds an arrow with transitive closure to a digraph, on the assumption that it
// is already transitively closed.
func (D *Digraph[E]) AddTransitiveArrow(a, b E) {
	if !D.SetOfNodes().Contains(a) {
		(*D)[a] = set.Set[E]{b: struct{}{}}
	}
	if !D.SetOfNodes().Contains(b) {
		(*D)[b] = set.Set[E]{}
	}
	(*D)[a].Add(b)
	(*D)[a].AddSet((*D)[b])
	for e := range *(D.ArrowsTo(a)) {
		(*D)[e].Add(b)
		(*D)[e].AddSet((*D)[b])
	}
}

func (D *Digraph[E]) ArrowsTo(e E) *set.Set[E] {
	result := set.Set[E]{}
	for k, V := range *D {
		if V.Contains(e) {
			result.Add(k)
		}
	}
	return &result
}

func (D *Digraph[E]) Add(node E, neighbors []E) {
	s := *set.MakeFromSlice(neighbors)
	(*D)[node] = s
}

func (D *Digraph[E]) StripLeafnodes() []E {
	stripped := set.Set[E]{}
	for k, v := range *D {
		if v.IsEmpty() {
			stripped.Add(k)
		}
	}
	for k := range stripped {
		delete(*D, k)
	}
	for _, V := range *D {
		for e := range stripped {
			delete(V, e)
		}
	}
	return set.Sorted(stripped)
}

func Index[E comparable](slice []E, element E) int {
	result := -1
	for k, v := range slice {
		if v == element {
			result = k
			break
		}
	}
	return result
}

func (D *Digraph[E]) PointsTo(candidate, target E) bool {
	return (*D)[candidate].Contains(target)
}
