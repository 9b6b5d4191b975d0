package objrec

import "sort"

// conflictGraph has one node per accepted hypothesis and an edge between any
// two whose explained-support sets overlap beyond the intersection-fraction
// threshold: they are competing explanations of the same scene evidence.
type conflictGraph struct {
	nodes []*Hypothesis
	adj   [][]int
}

// buildConflictGraph connects hypotheses whose support intersection, relative
// to the smaller support set, exceeds intersectionFraction.
func buildConflictGraph(hypotheses []*Hypothesis, intersectionFraction float64) *conflictGraph {
	g := &conflictGraph{
		nodes: hypotheses,
		adj:   make([][]int, len(hypotheses)),
	}
	for i := 0; i < len(hypotheses); i++ {
		for j := i + 1; j < len(hypotheses); j++ {
			if supportsConflict(hypotheses[i], hypotheses[j], intersectionFraction) {
				g.adj[i] = append(g.adj[i], j)
				g.adj[j] = append(g.adj[j], i)
			}
		}
	}
	return g
}

func supportsConflict(a, b *Hypothesis, intersectionFraction float64) bool {
	small, large := a.Explained, b.Explained
	if len(small) > len(large) {
		small, large = large, small
	}
	if len(small) == 0 {
		return false
	}
	common := 0
	for id := range small {
		if _, ok := large[id]; ok {
			common++
		}
	}
	return float64(common)/float64(len(small)) > intersectionFraction
}

// resolve greedily selects an independent set favoring high confidence.
// Nodes are visited in descending match confidence, ties broken by model
// name and then creation order, so the accepted set is deterministic for a
// given hypothesis list. The greedy order decides which member of a tie
// becomes the representative, but a rejected node is always in conflict with
// some accepted one, so the surviving set is independent regardless.
func (g *conflictGraph) resolve() []*Hypothesis {
	order := make([]int, len(g.nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ha, hb := g.nodes[order[a]], g.nodes[order[b]]
		if ha.MatchConfidence != hb.MatchConfidence {
			return ha.MatchConfidence > hb.MatchConfidence
		}
		return ha.Model.Name() < hb.Model.Name()
	})

	blocked := make([]bool, len(g.nodes))
	var out []*Hypothesis
	for _, idx := range order {
		if blocked[idx] {
			continue
		}
		out = append(out, g.nodes[idx])
		for _, nb := range g.adj[idx] {
			blocked[nb] = true
		}
	}
	return out
}
