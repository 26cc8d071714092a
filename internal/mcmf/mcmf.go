// Package mcmf computes min-cost max-flow on a flowgraph.Graph using
// successive shortest paths with Bellman-Ford shortest-path discovery.
//
// Bellman-Ford is required rather than Dijkstra-with-potentials because
// residual reverse edges carry negative cost; the networks this planner
// solves are small (hundreds of vertices), so the simplicity of plain
// Bellman-Ford outweighs the speed of a potentials-based shortest path.
// Grounded on the teacher's internal/algorithms/bellman_ford.go relaxation
// loop (deterministic order, early exit on no update) and the Bellman-Ford
// code path of min_cost_flow.go. The relaxation loop here does not detect
// negative cycles.
package mcmf

import "taskplanner/internal/flowgraph"

// Result is the outcome of a min-cost max-flow solve.
type Result struct {
	Flow       int64
	Cost       int64
	Iterations int
}

// Solve runs successive shortest paths from source to sink on g, mutating
// g's edge flows in place. Callers that want to re-solve the same
// topology must call g.ResetFlows() first.
func Solve(g *flowgraph.Graph, source, sink int64) Result {
	var result Result

	for {
		dist, parent, parentEdge, reached := bellmanFord(g, source)
		if !reached[sink] {
			break
		}

		// Reconstruct the augmenting path sink -> source via parent pointers.
		var path []*flowgraph.Edge
		for v := sink; v != source; v = parent[v] {
			e := parentEdge[v]
			path = append([]*flowgraph.Edge{e}, path...)
		}

		bottleneck := int64(-1)
		for _, e := range path {
			if bottleneck == -1 || e.Remaining() < bottleneck {
				bottleneck = e.Remaining()
			}
		}
		if bottleneck <= 0 {
			break
		}

		for _, e := range path {
			g.AddFlow(e, bottleneck)
			// Cost and amount are both int64 and the product is accumulated
			// in int64; overflow is not detected.
			result.Cost += int64(e.Cost) * bottleneck
		}
		result.Flow += bottleneck
		result.Iterations++
		_ = dist
	}

	return result
}

const infDist = int64(1) << 62

// bellmanFord runs V-1 relaxation passes (stopping early if a pass makes
// no change) over g's edges with positive residual capacity, starting
// from source. It returns per-node distance, predecessor node, and the
// edge from that predecessor into the node, plus a reachability set.
func bellmanFord(g *flowgraph.Graph, source int64) (dist map[int64]int64, parent map[int64]int64, parentEdge map[int64]*flowgraph.Edge, reached map[int64]bool) {
	nodes := g.Nodes()

	dist = make(map[int64]int64, len(nodes))
	parent = make(map[int64]int64, len(nodes))
	parentEdge = make(map[int64]*flowgraph.Edge, len(nodes))
	reached = make(map[int64]bool, len(nodes))

	for _, n := range nodes {
		dist[n] = infDist
	}
	dist[source] = 0
	reached[source] = true

	n := len(nodes)
	for pass := 0; pass < n-1; pass++ {
		updated := false
		for _, u := range nodes {
			if dist[u] == infDist {
				continue
			}
			for _, e := range g.EdgesFrom(u) {
				if e.Remaining() <= 0 {
					continue
				}
				cand := dist[u] + e.Cost
				if cand < dist[e.To] {
					dist[e.To] = cand
					parent[e.To] = u
					parentEdge[e.To] = e
					reached[e.To] = true
					updated = true
				}
			}
		}
		if !updated {
			break
		}
	}

	return dist, parent, parentEdge, reached
}
