// Package allocator implements Phase 1: choosing task->node assignments
// that minimize total execution cost subject to per-node concurrency,
// modeled as a min-cost max-flow problem.
//
// Grounded on the teacher's services/solver-svc/internal/converter/graph.go
// (building a flow network from domain inputs) and the dispatch/extraction
// shape of internal/algorithms/solver.go.
package allocator

import (
	"taskplanner/internal/flowgraph"
	"taskplanner/internal/mcmf"
	"taskplanner/pkg/plan"
)

// Result is the outcome of a Phase 1 solve.
type Result struct {
	Assignment plan.Assignment
	TotalCost  int64
	Flow       int64
}

// AssignedCount returns the number of tasks that received a node.
func (r Result) AssignedCount() int {
	return len(r.Assignment)
}

// Allocator constructs and repeatedly solves a min-cost flow network built
// from a fixed set of tasks, nodes, and a cost matrix.
type Allocator struct {
	tasks  []plan.Task
	nodes  []plan.Node
	matrix *plan.CostMatrix

	graph       *flowgraph.Graph
	source      int64
	sink        int64
	taskVertex  map[string]int64
	nodeVertex  map[string]int64
	taskToNode  map[*flowgraph.Edge]string // edge (task vertex -> node vertex) -> node id
	edgeOfTask  map[string][]*flowgraph.Edge
}

// New builds the flow network topology for the given tasks, nodes, and
// cost matrix. The matrix's TaskIDs/NodeIDs order must match tasks/nodes.
func New(tasks []plan.Task, nodes []plan.Node, matrix *plan.CostMatrix) *Allocator {
	a := &Allocator{
		tasks:      tasks,
		nodes:      nodes,
		matrix:     matrix,
		graph:      flowgraph.New(),
		taskVertex: make(map[string]int64, len(tasks)),
		nodeVertex: make(map[string]int64, len(nodes)),
		taskToNode: make(map[*flowgraph.Edge]string),
		edgeOfTask: make(map[string][]*flowgraph.Edge, len(tasks)),
	}
	a.build()
	return a
}

func (a *Allocator) build() {
	// Vertex numbering: 0 = source; 1..T = tasks; T+1..T+N = nodes; T+N+1 = sink.
	T := int64(len(a.tasks))
	a.source = 0
	a.sink = T + int64(len(a.nodes)) + 1

	for i, t := range a.tasks {
		v := int64(i) + 1
		a.taskVertex[t.ID] = v
		a.graph.AddEdge(a.source, v, 1, 0)
	}
	for j, n := range a.nodes {
		v := T + int64(j) + 1
		a.nodeVertex[n.ID] = v
	}

	// Node j -> admissible task set, used to compute the effective slot bound.
	admissible := make([][]int, len(a.nodes))

	for i, t := range a.tasks {
		for j, n := range a.nodes {
			if !a.matrix.Feasible(i, j) {
				continue
			}
			if t.CPU > n.CPU || t.RAM > n.RAM {
				continue
			}
			cost := a.matrix.At(i, j)
			e := a.graph.AddEdge(a.taskVertex[t.ID], a.nodeVertex[n.ID], 1, cost)
			a.taskToNode[e] = n.ID
			a.edgeOfTask[t.ID] = append(a.edgeOfTask[t.ID], e)
			admissible[j] = append(admissible[j], i)
		}
	}

	for j, n := range a.nodes {
		idxs := admissible[j]
		if len(idxs) == 0 {
			continue
		}
		minCPU, minRAM := a.tasks[idxs[0]].CPU, a.tasks[idxs[0]].RAM
		for _, i := range idxs[1:] {
			if a.tasks[i].CPU < minCPU {
				minCPU = a.tasks[i].CPU
			}
			if a.tasks[i].RAM < minRAM {
				minRAM = a.tasks[i].RAM
			}
		}
		if minCPU < 1 {
			minCPU = 1
		}
		if minRAM < 1 {
			minRAM = 1
		}
		resourceBound := n.CPU / minCPU
		if ramBound := n.RAM / minRAM; ramBound < resourceBound {
			resourceBound = ramBound
		}
		capacity := n.Slots
		if resourceBound < capacity {
			capacity = resourceBound
		}
		if capacity < 0 {
			capacity = 0
		}
		if capacity == 0 {
			continue
		}
		a.graph.AddEdge(a.nodeVertex[n.ID], a.sink, capacity, 0)
	}
}

// Solve resets flows and re-runs min-cost max-flow, then extracts the
// task->node assignment. Calling Solve repeatedly on the same Allocator
// returns the same result every time (idempotence of reset).
func (a *Allocator) Solve() Result {
	a.graph.ResetFlows()
	flowResult := mcmf.Solve(a.graph, a.source, a.sink)

	assignment := make(plan.Assignment, len(a.tasks))
	// Walk tasks in caller-supplied order so the result is deterministic
	// and independent of map iteration order.
	for _, t := range a.tasks {
		for _, e := range a.edgeOfTask[t.ID] {
			if e.Flow > 0 {
				assignment[t.ID] = a.taskToNode[e]
				break
			}
		}
	}

	return Result{
		Assignment: assignment,
		TotalCost:  flowResult.Cost,
		Flow:       flowResult.Flow,
	}
}
