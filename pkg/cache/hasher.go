package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"taskplanner/pkg/plan"
)

// AllocationHash computes a cache key for an Allocator input: the task set,
// the node set, the cost matrix and the maxIterations value. Row/column order
// in the matrix does not affect the hash, only the (task, node, cost) triples
// it encodes.
func AllocationHash(tasks []plan.Task, nodes []plan.Node, costs *plan.CostMatrix, maxIterations int) string {
	data := allocationToCanonical(tasks, nodes, costs, maxIterations)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func allocationToCanonical(tasks []plan.Task, nodes []plan.Node, costs *plan.CostMatrix, maxIterations int) []byte {
	taskRows := make([]plan.Task, len(tasks))
	copy(taskRows, tasks)
	sort.Slice(taskRows, func(i, j int) bool { return taskRows[i].ID < taskRows[j].ID })

	nodeRows := make([]plan.Node, len(nodes))
	copy(nodeRows, nodes)
	sort.Slice(nodeRows, func(i, j int) bool { return nodeRows[i].ID < nodeRows[j].ID })

	type costEntry struct {
		task, node string
		cost       int64
	}
	var entries []costEntry
	if costs != nil {
		for i, taskID := range costs.TaskIDs {
			for j, nodeID := range costs.NodeIDs {
				if costs.Feasible(i, j) {
					entries = append(entries, costEntry{taskID, nodeID, costs.At(i, j)})
				}
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].task != entries[j].task {
			return entries[i].task < entries[j].task
		}
		return entries[i].node < entries[j].node
	})

	var result []byte
	result = append(result, []byte(fmt.Sprintf("mi:%d;", maxIterations))...)
	for _, t := range taskRows {
		result = append(result, []byte(fmt.Sprintf("t:%s:%d:%d:%d;", t.ID, t.CPU, t.RAM, t.Deadline))...)
	}
	for _, n := range nodeRows {
		result = append(result, []byte(fmt.Sprintf("n:%s:%d:%d:%d;", n.ID, n.CPU, n.RAM, n.Slots))...)
	}
	for _, e := range entries {
		result = append(result, []byte(fmt.Sprintf("c:%s:%s:%d;", e.task, e.node, e.cost))...)
	}

	return result
}

// BuildSolveKey builds a cache key for an allocator solve result.
func BuildSolveKey(allocationHash string) string {
	return fmt.Sprintf("solve:allocate:%s", allocationHash)
}

// QuickHash hashes arbitrary bytes with the full 32-byte digest, hex encoded.
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash hashes arbitrary bytes, truncated to a 16-character hex digest.
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
