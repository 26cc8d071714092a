package cache

import (
	"testing"

	"taskplanner/pkg/plan"
)

func sampleTasks() []plan.Task {
	return []plan.Task{
		{ID: "T1", CPU: 1, RAM: 1, Deadline: 10},
		{ID: "T2", CPU: 2, RAM: 2, Deadline: 20},
	}
}

func sampleNodes() []plan.Node {
	return []plan.Node{
		{ID: "N1", CPU: 4, RAM: 4, Slots: 2},
		{ID: "N2", CPU: 8, RAM: 8, Slots: 4},
	}
}

func sampleCosts() *plan.CostMatrix {
	return &plan.CostMatrix{
		TaskIDs: []string{"T1", "T2"},
		NodeIDs: []string{"N1", "N2"},
		Cost: [][]int64{
			{1, 2},
			{3, 4},
		},
	}
}

func TestAllocationHash_SameInputSameHash(t *testing.T) {
	h1 := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 1000)
	h2 := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 1000)

	if h1 != h2 {
		t.Errorf("same allocation input should produce same hash: %v != %v", h1, h2)
	}
}

func TestAllocationHash_DifferentCostDifferentHash(t *testing.T) {
	costs2 := sampleCosts()
	costs2.Cost[0][0] = 99

	h1 := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 1000)
	h2 := AllocationHash(sampleTasks(), sampleNodes(), costs2, 1000)

	if h1 == h2 {
		t.Error("different cost matrices should produce different hashes")
	}
}

func TestAllocationHash_TaskOrderDoesNotAffectHash(t *testing.T) {
	tasks1 := sampleTasks()
	tasks2 := []plan.Task{tasks1[1], tasks1[0]}

	h1 := AllocationHash(tasks1, sampleNodes(), sampleCosts(), 1000)
	h2 := AllocationHash(tasks2, sampleNodes(), sampleCosts(), 1000)

	if h1 != h2 {
		t.Error("task order should not affect hash")
	}
}

func TestAllocationHash_MaxIterationsAffectsHash(t *testing.T) {
	h1 := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 1000)
	h2 := AllocationHash(sampleTasks(), sampleNodes(), sampleCosts(), 2000)

	if h1 == h2 {
		t.Error("different max iterations should produce different hashes")
	}
}

func TestBuildSolveKey(t *testing.T) {
	key := BuildSolveKey("abc123")
	expected := "solve:allocate:abc123"
	if key != expected {
		t.Errorf("BuildSolveKey() = %v, want %v", key, expected)
	}
}

func TestQuickHash(t *testing.T) {
	data := []byte("test data")
	hash := QuickHash(data)

	if len(hash) != 64 {
		t.Errorf("QuickHash length = %d, want 64", len(hash))
	}

	hash2 := QuickHash(data)
	if hash != hash2 {
		t.Error("same data should produce same hash")
	}
}

func TestShortHash(t *testing.T) {
	data := []byte("test data")
	hash := ShortHash(data)

	if len(hash) != 16 {
		t.Errorf("ShortHash length = %d, want 16", len(hash))
	}
}
