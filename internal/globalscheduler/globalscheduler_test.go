package globalscheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taskplanner/pkg/plan"
)

func fullEnvelope(cpu, ram int64, slots []int64) *plan.Envelope {
	env := &plan.Envelope{CPU: make(map[int64]int64), RAM: make(map[int64]int64)}
	for _, s := range slots {
		env.CPU[s] = cpu
		env.RAM[s] = ram
	}
	return env
}

func TestSolveFullPipelineWithDependencies(t *testing.T) {
	tasks := []plan.Task{
		{ID: "T1", CPU: 2, RAM: 4, Deadline: 3},
		{ID: "T2", CPU: 1, RAM: 2, Deadline: 3},
		{ID: "T3", CPU: 3, RAM: 3, Deadline: 4},
	}
	assignment := plan.Assignment{"T1": "N1", "T2": "N2", "T3": "N3"}
	slots := []int64{0, 1, 2, 3}
	envelopes := map[string]*plan.Envelope{
		"N1": fullEnvelope(5, 6, slots),
		"N2": fullEnvelope(6, 5, slots),
		"N3": fullEnvelope(4, 4, slots),
	}
	durations := plan.DurationMap{"T1": 1, "T2": 1, "T3": 2}
	deps := []plan.Dependency{{Before: "T1", After: "T3"}, {Before: "T2", After: "T3"}}

	s := New(tasks, assignment, slots, envelopes, durations, deps, 11)
	result := s.Solve()

	require.True(t, result.Valid)
	t3 := result.Schedule["T3"]
	assert.GreaterOrEqual(t, t3.StartTime, int64(1))
	assert.LessOrEqual(t, t3.StartTime+2, int64(4))
	assert.Equal(t, int64(11), result.TotalCost)
}

func TestSolveDeadlineTightInfeasibility(t *testing.T) {
	tasks := []plan.Task{{ID: "T", CPU: 1, RAM: 1, Deadline: 2}}
	assignment := plan.Assignment{"T": "N1"}
	slots := []int64{0, 1, 2, 3}
	envelopes := map[string]*plan.Envelope{"N1": fullEnvelope(5, 5, slots)}
	durations := plan.DurationMap{"T": 3}

	s := New(tasks, assignment, slots, envelopes, durations, nil, 0)
	result := s.Solve()

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "T")
}

func TestSolveDependencyCycle(t *testing.T) {
	tasks := []plan.Task{
		{ID: "A", CPU: 1, RAM: 1, Deadline: 5},
		{ID: "B", CPU: 1, RAM: 1, Deadline: 5},
	}
	assignment := plan.Assignment{"A": "N1", "B": "N1"}
	slots := []int64{0, 1, 2, 3, 4}
	envelopes := map[string]*plan.Envelope{"N1": fullEnvelope(5, 5, slots)}
	deps := []plan.Dependency{{Before: "A", After: "B"}, {Before: "B", After: "A"}}

	s := New(tasks, assignment, slots, envelopes, plan.DurationMap{}, deps, 0)
	result := s.Solve()

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "cycle")
}

func TestSolveDoesNotMutateCallerEnvelopes(t *testing.T) {
	tasks := []plan.Task{{ID: "T1", CPU: 2, RAM: 2, Deadline: 3}}
	assignment := plan.Assignment{"T1": "N1"}
	slots := []int64{0, 1, 2}
	original := fullEnvelope(5, 5, slots)
	envelopes := map[string]*plan.Envelope{"N1": original}

	s := New(tasks, assignment, slots, envelopes, plan.DurationMap{"T1": 1}, nil, 0)
	result := s.Solve()

	require.True(t, result.Valid)
	assert.Equal(t, int64(5), original.CPU[0])
	assert.Equal(t, int64(5), original.RAM[0])
}

func TestSolveUnknownTaskInAssignment(t *testing.T) {
	s := New(nil, plan.Assignment{"ghost": "N1"}, []int64{0}, map[string]*plan.Envelope{"N1": fullEnvelope(1, 1, []int64{0})}, plan.DurationMap{}, nil, 0)
	result := s.Solve()

	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "ghost")
}
