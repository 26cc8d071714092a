// Package globalscheduler implements Phase 2: given Phase 1 assignments,
// dependencies, durations, and per-node per-slot resource envelopes, it
// assigns each task a start time via dependency-aware list scheduling
// with earliest-feasible-fit placement.
//
// Grounded in the teacher's deterministic, ready-set-driven traversal
// style (services/solver-svc/internal/graph/bfs.go's queue/visited
// bookkeeping, generalized here from graph traversal to a dependency
// ready-set) and pkg/domain/graph.go's adjacency/degree bookkeeping for
// DAG modeling. Preflight and infeasibility failures are classified
// through pkg/apperror's ErrorCode taxonomy before being flattened to
// Result.Reason.
package globalscheduler

import (
	"fmt"

	"taskplanner/pkg/apperror"
	"taskplanner/pkg/plan"
)

// Result is the outcome of a Phase 2 solve.
type Result struct {
	Schedule  plan.Schedule
	Valid     bool
	TotalCost int64
	Reason    string
}

// Scheduler holds the deep-copied, mutable working state for one Solve call.
type Scheduler struct {
	tasks      map[string]plan.Task
	assignment plan.Assignment
	slots      []int64
	envelopes  map[string]*plan.Envelope
	durations  plan.DurationMap
	deps       []plan.Dependency
	phase1Cost int64
}

// New deep-copies envelopes and durations, and returns a Scheduler ready
// to Solve. tasks must contain every task referenced by assignment or deps.
func New(tasks []plan.Task, assignment plan.Assignment, slots []int64, envelopes map[string]*plan.Envelope, durations plan.DurationMap, deps []plan.Dependency, phase1Cost int64) *Scheduler {
	taskByID := make(map[string]plan.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}
	slotsCopy := make([]int64, len(slots))
	copy(slotsCopy, slots)

	return &Scheduler{
		tasks:      taskByID,
		assignment: assignment.Clone(),
		slots:      slotsCopy,
		envelopes:  plan.CloneEnvelopes(envelopes),
		durations:  durations.Clone(),
		deps:       append([]plan.Dependency(nil), deps...),
		phase1Cost: phase1Cost,
	}
}

// fail builds an infeasible Result whose Reason is the message of a typed
// apperror.Error: the JSON contract only exposes the string, but the code
// classifies the failure for anything reading the Go value directly (the
// CLI's audit entries, or a future caller that wants apperror.Code(err)).
func fail(cost int64, code apperror.ErrorCode, reason string) Result {
	return Result{Valid: false, TotalCost: cost, Reason: apperror.New(code, reason).Error()}
}

// Solve runs the preflight checks and the ready-set list scheduling loop.
func (s *Scheduler) Solve() Result {
	// Preflight: every assignment key is a known task, every dependency
	// endpoint is a known task.
	order := make([]string, 0, len(s.assignment))
	for taskID := range s.assignment {
		order = append(order, taskID)
	}
	// The assignment map has no inherent order; sort by task id so failure
	// diagnostics are reproducible regardless of Go's map iteration.
	orderStable(order)

	for _, taskID := range order {
		if _, ok := s.tasks[taskID]; !ok {
			return fail(s.phase1Cost, apperror.CodeUnknownTask, fmt.Sprintf("unknown task %q in assignment", taskID))
		}
		nodeID := s.assignment[taskID]
		if _, ok := s.envelopes[nodeID]; !ok {
			return fail(s.phase1Cost, apperror.CodeUnknownNode, fmt.Sprintf("task %q assigned to unknown node %q", taskID, nodeID))
		}
	}
	for _, d := range s.deps {
		if _, ok := s.tasks[d.Before]; !ok {
			return fail(s.phase1Cost, apperror.CodeUnknownDependency, fmt.Sprintf("unknown task %q in dependency", d.Before))
		}
		if _, ok := s.tasks[d.After]; !ok {
			return fail(s.phase1Cost, apperror.CodeUnknownDependency, fmt.Sprintf("unknown task %q in dependency", d.After))
		}
	}

	allowed := make(map[int64]bool, len(s.slots))
	for _, sl := range s.slots {
		allowed[sl] = true
	}

	preds := make(map[string][]string)
	succs := make(map[string][]string)
	inDegree := make(map[string]int)
	seen := make(map[[2]string]bool)
	for _, d := range s.deps {
		key := [2]string{d.Before, d.After}
		if seen[key] {
			continue
		}
		seen[key] = true
		preds[d.After] = append(preds[d.After], d.Before)
		succs[d.Before] = append(succs[d.Before], d.After)
		inDegree[d.After]++
	}
	if cycle, ok := findCycle(order, succs); ok {
		return fail(s.phase1Cost, apperror.CodeDependencyCycle, fmt.Sprintf("dependency cycle detected involving %q", cycle))
	}

	finish := make(map[string]int64)
	schedule := make(plan.Schedule, len(order))
	remaining := make(map[string]bool, len(order))
	for _, id := range order {
		remaining[id] = true
	}

	ready := make([]string, 0, len(order))
	for _, id := range order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	for len(remaining) > 0 {
		if len(ready) == 0 {
			return fail(s.phase1Cost, apperror.CodeDependencyCycle, "no ready task but unscheduled tasks remain (dependency deadlock)")
		}

		type candidate struct {
			taskID string
			start  int64
		}
		var best *candidate
		var feasible []candidate
		blocked := make([]string, 0)

		for _, taskID := range ready {
			task := s.tasks[taskID]
			nodeID := s.assignment[taskID]
			duration := s.durations.Duration(taskID)

			var est int64
			for _, p := range preds[taskID] {
				if f, ok := finish[p]; ok && f > est {
					est = f
				}
			}
			latestStart := task.Deadline - duration
			if latestStart < est {
				blocked = append(blocked, taskID)
				continue
			}

			env := s.envelopes[nodeID]
			start, ok := earliestFeasibleStart(env, allowed, est, latestStart, duration, task.CPU, task.RAM)
			if !ok {
				blocked = append(blocked, taskID)
				continue
			}
			feasible = append(feasible, candidate{taskID: taskID, start: start})
		}

		if len(feasible) == 0 {
			return fail(s.phase1Cost, apperror.CodeInfeasible, fmt.Sprintf("no feasible placement for ready tasks: %v", blocked))
		}

		for i := range feasible {
			c := feasible[i]
			if best == nil || lessCandidate(s.tasks[c.taskID], c.start, s.tasks[best.taskID], best.start) {
				best = &c
			}
		}

		task := s.tasks[best.taskID]
		nodeID := s.assignment[best.taskID]
		duration := s.durations.Duration(best.taskID)
		env := s.envelopes[nodeID]
		for slot := best.start; slot < best.start+duration; slot++ {
			env.CPU[slot] -= task.CPU
			if env.RAM != nil {
				env.RAM[slot] -= task.RAM
			}
		}

		schedule[best.taskID] = plan.Placement{Node: nodeID, StartTime: best.start}
		finish[best.taskID] = best.start + duration
		delete(remaining, best.taskID)
		ready = removeFromSlice(ready, best.taskID)

		for _, succ := range succs[best.taskID] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	return Result{Schedule: schedule, Valid: true, TotalCost: s.phase1Cost}
}

// lessCandidate implements the tie-break key
// (earliest_feasible_start asc, deadline asc, cpu_requirement desc,
// task_id asc).
func lessCandidate(a plan.Task, aStart int64, b plan.Task, bStart int64) bool {
	if aStart != bStart {
		return aStart < bStart
	}
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	if a.CPU != b.CPU {
		return a.CPU > b.CPU
	}
	return a.ID < b.ID
}

// earliestFeasibleStart linearly searches [est, latestStart] for the
// smallest start such that every slot in [s, s+duration) is allowed and
// the envelope admits the task's cpu/ram demand.
func earliestFeasibleStart(env *plan.Envelope, allowed map[int64]bool, est, latestStart, duration, cpu, ram int64) (int64, bool) {
	for s := est; s <= latestStart; s++ {
		ok := true
		for slot := s; slot < s+duration; slot++ {
			if !allowed[slot] {
				ok = false
				break
			}
			remCPU, hasCPU := env.CPU[slot]
			if !hasCPU || remCPU < cpu {
				ok = false
				break
			}
			if env.RAM != nil {
				remRAM, hasRAM := env.RAM[slot]
				if !hasRAM || remRAM < ram {
					ok = false
					break
				}
			}
		}
		if ok {
			return s, true
		}
	}
	return 0, false
}

func removeFromSlice(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// orderStable sorts in place using simple insertion sort; task counts are
// small enough that clarity wins over sort.Strings's indirection here.
func orderStable(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// findCycle does a DFS over the dependency graph restricted to ids,
// returning one task id on a cycle if one exists.
func findCycle(ids []string, succs map[string][]string) (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	var visit func(string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = gray
		for _, next := range succs[id] {
			switch color[next] {
			case gray:
				return next, true
			case white:
				if cyc, found := visit(next); found {
					return cyc, true
				}
			}
		}
		color[id] = black
		return "", false
	}
	for _, id := range ids {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}
	return "", false
}
