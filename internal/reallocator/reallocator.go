// Package reallocator implements Phase 3: applying an event stream
// (node_failure, new_task) to an existing schedule, evicting affected
// tasks and greedily re-placing them on surviving nodes while tracking a
// change-penalty counter.
//
// Grounded on the teacher's event/stats handling conventions
// (services/solver-svc/internal/service/solver.go's atomic-counter,
// ordered-processing style) and the Allocator's greedy placement idiom.
// Each applied event is stamped with a UUID trace id for the structured
// audit trail, mirroring the teacher's per-request-id logging convention
// (pkg/client).
package reallocator

import (
	"github.com/google/uuid"

	"taskplanner/pkg/plan"
)

// EventKind tags the two variants of the Phase-3 event stream, dispatched
// on the tag rather than a stringly-typed field.
type EventKind int

const (
	NodeFailure EventKind = iota
	NewTask
)

// Event is the tagged-variant union of the two event kinds Phase 3 accepts.
type Event struct {
	Kind EventKind

	// set when Kind == NodeFailure
	NodeID string

	// set when Kind == NewTask
	Task plan.Task
}

// Result is the outcome of applying a batch of events to a schedule.
type Result struct {
	UpdatedSchedule plan.Schedule
	ReassignedTasks []string
	FailedTasks     []string
	TotalCost       int64
	ChangePenalty   int64
}

// TraceEntry records one applied event for the structured audit trail.
type TraceEntry struct {
	ID    string
	Kind  EventKind
	Task  string
	Node  string
	Note  string
}

// Reallocator owns a mutable working copy of a schedule, its node order,
// envelopes, durations, and task registry, seeded at construction.
type Reallocator struct {
	tasks      map[string]plan.Task
	nodeOrder  []string
	envelopes  map[string]*plan.Envelope
	durations  plan.DurationMap
	schedule   plan.Schedule
	phase1Cost int64

	Trace []TraceEntry
}

// New deep-copies envelopes and the schedule so the caller's own copies
// are left untouched.
func New(tasks []plan.Task, nodeOrder []string, envelopes map[string]*plan.Envelope, durations plan.DurationMap, schedule plan.Schedule, phase1Cost int64) *Reallocator {
	taskByID := make(map[string]plan.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}
	return &Reallocator{
		tasks:      taskByID,
		nodeOrder:  append([]string(nil), nodeOrder...),
		envelopes:  plan.CloneEnvelopes(envelopes),
		durations:  durations.Clone(),
		schedule:   schedule.Clone(),
		phase1Cost: phase1Cost,
	}
}

// Apply processes events strictly in input order, building a re-placement
// queue, then attempts placement for each queued task in queue order.
func (r *Reallocator) Apply(events []Event) Result {
	type queued struct {
		taskID string
	}
	var queue []queued
	reassigned := make([]string, 0)
	reassignedSeen := make(map[string]bool)

	enqueue := func(taskID string) {
		queue = append(queue, queued{taskID: taskID})
		if !reassignedSeen[taskID] {
			reassignedSeen[taskID] = true
			reassigned = append(reassigned, taskID)
		}
	}

	for _, ev := range events {
		switch ev.Kind {
		case NodeFailure:
			evicted := make([]string, 0)
			for taskID, placement := range r.schedule {
				if placement.Node == ev.NodeID {
					evicted = append(evicted, taskID)
				}
			}
			orderStrings(evicted)
			for _, taskID := range evicted {
				delete(r.schedule, taskID)
				enqueue(taskID)
			}
			delete(r.envelopes, ev.NodeID)
			r.nodeOrder = removeString(r.nodeOrder, ev.NodeID)
			r.Trace = append(r.Trace, TraceEntry{ID: uuid.NewString(), Kind: NodeFailure, Node: ev.NodeID, Note: "node failed, tasks evicted"})

		case NewTask:
			r.tasks[ev.Task.ID] = ev.Task
			if _, ok := r.durations[ev.Task.ID]; !ok {
				r.durations[ev.Task.ID] = 1
			}
			enqueue(ev.Task.ID)
			r.Trace = append(r.Trace, TraceEntry{ID: uuid.NewString(), Kind: NewTask, Task: ev.Task.ID, Note: "new task arrival"})
		}
	}

	failedSet := make(map[string]bool)
	var failed []string

	for _, q := range queue {
		task := r.tasks[q.taskID]
		duration := r.durations.Duration(q.taskID)
		placed := false

		for _, nodeID := range r.nodeOrder {
			env := r.envelopes[nodeID]
			if env == nil {
				continue
			}
			maxStart := task.Deadline - duration
			for start := int64(0); start <= maxStart; start++ {
				if canFit(env, start, duration, task.CPU, task.RAM) {
					for slot := start; slot < start+duration; slot++ {
						env.CPU[slot] -= task.CPU
						if env.RAM != nil {
							env.RAM[slot] -= task.RAM
						}
					}
					r.schedule[q.taskID] = plan.Placement{Node: nodeID, StartTime: start}
					r.Trace = append(r.Trace, TraceEntry{ID: uuid.NewString(), Task: q.taskID, Node: nodeID, Note: "re-placed"})
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}

		if !placed {
			if !failedSet[q.taskID] {
				failedSet[q.taskID] = true
				failed = append(failed, q.taskID)
			}
		} else {
			delete(failedSet, q.taskID)
			failed = removeString(failed, q.taskID)
		}
	}

	changePenalty := int64(0)
	for _, taskID := range reassigned {
		if !failedSet[taskID] {
			changePenalty++
		}
	}

	return Result{
		UpdatedSchedule: r.schedule.Clone(),
		ReassignedTasks: reassigned,
		FailedTasks:     failed,
		TotalCost:       r.phase1Cost + changePenalty,
		ChangePenalty:   changePenalty,
	}
}

func canFit(env *plan.Envelope, start, duration, cpu, ram int64) bool {
	for slot := start; slot < start+duration; slot++ {
		remCPU, ok := env.CPU[slot]
		if !ok || remCPU < cpu {
			return false
		}
		if env.RAM != nil {
			remRAM, ok := env.RAM[slot]
			if !ok || remRAM < ram {
				return false
			}
		}
	}
	return true
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func orderStrings(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
