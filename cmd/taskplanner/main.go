// Package main is the entry point for the taskplanner CLI demo.
//
// taskplanner runs a fixed demo scenario through all four planning phases
// in sequence and prints each phase's result as the JSON shape documented
// for external integration:
//
//	Phase 1 (allocate)      -> {"assignments": ..., "total_cost": ..., "assigned_count": ...}
//	Phase 2 (schedule)      -> {"schedule": ..., "valid": ..., "total_cost": ..., "reason": ...}
//	Phase 3 (reallocate)    -> {"UpdatedSchedule": ..., "ReassignedTasks": ..., "FailedTasks": ..., "TotalCost": ..., "ChangePenalty": ...}
//	Phase 4 (local_schedule)-> {"ExecutionSchedule": ..., "TotalIdleTime": ..., "PenaltyCost": ...}
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (prefix: TASKPLANNER_)
//  2. Config files (config.yaml in standard locations)
//  3. Default values (pkg/config/loader.go)
//
// When report.enabled is set, a per-node Gantt worksheet is written to
// report.output_dir after Phase 4 completes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taskplanner/internal/allocator"
	"taskplanner/internal/globalscheduler"
	"taskplanner/internal/localscheduler"
	"taskplanner/internal/reallocator"
	"taskplanner/pkg/audit"
	"taskplanner/pkg/cache"
	"taskplanner/pkg/config"
	"taskplanner/pkg/logger"
	"taskplanner/pkg/metrics"
	"taskplanner/pkg/plan"
	"taskplanner/pkg/report"
	"taskplanner/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
		}
	}

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	auditLogger, err := audit.New(&audit.Config{
		Enabled:     cfg.Audit.Enabled,
		Backend:     cfg.Audit.Backend,
		FilePath:    cfg.Audit.FilePath,
		BufferSize:  cfg.Audit.BufferSize,
		FlushPeriod: cfg.Audit.FlushPeriod,
	})
	if err != nil {
		logger.Warn("failed to init audit logger, continuing without it", "error", err)
		auditLogger = &audit.NoopLogger{}
	}
	audit.SetGlobal(auditLogger)
	defer auditLogger.Close()

	var solverCache *cache.SolverCache
	if cfg.Cache.Enabled {
		baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Warn("failed to create cache, continuing without it", "error", err)
		} else {
			solverCache = cache.NewSolverCache(baseCache, cfg.Cache.DefaultTTL)
			defer baseCache.Close()
		}
	}

	scenario := builtinScenario()

	allocResult, err := runAllocate(ctx, m, solverCache, scenario, cfg.Solver.MaxIterations)
	if err != nil {
		logger.Fatal("allocation failed", "error", err)
	}
	printJSON(phase1Output{
		Assignments:   allocResult.Assignment,
		TotalCost:     allocResult.TotalCost,
		AssignedCount: allocResult.AssignedCount(),
	})

	slots := slotRange(cfg.Solver.AllowedSlotStart, cfg.Solver.AllowedSlotEnd)
	envelopes := buildEnvelopes(scenario.nodes, slots)

	schedResult, err := runSchedule(ctx, m, scenario, allocResult, envelopes, slots)
	if err != nil {
		logger.Fatal("scheduling failed", "error", err)
	}
	printJSON(toPhase2Output(schedResult))
	if !schedResult.Valid {
		logger.Warn("schedule infeasible, skipping reallocation and local scheduling", "reason", schedResult.Reason)
		return
	}

	reallocResult, err := runReallocate(ctx, m, scenario, schedResult, envelopes)
	if err != nil {
		logger.Fatal("reallocation failed", "error", err)
	}
	printJSON(toPhase3Output(reallocResult))

	localResults := runLocalSchedule(ctx, m, scenario, reallocResult, envelopes, slots)
	for _, lr := range localResults {
		printJSON(toPhase4Output(lr.Result))
	}

	if cfg.Report.Enabled {
		if err := writeReport(cfg.Report.OutputDir, localResults); err != nil {
			logger.Warn("failed to write report", "error", err)
		}
	}
}

// scenario is the fixed demo input: five tasks across three nodes, one
// dependency edge, and a node-failure event exercised in Phase 3.
type scenario struct {
	tasks     []plan.Task
	nodes     []plan.Node
	costs     *plan.CostMatrix
	durations plan.DurationMap
	deps      []plan.Dependency
	events    []reallocator.Event
}

func builtinScenario() scenario {
	tasks := []plan.Task{
		{ID: "T1", CPU: 2, RAM: 4, Deadline: 10},
		{ID: "T2", CPU: 1, RAM: 2, Deadline: 12},
		{ID: "T3", CPU: 4, RAM: 8, Deadline: 15},
		{ID: "T4", CPU: 2, RAM: 2, Deadline: 8},
		{ID: "T5", CPU: 1, RAM: 1, Deadline: 20},
	}
	nodes := []plan.Node{
		{ID: "N1", CPU: 8, RAM: 16, Slots: 3},
		{ID: "N2", CPU: 6, RAM: 12, Slots: 2},
		{ID: "N3", CPU: 4, RAM: 8, Slots: 2},
	}
	costs := &plan.CostMatrix{
		TaskIDs: []string{"T1", "T2", "T3", "T4", "T5"},
		NodeIDs: []string{"N1", "N2", "N3"},
		Cost: [][]int64{
			{1, 2, 3},
			{2, 1, 4},
			{3, 2, 1},
			{1, 3, 2},
			{2, 2, 1},
		},
	}
	durations := plan.DurationMap{"T1": 2, "T2": 1, "T3": 3, "T4": 1, "T5": 2}
	deps := []plan.Dependency{{Before: "T4", After: "T1"}}
	events := []reallocator.Event{
		{Kind: reallocator.NodeFailure, NodeID: "N3"},
		{Kind: reallocator.NewTask, Task: plan.Task{ID: "T6", CPU: 1, RAM: 1, Deadline: 25}},
	}

	return scenario{tasks: tasks, nodes: nodes, costs: costs, durations: durations, deps: deps, events: events}
}

func runAllocate(ctx context.Context, m *metrics.Metrics, solverCache *cache.SolverCache, s scenario, maxIterations int) (allocator.Result, error) {
	var result allocator.Result
	err := telemetry.WrapPhase(ctx, telemetry.PhaseAllocate, nil, func(ctx context.Context) error {
		start := time.Now()

		hash := cache.AllocationHash(s.tasks, s.nodes, s.costs, maxIterations)
		if solverCache != nil {
			if cached, found, err := solverCache.Get(ctx, hash); err == nil && found {
				m.RecordCacheHit()
				result = allocator.Result{Assignment: cached.Assignment, TotalCost: cached.TotalCost, Flow: cached.Flow}
				telemetry.SetAttributes(ctx, telemetry.AllocateAttributes(len(s.tasks), len(s.nodes), result.TotalCost, result.Flow)...)
				m.RecordAllocate(true, time.Since(start), result.TotalCost, len(s.tasks), len(s.nodes))
				auditLog(ctx, "allocate", "Allocator.Solve", audit.ActionAllocate, time.Since(start), nil)
				return nil
			}
			m.RecordCacheMiss()
		}

		a := allocator.New(s.tasks, s.nodes, s.costs)
		result = a.Solve()

		if solverCache != nil {
			_ = solverCache.Set(ctx, hash, &cache.CachedSolveResult{
				Assignment: result.Assignment,
				TotalCost:  result.TotalCost,
				Flow:       result.Flow,
			}, 0)
		}

		telemetry.SetAttributes(ctx, telemetry.AllocateAttributes(len(s.tasks), len(s.nodes), result.TotalCost, result.Flow)...)
		m.RecordAllocate(true, time.Since(start), result.TotalCost, len(s.tasks), len(s.nodes))
		auditLog(ctx, "allocate", "Allocator.Solve", audit.ActionAllocate, time.Since(start), nil)
		return nil
	})
	return result, err
}

// auditLog records one audit entry for a completed phase via the global
// audit logger. A non-nil fault marks the entry as a failure outcome.
func auditLog(ctx context.Context, service, method string, action audit.Action, d time.Duration, fault error) {
	b := audit.NewEntry().Service(service).Method(method).Action(action).Duration(d)
	if fault != nil {
		b = b.Outcome(audit.OutcomeFailure).Error("PHASE_ERROR", fault.Error())
	} else {
		b = b.Outcome(audit.OutcomeSuccess)
	}
	if err := audit.Log(ctx, b.Build()); err != nil {
		logger.Warn("failed to write audit entry", "service", service, "error", err)
	}
}

func slotRange(start, end int64) []int64 {
	if end < start {
		end = start
	}
	slots := make([]int64, 0, end-start+1)
	for s := start; s <= end; s++ {
		slots = append(slots, s)
	}
	return slots
}

func buildEnvelopes(nodes []plan.Node, slots []int64) map[string]*plan.Envelope {
	envelopes := make(map[string]*plan.Envelope, len(nodes))
	for _, n := range nodes {
		env := &plan.Envelope{CPU: make(map[int64]int64, len(slots)), RAM: make(map[int64]int64, len(slots))}
		for _, s := range slots {
			env.CPU[s] = n.CPU
			env.RAM[s] = n.RAM
		}
		envelopes[n.ID] = env
	}
	return envelopes
}

// runSchedule reports an invalid schedule through result.Valid/Reason, not
// through the returned error: an infeasible schedule is a normal outcome
// this CLI still prints, per the schedule JSON shape's "valid"/"reason"
// fields. The returned error is reserved for genuine solver faults.
func runSchedule(ctx context.Context, m *metrics.Metrics, s scenario, alloc allocator.Result, envelopes map[string]*plan.Envelope, slots []int64) (globalscheduler.Result, error) {
	var result globalscheduler.Result
	err := telemetry.WrapPhase(ctx, telemetry.PhaseSchedule, nil, func(ctx context.Context) error {
		start := time.Now()
		sched := globalscheduler.New(s.tasks, alloc.Assignment, slots, envelopes, s.durations, s.deps, alloc.TotalCost)
		result = sched.Solve()
		telemetry.SetAttributes(ctx, telemetry.ScheduleAttributes(len(result.Schedule), len(alloc.Assignment)-len(result.Schedule))...)
		m.RecordSchedule(result.Valid, time.Since(start))
		if !result.Valid {
			telemetry.AddEvent(ctx, "schedule infeasible", attribute.String("reason", result.Reason))
		}
		outcome := audit.OutcomeSuccess
		if !result.Valid {
			outcome = audit.OutcomeFailure
		}
		entry := audit.NewEntry().Service("schedule").Method("Scheduler.Solve").Action(audit.ActionSchedule).
			Outcome(outcome).Duration(time.Since(start))
		if !result.Valid {
			entry = entry.Error("INFEASIBLE", result.Reason)
		}
		if err := audit.Log(ctx, entry.Build()); err != nil {
			logger.Warn("failed to write audit entry", "service", "schedule", "error", err)
		}
		return nil
	})
	return result, err
}

func runReallocate(ctx context.Context, m *metrics.Metrics, s scenario, sched globalscheduler.Result, envelopes map[string]*plan.Envelope) (reallocator.Result, error) {
	var result reallocator.Result
	err := telemetry.WrapPhase(ctx, telemetry.PhaseReallocate, nil, func(ctx context.Context) error {
		start := time.Now()
		nodeOrder := make([]string, len(s.nodes))
		for i, n := range s.nodes {
			nodeOrder[i] = n.ID
		}
		r := reallocator.New(s.tasks, nodeOrder, envelopes, s.durations, sched.Schedule, sched.TotalCost)
		result = r.Apply(s.events)
		for _, ev := range s.events {
			kind := "new_task"
			if ev.Kind == reallocator.NodeFailure {
				kind = "node_failure"
			}
			m.RecordReallocate(kind, time.Since(start), 0)
		}
		m.ChangePenaltyTotal.Add(float64(result.ChangePenalty))
		telemetry.SetAttributes(ctx, telemetry.ReallocateAttributes("batch", int(result.ChangePenalty), len(result.FailedTasks))...)
		auditLog(ctx, "reallocate", "Reallocator.Apply", audit.ActionReallocate, time.Since(start), nil)
		return nil
	})
	return result, err
}

type localResult struct {
	Node   string
	Tasks  []localscheduler.LocalTask
	Result localscheduler.Result
}

func runLocalSchedule(ctx context.Context, m *metrics.Metrics, s scenario, realloc reallocator.Result, envelopes map[string]*plan.Envelope, slots []int64) []localResult {
	byNode := make(map[string][]localscheduler.LocalTask)
	taskByID := make(map[string]plan.Task, len(s.tasks))
	for _, t := range s.tasks {
		taskByID[t.ID] = t
	}
	// T6 arrived mid-run via the demo's new-task event; fold it in so local
	// scheduling sees every task the reallocator placed.
	taskByID["T6"] = plan.Task{ID: "T6", CPU: 1, RAM: 1, Deadline: 25}

	for taskID, placement := range realloc.UpdatedSchedule {
		task := taskByID[taskID]
		byNode[placement.Node] = append(byNode[placement.Node], localscheduler.LocalTask{
			ID:       taskID,
			CPU:      task.CPU,
			RAM:      task.RAM,
			Duration: s.durations.Duration(taskID),
			Deadline: task.Deadline,
		})
	}

	var nodeIDs []string
	for node := range byNode {
		nodeIDs = append(nodeIDs, node)
	}
	sort.Strings(nodeIDs)

	results := make([]localResult, 0, len(nodeIDs))
	for _, node := range nodeIDs {
		localTasks := byNode[node]
		var res localscheduler.Result
		_ = telemetry.WrapPhase(ctx, telemetry.PhaseLocalSchedule, telemetry.LocalScheduleAttributes(node, 0, 0), func(ctx context.Context) error {
			start := time.Now()
			cpuEnv := make(map[int64]int64, len(slots))
			env := envelopes[node]
			for _, slot := range slots {
				if env != nil {
					cpuEnv[slot] = env.CPU[slot]
				}
			}
			res = localscheduler.Solve(localTasks, cpuEnv, slots)
			m.RecordLocalSchedule(node, time.Since(start), res.PenaltyCost)
			telemetry.SetAttributes(ctx, telemetry.LocalScheduleAttributes(node, res.PenaltyCost, res.TotalIdleTime)...)
			entry := audit.NewEntry().Service("local_schedule").Method("localscheduler.Solve").
				Action(audit.ActionLocalSchedule).Outcome(audit.OutcomeSuccess).Resource("node", node).
				Duration(time.Since(start)).Meta("penalty_cost", res.PenaltyCost)
			if err := audit.Log(ctx, entry.Build()); err != nil {
				logger.Warn("failed to write audit entry", "service", "local_schedule", "error", err)
			}
			return nil
		})
		results = append(results, localResult{Node: node, Tasks: localTasks, Result: res})
	}
	return results
}

func writeReport(outputDir string, results []localResult) error {
	schedules := make([]report.NodeSchedule, 0, len(results))
	for _, r := range results {
		schedules = append(schedules, report.NodeSchedule{
			Node:   r.Node,
			Tasks:  r.Tasks,
			Result: r.Result,
		})
	}

	f, err := report.WriteGantt(schedules)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	return f.SaveAs(filepath.Join(outputDir, "gantt.xlsx"))
}

func printJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal phase output", "error", err)
		return
	}
	fmt.Println(string(data))
}

type phase1Output struct {
	Assignments   plan.Assignment `json:"assignments"`
	TotalCost     int64           `json:"total_cost"`
	AssignedCount int             `json:"assigned_count"`
}

type placementOutput struct {
	Node      string `json:"node"`
	StartTime int64  `json:"start_time"`
}

type phase2Output struct {
	Schedule  map[string]placementOutput `json:"schedule"`
	Valid     bool                       `json:"valid"`
	TotalCost int64                      `json:"total_cost"`
	Reason    *string                    `json:"reason"`
}

func toPhase2Output(r globalscheduler.Result) phase2Output {
	sched := make(map[string]placementOutput, len(r.Schedule))
	for id, p := range r.Schedule {
		sched[id] = placementOutput{Node: p.Node, StartTime: p.StartTime}
	}
	var reason *string
	if r.Reason != "" {
		reason = &r.Reason
	}
	return phase2Output{Schedule: sched, Valid: r.Valid, TotalCost: r.TotalCost, Reason: reason}
}

type phase3Output struct {
	UpdatedSchedule map[string][2]any `json:"UpdatedSchedule"`
	ReassignedTasks []string          `json:"ReassignedTasks"`
	FailedTasks     []string          `json:"FailedTasks"`
	TotalCost       int64             `json:"TotalCost"`
	ChangePenalty   int64             `json:"ChangePenalty"`
}

func toPhase3Output(r reallocator.Result) phase3Output {
	updated := make(map[string][2]any, len(r.UpdatedSchedule))
	for id, p := range r.UpdatedSchedule {
		updated[id] = [2]any{p.Node, p.StartTime}
	}
	return phase3Output{
		UpdatedSchedule: updated,
		ReassignedTasks: r.ReassignedTasks,
		FailedTasks:     r.FailedTasks,
		TotalCost:       r.TotalCost,
		ChangePenalty:   r.ChangePenalty,
	}
}

type executionOutput struct {
	StartTime     *int64 `json:"StartTime"`
	MeetsDeadline bool   `json:"MeetsDeadline"`
}

type phase4Output struct {
	ExecutionSchedule map[string]executionOutput `json:"ExecutionSchedule"`
	TotalIdleTime     int64                      `json:"TotalIdleTime"`
	PenaltyCost       int64                      `json:"PenaltyCost"`
}

func toPhase4Output(r localscheduler.Result) phase4Output {
	exec := make(map[string]executionOutput, len(r.Execution))
	for id, e := range r.Execution {
		out := executionOutput{MeetsDeadline: e.MeetsDeadline}
		if e.Placed {
			start := e.StartTime
			out.StartTime = &start
		}
		exec[id] = out
	}
	return phase4Output{ExecutionSchedule: exec, TotalIdleTime: r.TotalIdleTime, PenaltyCost: r.PenaltyCost}
}
