package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys shared across the four planning phases.
const (
	AttrTaskCount = "plan.task_count"
	AttrNodeCount = "plan.node_count"

	AttrAllocateTotalCost = "allocate.total_cost"
	AttrAllocateFlow      = "allocate.flow"

	AttrScheduleAssigned = "schedule.assigned_count"
	AttrScheduleFailed   = "schedule.failed_count"

	AttrReallocateEventKind     = "reallocate.event_kind"
	AttrReallocateChangePenalty = "reallocate.change_penalty"
	AttrReallocateFailedCount   = "reallocate.failed_count"

	AttrLocalScheduleNode      = "local_schedule.node"
	AttrLocalScheduleLateness  = "local_schedule.lateness"
	AttrLocalScheduleIdleTicks = "local_schedule.idle_ticks"
)

// AllocateAttributes returns the attributes recorded on an allocate span.
func AllocateAttributes(taskCount, nodeCount int, totalCost, flow int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTaskCount, taskCount),
		attribute.Int(AttrNodeCount, nodeCount),
		attribute.Int64(AttrAllocateTotalCost, totalCost),
		attribute.Int64(AttrAllocateFlow, flow),
	}
}

// ScheduleAttributes returns the attributes recorded on a schedule span.
func ScheduleAttributes(assigned, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrScheduleAssigned, assigned),
		attribute.Int(AttrScheduleFailed, failed),
	}
}

// ReallocateAttributes returns the attributes recorded on a reallocate span.
func ReallocateAttributes(eventKind string, changePenalty, failedCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrReallocateEventKind, eventKind),
		attribute.Int(AttrReallocateChangePenalty, changePenalty),
		attribute.Int(AttrReallocateFailedCount, failedCount),
	}
}

// LocalScheduleAttributes returns the attributes recorded on a local_schedule span.
func LocalScheduleAttributes(node string, lateness, idleTicks int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLocalScheduleNode, node),
		attribute.Int64(AttrLocalScheduleLateness, lateness),
		attribute.Int64(AttrLocalScheduleIdleTicks, idleTicks),
	}
}
