// Package report renders planning results as a human-inspectable Excel
// workbook. It is an adapter: nothing under internal/ imports it, and it
// exists solely to turn a computed plan into something a person can open.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"taskplanner/internal/localscheduler"
)

// NodeSchedule is one node's Phase 4 result plus enough of its input to
// render a Gantt worksheet: the task durations (for column span) and the
// time axis to lay out.
type NodeSchedule struct {
	Node      string
	Tasks     []localscheduler.LocalTask
	Result    localscheduler.Result
	SlotStart int64
	SlotEnd   int64 // inclusive
}

const ganttHeaderRow = 1
const ganttFirstTaskRow = 2
const ganttTaskCol = 1 // column A holds task ids

// WriteGantt renders one worksheet per node: rows are tasks (ordered as
// given), columns are time slots from SlotStart to SlotEnd inclusive, and
// occupied cells are shaded. Unplaced tasks get a row with no shaded cells
// and a "MISSED" note in the column after the last time slot.
func WriteGantt(schedules []NodeSchedule) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("report: build header style: %w", err)
	}

	occupiedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"A9D18E"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("report: build occupied style: %w", err)
	}

	missedStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "C00000", Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("report: build missed style: %w", err)
	}

	for i, ns := range schedules {
		sheetName := sanitizeSheetName(ns.Node)
		if i == 0 {
			f.SetSheetName("Sheet1", sheetName)
		} else if _, err := f.NewSheet(sheetName); err != nil {
			return nil, fmt.Errorf("report: add sheet %q: %w", sheetName, err)
		}

		if err := writeNodeSheet(f, sheetName, ns, headerStyle, occupiedStyle, missedStyle); err != nil {
			return nil, err
		}
	}

	if len(schedules) == 0 {
		f.SetSheetName("Sheet1", "empty")
	}

	return f, nil
}

func writeNodeSheet(f *excelize.File, sheetName string, ns NodeSchedule, headerStyle, occupiedStyle, missedStyle int) error {
	if err := f.SetCellValue(sheetName, cellAt(ganttTaskCol, ganttHeaderRow), "Task"); err != nil {
		return err
	}
	for slot := ns.SlotStart; slot <= ns.SlotEnd; slot++ {
		col := ganttTaskCol + 1 + int(slot-ns.SlotStart)
		if err := f.SetCellValue(sheetName, cellAt(col, ganttHeaderRow), slot); err != nil {
			return err
		}
	}
	lastCol := ganttTaskCol + 1 + int(ns.SlotEnd-ns.SlotStart)
	if err := f.SetCellStyle(sheetName, cellAt(ganttTaskCol, ganttHeaderRow), cellAt(lastCol, ganttHeaderRow), headerStyle); err != nil {
		return err
	}

	for i, task := range ns.Tasks {
		row := ganttFirstTaskRow + i
		if err := f.SetCellValue(sheetName, cellAt(ganttTaskCol, row), task.ID); err != nil {
			return err
		}

		exec, ok := ns.Result.Execution[task.ID]
		if !ok || !exec.Placed {
			if err := f.SetCellValue(sheetName, cellAt(lastCol+1, row), "MISSED"); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetName, cellAt(lastCol+1, row), cellAt(lastCol+1, row), missedStyle); err != nil {
				return err
			}
			continue
		}

		for slot := exec.StartTime; slot < exec.StartTime+task.Duration; slot++ {
			if slot < ns.SlotStart || slot > ns.SlotEnd {
				continue
			}
			col := ganttTaskCol + 1 + int(slot-ns.SlotStart)
			if err := f.SetCellStyle(sheetName, cellAt(col, row), cellAt(col, row), occupiedStyle); err != nil {
				return err
			}
		}
		if !exec.MeetsDeadline {
			if err := f.SetCellValue(sheetName, cellAt(lastCol+1, row), "LATE"); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetName, cellAt(lastCol+1, row), cellAt(lastCol+1, row), missedStyle); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(sheetName, "A", "A", 14)
}

func cellAt(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// col/row are always >= 1 by construction; a negative coordinate
		// here is a programmer error, not a runtime condition to recover from.
		panic(fmt.Sprintf("report: invalid cell coordinates (%d, %d): %v", col, row, err))
	}
	return name
}

func sanitizeSheetName(node string) string {
	if node == "" {
		return "node"
	}
	if len(node) > 31 {
		return node[:31]
	}
	return node
}
