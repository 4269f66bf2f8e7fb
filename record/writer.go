package record

import (
	"encoding/json"
	"fmt"
	"os"
)

// FormatStepRows converts closed iterations into the persisted step-data
// shape. Absolutes are the per-step sums of call durations; the reserved
// timestamp fields are carried into the info block.
func FormatStepRows(iterations []*Iteration) []StepRow {
	rows := make([]StepRow, 0, len(iterations))
	for i, it := range iterations {
		row := StepRow{
			Absolutes: make(map[string]float64, it.Len()),
			Info: IterationInfo{
				StepNumber: i,
				StartTime:  it.StartTime,
				StopTime:   it.StopTime,
			},
			IndividualCalls: make(map[string][]CallRecord, it.Len()),
		}
		for name, calls := range it.Calls {
			var total float64
			for _, c := range calls {
				total += c.Time
			}
			row.Absolutes[name] = total
			row.IndividualCalls[name] = append([]CallRecord(nil), calls...)
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatMemoryRows converts closed memory iterations into the persisted
// shape.
func FormatMemoryRows(iterations []*MemoryIteration) []MemoryRow {
	rows := make([]MemoryRow, 0, len(iterations))
	for i, it := range iterations {
		rows = append(rows, MemoryRow{
			Info: IterationInfo{
				StepNumber: i,
				StartTime:  it.StartTime,
				StopTime:   it.StopTime,
			},
			Data: it.Topics,
		})
	}
	return rows
}

// WriteStepData writes the step-data artifact for base, overwriting any
// previous file.
func WriteStepData(base string, rows []StepRow) error {
	return writeJSON(base+StepDataSuffix+".json", rows)
}

// WriteSummary writes the summary artifact for base.
func WriteSummary(base string, summary *Summary) error {
	return writeJSON(base+SummarySuffix+".json", summary)
}

// WriteMemoryData writes the memory artifact for base.
func WriteMemoryData(base string, rows []MemoryRow) error {
	return writeJSON(base+MemorySuffix+".json", rows)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
