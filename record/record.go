// Package record defines the data model for accumulated series and the
// JSON artifact contract used to persist and reload them.
//
// Three artifacts exist per accumulator, named by appending a fixed suffix
// to the accumulator's base path: step data (one object per iteration with
// absolutes, info and individual calls), a summary (per-step statistics,
// GLOBAL last) and memory data (one object per iteration with per-topic
// snapshot lists). Key names are part of the on-disk contract and must not
// change.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// GlobalKey is the reserved step name holding the wall-clock time of
	// the whole iteration.
	GlobalKey = "GLOBAL"

	// StartTimeKey and StopTimeKey are the reserved scalar fields marking
	// when an iteration opened and closed (epoch seconds).
	StartTimeKey = "START_TIME"
	StopTimeKey  = "STOP_TIME"

	// Artifact file suffixes, appended to an accumulator's base path.
	StepDataSuffix = "_STEP_DICT_DATA"
	SummarySuffix  = "_STEP_DICT_SUMMARY"
	MemorySuffix   = "_MEMORY"

	// SessionDirName is the directory session subdirectories are created
	// under.
	SessionDirName = "TICTOC_PERFORMANCE"
)

// CallRecord is a single step() call inside an iteration.
type CallRecord struct {
	Time         float64 `json:"time"`
	CronoCounter int     `json:"crono_counter"`
	Extra        any     `json:"extra"`
}

// Iteration is one global step, either still being built or already
// closed: a mapping from step name to the calls recorded under it, plus
// epoch timestamps marking when the iteration opened and closed.
type Iteration struct {
	Calls     map[string][]CallRecord
	StartTime float64
	StopTime  float64
}

// NewIteration returns an empty iteration opened at the given epoch time.
func NewIteration(start float64) *Iteration {
	return &Iteration{
		Calls:     make(map[string][]CallRecord),
		StartTime: start,
	}
}

// Append records a call under the given step name.
func (it *Iteration) Append(name string, rec CallRecord) {
	it.Calls[name] = append(it.Calls[name], rec)
}

// Has reports whether any call was recorded under name.
func (it *Iteration) Has(name string) bool {
	_, ok := it.Calls[name]
	return ok
}

// Len returns the number of distinct step names recorded.
func (it *Iteration) Len() int {
	return len(it.Calls)
}

// Names returns the recorded step names in sorted order.
func (it *Iteration) Names() []string {
	names := make([]string, 0, len(it.Calls))
	for name := range it.Calls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy whose call slices are independent of the original,
// so a snapshot taken for saving cannot be mutated by concurrent appends.
func (it *Iteration) Clone() *Iteration {
	cp := &Iteration{
		Calls:     make(map[string][]CallRecord, len(it.Calls)),
		StartTime: it.StartTime,
		StopTime:  it.StopTime,
	}
	for name, calls := range it.Calls {
		cp.Calls[name] = append([]CallRecord(nil), calls...)
	}
	return cp
}

// IterationInfo is the info section shared by the step-data and memory
// artifacts.
type IterationInfo struct {
	StepNumber int     `json:"STEP_NUMBER"`
	StartTime  float64 `json:"START_TIME"`
	StopTime   float64 `json:"STOP_TIME"`
}

// StepRow is one iteration as persisted in the step-data artifact.
type StepRow struct {
	Absolutes       map[string]float64      `json:"absolutes"`
	Info            IterationInfo           `json:"info"`
	IndividualCalls map[string][]CallRecord `json:"individual_calls"`
}

// StepStats is the per-step block of the summary artifact.
type StepStats struct {
	Mean             float64 `json:"mean"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	QuantileFiltered float64 `json:"quantile_filtered"`
}

// Summary maps step names to statistics while preserving insertion order,
// so GLOBAL can be serialized as the last key.
type Summary struct {
	names []string
	stats map[string]StepStats
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{stats: make(map[string]StepStats)}
}

// Set appends or updates the statistics recorded under name.
func (s *Summary) Set(name string, st StepStats) {
	if _, ok := s.stats[name]; !ok {
		s.names = append(s.names, name)
	}
	s.stats[name] = st
}

// Get returns the statistics recorded under name.
func (s *Summary) Get(name string) (StepStats, bool) {
	st, ok := s.stats[name]
	return st, ok
}

// Names returns the step names in insertion order.
func (s *Summary) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of steps summarized.
func (s *Summary) Len() int {
	return len(s.names)
}

// MarshalJSON writes the summary as a JSON object with keys in insertion
// order.
func (s *Summary) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, name := range s.names {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.stats[name])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// AcceleratorStats holds accelerator memory counters in bytes, recorded
// when an accelerator probe is installed.
type AcceleratorStats struct {
	Allocated    int64 `json:"allocated"`
	Reserved     int64 `json:"reserved"`
	MaxAllocated int64 `json:"max_allocated"`
	MaxReserved  int64 `json:"max_reserved"`
}

// TopObject is one entry of the bounded largest-live-allocations list. It
// serializes as a two-element [name, bytes] array for artifact
// compatibility.
type TopObject struct {
	Name  string
	Bytes int64
}

// MarshalJSON writes the entry as ["name", bytes].
func (o TopObject) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{o.Name, o.Bytes})
}

// UnmarshalJSON reads a ["name", bytes] pair.
func (o *TopObject) UnmarshalJSON(data []byte) error {
	var pair [2]json.Number
	raw := [2]any{&o.Name, &pair[1]}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("top object entry: %w", err)
	}
	n, err := pair[1].Int64()
	if err != nil {
		return fmt.Errorf("top object size: %w", err)
	}
	o.Bytes = n
	return nil
}

// MemorySnapshot is one memory measurement inside an iteration. The JSON
// keys match the artifact contract byte for byte.
type MemorySnapshot struct {
	TotalMemoryUsage int64             `json:"total memory usage"`
	Accelerator      *AcceleratorStats `json:"cuda memory usage"`
	TopObjects       []TopObject       `json:"top_memory_objects"`
	CronoCounter     int               `json:"crono_counter"`
	Extra            any               `json:"extra"`
	PeakMemoryUsage  *int64            `json:"max memory usage"`
}

// MemoryIteration parallels Iteration for memory snapshots, keyed by the
// topic the snapshot was taken under.
type MemoryIteration struct {
	Topics    map[string][]MemorySnapshot
	StartTime float64
	StopTime  float64
}

// NewMemoryIteration returns an empty memory iteration.
func NewMemoryIteration() *MemoryIteration {
	return &MemoryIteration{Topics: make(map[string][]MemorySnapshot)}
}

// Append records a snapshot under the given topic.
func (it *MemoryIteration) Append(topic string, snap MemorySnapshot) {
	it.Topics[topic] = append(it.Topics[topic], snap)
}

// Clone returns a copy with independent snapshot slices.
func (it *MemoryIteration) Clone() *MemoryIteration {
	cp := &MemoryIteration{
		Topics:    make(map[string][]MemorySnapshot, len(it.Topics)),
		StartTime: it.StartTime,
		StopTime:  it.StopTime,
	}
	for topic, snaps := range it.Topics {
		cp.Topics[topic] = append([]MemorySnapshot(nil), snaps...)
	}
	return cp
}

// MemoryRow is one iteration as persisted in the memory artifact.
type MemoryRow struct {
	Info IterationInfo               `json:"info"`
	Data map[string][]MemorySnapshot `json:"data"`
}
