// Package series post-processes accumulated iterations: per-step summary
// statistics with outlier filtering, chronological flattening of call and
// memory records, quiet-region filtering and repeated-pattern cluster
// detection.
package series

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tictocbench/tictoc/record"
)

// Entry is one point of a chronological series: a named step with its
// measured value, in call order within an iteration.
type Entry struct {
	StepName   string
	StepNumber int
	Total      float64
}

// SummarizeOptions tunes the summary statistics.
type SummarizeOptions struct {
	// Percentile sets the upper percentile of the outlier fence. Zero
	// means the default of 75.
	Percentile float64

	// FilterBelow raises the lower fence, dropping values below it from
	// the filtered mean.
	FilterBelow float64
}

// Summarize reduces closed iterations to per-step statistics. For each
// step it reports the mean, min and max of the per-iteration totals plus
// a mean over the values inside a percentile fence of 1.5 times the
// inter-percentile range. The GLOBAL entry is always ordered last.
//
// The second return value is the raw per-step series keyed by iteration
// number, for callers that want to plot or filter further.
func Summarize(iterations []*record.Iteration, opts SummarizeOptions) (*record.Summary, map[string]map[int]float64) {
	pct := opts.Percentile
	if pct == 0 {
		pct = 75
	}

	series := make(map[string]map[int]float64)
	var order []string
	for stepNumber, it := range iterations {
		for _, name := range it.Names() {
			total := 0.0
			for _, c := range it.Calls[name] {
				total += c.Time
			}
			if _, ok := series[name]; !ok {
				series[name] = make(map[int]float64)
				order = append(order, name)
			}
			series[name][stepNumber] = total
		}
	}

	summary := record.NewSummary()
	for _, name := range order {
		if name == record.GlobalKey {
			continue
		}
		summary.Set(name, stats(values(series[name]), pct, opts.FilterBelow))
	}
	if vals, ok := series[record.GlobalKey]; ok {
		summary.Set(record.GlobalKey, stats(values(vals), pct, opts.FilterBelow))
	}
	return summary, series
}

func values(m map[int]float64) []float64 {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	vals := make([]float64, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return vals
}

func stats(vals []float64, pct, filterBelow float64) record.StepStats {
	var st record.StepStats
	if len(vals) == 0 {
		return st
	}

	var sum float64
	minVal, maxVal := vals[0], vals[0]
	for _, v := range vals {
		sum += v
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	st.Mean = sum / float64(len(vals))
	st.Min = minVal
	st.Max = maxVal

	upper := Percentile(vals, pct)
	lower := Percentile(vals, 100-pct)
	fence := (upper - lower) * 1.5
	upperBound := upper + fence
	lowerBound := math.Max(lower-fence, filterBelow)

	var fsum float64
	var fcount int
	for _, v := range vals {
		if v >= lowerBound && v <= upperBound {
			fsum += v
			fcount++
		}
	}
	if fcount == 0 {
		// The fence excluded everything, which can only happen with an
		// aggressive FilterBelow. Fall back to the plain mean.
		st.QuantileFiltered = st.Mean
	} else {
		st.QuantileFiltered = fsum / float64(fcount)
	}
	return st
}

// Percentile computes the p-th percentile of vals with linear
// interpolation between closest ranks. p is clamped to [0, 100].
func Percentile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// ChronoFromCalls flattens one persisted step-data row into call order
// using the per-call chronological counters.
func ChronoFromCalls(row record.StepRow) []Entry {
	byCounter := make(map[int]Entry)
	for name, calls := range row.IndividualCalls {
		for _, c := range calls {
			byCounter[c.CronoCounter] = Entry{
				StepName:   name,
				StepNumber: row.Info.StepNumber,
				Total:      c.Time,
			}
		}
	}
	return ordered(byCounter)
}

// ChronoFromMemory flattens one persisted memory row into call order,
// carrying the total memory usage of each snapshot.
func ChronoFromMemory(row record.MemoryRow) []Entry {
	byCounter := make(map[int]Entry)
	for topic, snaps := range row.Data {
		for _, s := range snaps {
			byCounter[s.CronoCounter] = Entry{
				StepName:   topic,
				StepNumber: row.Info.StepNumber,
				Total:      float64(s.TotalMemoryUsage),
			}
		}
	}
	return ordered(byCounter)
}

func ordered(byCounter map[int]Entry) []Entry {
	counters := make([]int, 0, len(byCounter))
	for c := range byCounter {
		counters = append(counters, c)
	}
	sort.Ints(counters)
	entries := make([]Entry, len(counters))
	for i, c := range counters {
		entries[i] = byCounter[c]
	}
	return entries
}

// FilterNoChange splits a chronological series into entries whose value
// moved by more than a fraction of the series range since the last kept
// entry, and the rejected remainder. The first entry is always kept. A
// negative or NaN threshold falls back to 0.05.
func FilterNoChange(threshold float64, entries []Entry) (kept, rejected []Entry) {
	if len(entries) == 0 {
		return nil, nil
	}
	if math.IsNaN(threshold) || threshold < 0 {
		threshold = 0.05
	}

	minVal, maxVal := seriesRange(entries)
	fence := (maxVal - minVal) * threshold

	kept = []Entry{entries[0]}
	current := entries[0].Total
	for _, e := range entries[1:] {
		if math.Abs(e.Total-current) > fence {
			kept = append(kept, e)
			current = e.Total
		} else {
			rejected = append(rejected, e)
		}
	}
	return kept, rejected
}

// FindClusters collapses repeated step-name patterns in a chronological
// series. Patterns up to maxLength long that repeat back to back are
// merged into one entry labeled "a || b xN", unless any value inside the
// repeated span deviates from the pattern start by more than spikeFraction
// of the series range. Such a spike breaks the cluster so the deviation
// stays visible.
func FindClusters(entries []Entry, maxLength int, spikeFraction float64) []Entry {
	if len(entries) == 0 {
		return nil
	}

	sequence := make([]string, len(entries))
	for i, e := range entries {
		sequence[i] = e.StepName
	}
	minVal, maxVal := seriesRange(entries)
	spikeFence := (maxVal - minVal) * spikeFraction

	var out []Entry
	i := 0
	for i < len(sequence) {
		currentCluster := []string{sequence[i]}
		count := 1
		currentValue := entries[i].Total
		spike := false
		matched := false

		for j := 0; j < maxLength; j++ {
			pattern := clamp(sequence, i, i+j+1)
			for i+j < len(sequence) && equal(pattern, clamp(sequence, i+j+1, i+j+2+j)) && !spike {
				for _, e := range entries[i:min(i+j+2+j, len(entries))] {
					if math.Abs(e.Total-currentValue) > spikeFence {
						spike = true
					}
				}
				if spike {
					break
				}
				currentCluster = clamp(sequence, i, i+j+1)
				count++
				i += j + 1
				matched = true
			}
		}
		if matched {
			i++
		}

		entry := entries[min(i, len(entries)-1)]
		if count > 1 {
			entry.StepName = strings.Join(currentCluster, " || ") + " x" + strconv.Itoa(count)
		}
		out = append(out, entry)
		i++
	}
	return out
}

func seriesRange(entries []Entry) (minVal, maxVal float64) {
	minVal, maxVal = entries[0].Total, entries[0].Total
	for _, e := range entries[1:] {
		if e.Total < minVal {
			minVal = e.Total
		}
		if e.Total > maxVal {
			maxVal = e.Total
		}
	}
	return minVal, maxVal
}

func clamp(seq []string, lo, hi int) []string {
	if lo > len(seq) {
		lo = len(seq)
	}
	if hi > len(seq) {
		hi = len(seq)
	}
	return seq[lo:hi]
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
