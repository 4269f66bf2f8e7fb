package bench

import (
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/tictocbench/tictoc/record"
)

// MemoryProbe returns the current resident-set bytes of the process.
type MemoryProbe func() int64

// AcceleratorProbe returns memory counters for an attached accelerator
// device. The second return value is false when no device is present, in
// which case accelerator tracking silently contributes no data.
type AcceleratorProbe func() (record.AcceleratorStats, bool)

// ProcessRSS reads the resident-set size from /proc/self/statm. When the
// proc filesystem is unavailable it falls back to the runtime's heap
// accounting, which undercounts but never fails.
func ProcessRSS() int64 {
	if rss, ok := statmRSS(); ok {
		return rss
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapInuse + ms.StackInuse)
}

func statmRSS() (int64, bool) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, false
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return pages * int64(os.Getpagesize()), true
}

// TopHeapConsumers returns the n allocation sites currently holding the
// most live heap bytes, largest first. The site name is the innermost
// non-runtime frame of the allocation stack. Returns nil when n is zero
// or heap profiling data is unavailable.
func TopHeapConsumers(n int) []record.TopObject {
	if n <= 0 {
		return nil
	}

	prof := make([]runtime.MemProfileRecord, 64)
	for {
		count, ok := runtime.MemProfile(prof, false)
		if ok {
			prof = prof[:count]
			break
		}
		prof = make([]runtime.MemProfileRecord, count+count/2+10)
	}

	var top []record.TopObject
	for i := range prof {
		size := prof[i].InUseBytes()
		if size <= 0 {
			continue
		}
		if len(top) < n {
			top = append(top, record.TopObject{Name: siteName(prof[i].Stack()), Bytes: size})
			sortTop(top)
		} else if size > top[len(top)-1].Bytes {
			top[len(top)-1] = record.TopObject{Name: siteName(prof[i].Stack()), Bytes: size}
			sortTop(top)
		}
	}
	return top
}

func sortTop(top []record.TopObject) {
	sort.Slice(top, func(i, j int) bool { return top[i].Bytes > top[j].Bytes })
}

func siteName(stack []uintptr) string {
	for _, pc := range stack {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.HasPrefix(name, "runtime.") {
			continue
		}
		return name
	}
	return "unknown"
}
