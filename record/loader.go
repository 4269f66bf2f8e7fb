package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tictocbench/tictoc/clock"
)

// Session holds the artifacts loaded back from one session directory,
// keyed by accumulator name.
type Session struct {
	Path      string
	StepData  map[string][]StepRow
	Summaries map[string]*Summary
	Memory    map[string][]MemoryRow
}

// Names returns the accumulator names present in the session, sorted.
func (s *Session) Names() []string {
	seen := make(map[string]struct{})
	for name := range s.StepData {
		seen[name] = struct{}{}
	}
	for name := range s.Summaries {
		seen[name] = struct{}{}
	}
	for name := range s.Memory {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LatestSession returns the most recent session directory under root,
// judged by parsing each directory name as a session timestamp. Non
// matching entries are skipped.
func LatestSession(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading session root %s: %w", root, err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := time.Parse(clock.TimestampLayout, e.Name())
		if err != nil {
			continue
		}
		if best == "" || ts.After(bestTime) {
			best = e.Name()
			bestTime = ts
		}
	}
	if best == "" {
		return "", fmt.Errorf("no session directories under %s", root)
	}
	return filepath.Join(root, best), nil
}

// LoadSession reads every artifact in dir, validating each file against
// its schema before decoding.
func LoadSession(dir string) (*Session, error) {
	sess := &Session{
		Path:      dir,
		StepData:  make(map[string][]StepRow),
		Summaries: make(map[string]*Summary),
		Memory:    make(map[string][]MemoryRow),
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scanning session %s: %w", dir, err)
	}
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".json")
		switch {
		case strings.HasSuffix(base, StepDataSuffix):
			name := strings.TrimSuffix(base, StepDataSuffix)
			rows, err := loadStepData(path)
			if err != nil {
				return nil, err
			}
			sess.StepData[name] = rows
		case strings.HasSuffix(base, SummarySuffix):
			name := strings.TrimSuffix(base, SummarySuffix)
			summary, err := loadSummary(path)
			if err != nil {
				return nil, err
			}
			sess.Summaries[name] = summary
		case strings.HasSuffix(base, MemorySuffix):
			name := strings.TrimSuffix(base, MemorySuffix)
			rows, err := loadMemory(path)
			if err != nil {
				return nil, err
			}
			sess.Memory[name] = rows
		}
	}
	return sess, nil
}

func loadStepData(path string) ([]StepRow, error) {
	data, err := readArtifact(path, ValidateStepData)
	if err != nil {
		return nil, err
	}
	var rows []StepRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rows, nil
}

// loadSummary decodes a summary file preserving its key order, so a
// reloaded summary still ends with GLOBAL.
func loadSummary(path string) (*Summary, error) {
	data, err := readArtifact(path, ValidateSummary)
	if err != nil {
		return nil, err
	}

	summary := NewSummary()
	var decodeErr error
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		var st StepStats
		if err := json.Unmarshal([]byte(value.Raw), &st); err != nil {
			decodeErr = fmt.Errorf("decoding %s entry %q: %w", path, key.String(), err)
			return false
		}
		summary.Set(key.String(), st)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return summary, nil
}

func loadMemory(path string) ([]MemoryRow, error) {
	data, err := readArtifact(path, ValidateMemory)
	if err != nil {
		return nil, err
	}
	var rows []MemoryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return rows, nil
}

func readArtifact(path string, validate func(any) error) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("reading %s: not valid JSON", path)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
