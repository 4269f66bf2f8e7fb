package bench

import (
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tictocbench/tictoc/clock"
	"github.com/tictocbench/tictoc/record"
)

// Registry is a lazily populated mapping from workload name to
// Accumulator, with global enable/disable and global save. Construct one
// per process (or per test) and pass it around explicitly; there is no
// package-level singleton.
type Registry struct {
	mu          sync.Mutex
	accums      map[string]*Accumulator
	enabled     bool
	timeString  string
	defaultPath string
	log         *zap.Logger
	accOpts     []Option
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithRegistryLogger installs a logger shared by the registry and every
// accumulator it creates.
func WithRegistryLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithAccumulatorOptions sets options applied to every accumulator the
// registry creates.
func WithAccumulatorOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.accOpts = append(r.accOpts, opts...)
	}
}

// NewRegistry returns an enabled registry whose accumulators write under
// a session-timestamped directory.
func NewRegistry(opts ...RegistryOption) *Registry {
	ts := clock.Timestamp()
	r := &Registry{
		accums:      make(map[string]*Accumulator),
		enabled:     true,
		timeString:  ts,
		defaultPath: filepath.Join(record.SessionDirName, ts),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDefaultPath re-derives a fresh session timestamp under path for
// accumulators created afterwards. Existing accumulators keep their
// original paths.
func (r *Registry) SetDefaultPath(path string) {
	r.mu.Lock()
	r.timeString = clock.Timestamp()
	r.defaultPath = filepath.Join(path, r.timeString)
	r.mu.Unlock()
}

// DefaultPath returns the session directory new accumulators write under.
func (r *Registry) DefaultPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultPath
}

// Lookup returns the accumulator registered under name, creating it on
// first access. Accumulators created after a Disable call start enabled;
// disabling the registry is not retroactive for later names.
func (r *Registry) Lookup(name string) *Accumulator {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accums[name]
	if !ok {
		opts := append([]Option{WithLogger(r.log)}, r.accOpts...)
		acc = NewAccumulator(filepath.Join(r.defaultPath, name), opts...)
		r.accums[name] = acc
		r.log.Debug("registered accumulator",
			zap.String("name", name), zap.String("file", acc.File()))
	}
	return acc
}

// Names returns the registered workload names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.accums))
	for name := range r.accums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enable enables the registry and every registered accumulator.
func (r *Registry) Enable() {
	r.mu.Lock()
	r.enabled = true
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	for _, acc := range snapshot {
		acc.Enable()
	}
}

// Disable disables the registry and every registered accumulator.
func (r *Registry) Disable() {
	r.mu.Lock()
	r.enabled = false
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	for _, acc := range snapshot {
		acc.Disable()
	}
}

// Save writes artifacts for every registered accumulator. A no-op when
// the registry is disabled. Failures are aggregated so one broken sink
// does not stop the remaining accumulators from saving.
func (r *Registry) Save() error {
	r.mu.Lock()
	enabled := r.enabled
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if !enabled {
		return nil
	}

	var err error
	for _, acc := range snapshot {
		if saveErr := acc.SaveData(); saveErr != nil {
			r.log.Error("saving accumulator failed",
				zap.String("file", acc.File()), zap.Error(saveErr))
			err = multierr.Append(err, saveErr)
		}
	}
	return err
}

// snapshotLocked copies the accumulator list so callers can fan out
// without holding the registry lock against each accumulator's own lock.
func (r *Registry) snapshotLocked() []*Accumulator {
	snapshot := make([]*Accumulator, 0, len(r.accums))
	for _, acc := range r.accums {
		snapshot = append(snapshot, acc)
	}
	return snapshot
}
