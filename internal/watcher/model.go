// Package watcher holds the reconciled model of supervised process groups:
// the entity set the poll loop and the stats stream both write into, and the
// only state the rendering layer reads.
package watcher

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Statuses the daemon reports for a watcher. Other values pass through
// opaquely; process-id presence, not the status string, decides whether a
// watcher counts as down.
const (
	StatusStopped = "stopped"
	StatusActive  = "active"
)

// PlaceholderPID stands in for a process id we know exists but have not
// polled yet (a command just succeeded). The next refresh replaces it.
const PlaceholderPID = 0

// Watcher is one supervised process group.
type Watcher struct {
	Name          string
	Singleton     bool
	ProcessIDs    []int // sorted
	Status        string
	AggregateCPU  float64 // ratio in [0,1], stream-reported
	AggregateMem  float64 // ratio in [0,1], stream-reported
	PIDsUpdatedAt time.Time
}

// Down reports whether the watcher has no running processes.
func (w Watcher) Down() bool {
	return len(w.ProcessIDs) == 0
}

// Model owns the watcher set. All mutation goes through its methods under
// one mutex; readers get copies. The change hook fires outside the lock
// after any effective update.
type Model struct {
	mu        sync.RWMutex
	watchers  map[string]*Watcher
	forgotten map[string]struct{}
	onChange  func()
	now       func() time.Time
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		watchers:  make(map[string]*Watcher),
		forgotten: make(map[string]struct{}),
		now:       time.Now,
	}
}

// OnChange registers the change-notification hook. Must be called before
// the loops start; there is no unregistration.
func (m *Model) OnChange(fn func()) {
	m.onChange = fn
}

func (m *Model) fire(changed bool) bool {
	if changed && m.onChange != nil {
		m.onChange()
	}
	return changed
}

// Forget marks names as never to be displayed or polled and drops any
// already-materialized entries for them.
func (m *Model) Forget(names ...string) {
	m.mu.Lock()
	changed := false
	for _, name := range names {
		m.forgotten[name] = struct{}{}
		if _, ok := m.watchers[name]; ok {
			delete(m.watchers, name)
			changed = true
		}
	}
	m.mu.Unlock()
	m.fire(changed)
}

// Forgotten reports whether name is in the forget set.
func (m *Model) Forgotten(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.forgotten[name]
	return ok
}

// Materialize creates the watcher on first discovery: empty process-id set,
// status stopped. Reports whether an entry was created.
func (m *Model) Materialize(name string, singleton bool) bool {
	m.mu.Lock()
	if _, forgotten := m.forgotten[name]; forgotten {
		m.mu.Unlock()
		return false
	}
	if _, exists := m.watchers[name]; exists {
		m.mu.Unlock()
		return false
	}
	m.watchers[name] = &Watcher{Name: name, Singleton: singleton, Status: StatusStopped}
	m.mu.Unlock()
	return m.fire(true)
}

// ApplyPoll merges one refresh result. Diff before mutate: if the sorted
// process-id set and the status are both unchanged, nothing is written and
// no notification fires. An empty status leaves the stored one alone.
func (m *Model) ApplyPoll(name string, pids []int, status string) bool {
	sorted := append([]int(nil), pids...)
	sort.Ints(sorted)

	m.mu.Lock()
	w, ok := m.watchers[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	pidsChanged := !slices.Equal(sorted, w.ProcessIDs)
	statusChanged := status != "" && status != w.Status
	if pidsChanged {
		w.ProcessIDs = sorted
		w.PIDsUpdatedAt = m.now()
	}
	if statusChanged {
		w.Status = status
	}
	m.mu.Unlock()
	return m.fire(pidsChanged || statusChanged)
}

// ApplyStream merges one stats-stream update. Overwriting the process-id set
// without a prior value check is the push path's right; aggregate metrics
// are taken only when the set is non-empty. Unknown names are dropped
// silently — the stream may run ahead of discovery.
func (m *Model) ApplyStream(name string, pids []int, cpu, mem float64) bool {
	sorted := append([]int(nil), pids...)
	sort.Ints(sorted)

	m.mu.Lock()
	w, ok := m.watchers[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	w.ProcessIDs = sorted
	w.PIDsUpdatedAt = m.now()
	if len(sorted) > 0 {
		w.AggregateCPU = cpu
		w.AggregateMem = mem
	}
	m.mu.Unlock()
	return m.fire(true)
}

// Prune drops watchers whose names are absent from the fresh discovery
// result and returns the removed names.
func (m *Model) Prune(seen map[string]bool) []string {
	m.mu.Lock()
	var removed []string
	for name := range m.watchers {
		if !seen[name] {
			delete(m.watchers, name)
			removed = append(removed, name)
		}
	}
	m.mu.Unlock()
	sort.Strings(removed)
	m.fire(len(removed) > 0)
	return removed
}

// AppendPlaceholderPID optimistically grows the process-id set after a
// successful start/incr, before the next poll reports the real pid.
func (m *Model) AppendPlaceholderPID(name string) {
	m.mu.Lock()
	w, ok := m.watchers[name]
	if ok {
		w.ProcessIDs = append([]int{PlaceholderPID}, w.ProcessIDs...)
		w.PIDsUpdatedAt = m.now()
	}
	m.mu.Unlock()
	m.fire(ok)
}

// PopPID optimistically shrinks the process-id set after a successful
// stop/decr.
func (m *Model) PopPID(name string) {
	m.mu.Lock()
	w, ok := m.watchers[name]
	changed := false
	if ok && len(w.ProcessIDs) > 0 {
		w.ProcessIDs = w.ProcessIDs[:len(w.ProcessIDs)-1]
		w.PIDsUpdatedAt = m.now()
		changed = true
	}
	m.mu.Unlock()
	m.fire(changed)
}

// SetStatus records a status transition known out of band (a start command
// succeeded on a stopped watcher).
func (m *Model) SetStatus(name, status string) {
	m.mu.Lock()
	w, ok := m.watchers[name]
	changed := ok && w.Status != status
	if changed {
		w.Status = status
	}
	m.mu.Unlock()
	m.fire(changed)
}

// Get returns a copy of one watcher.
func (m *Model) Get(name string) (Watcher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.watchers[name]
	if !ok {
		return Watcher{}, false
	}
	return w.copy(), true
}

// Snapshot returns copies of all watchers, sorted by name.
func (m *Model) Snapshot() []Watcher {
	m.mu.RLock()
	out := make([]Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w.copy())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of materialized watchers.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}

func (w *Watcher) copy() Watcher {
	c := *w
	c.ProcessIDs = append([]int(nil), w.ProcessIDs...)
	return c
}

// SetClock replaces the timestamp source. Tests use it to make the
// last-write-wins merge policy deterministic.
func (m *Model) SetClock(now func() time.Time) {
	m.now = now
}
