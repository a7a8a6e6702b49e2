package metrics

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// Registry is the process-wide table mapping metric names to cells. The
// name map is sharded by xxhash so steady-state lookups from unrelated
// writers never touch the same lock, and a dense id-ordered slice backs the
// packer's walk. Entries are insertion-only: a cell is never removed while
// the process runs.
//
// Create one registry at startup and pass it explicitly to writers, the
// packer and the reader; there is no implicit global instance.
type Registry struct {
	shards [shardCount]registryShard

	mu    sync.RWMutex
	cells []*Cell

	overflow OverflowPolicy
}

type registryShard struct {
	mu     sync.RWMutex
	byName map[string]*Cell
}

// NewRegistry creates an empty registry with the given counter overflow
// policy.
func NewRegistry(overflow OverflowPolicy) *Registry {
	r := &Registry{overflow: overflow}
	for i := range r.shards {
		r.shards[i].byName = make(map[string]*Cell)
	}
	return r
}

func (r *Registry) shard(name string) *registryShard {
	return &r.shards[xxhash.Sum64String(name)%shardCount]
}

// GetOrRegister returns the cell for name, creating it on first use. It is
// the hot-path entry for writers; a cached handle makes subsequent updates
// lock-free. Registering an existing name with a different kind fails with
// ErrKindMismatch.
func (r *Registry) GetOrRegister(name string, kind Kind) (*Cell, error) {
	return r.getOrRegister(name, kind, false)
}

// Register declares a metric ahead of use. It is idempotent for a matching
// name+kind pair and otherwise fails with ErrKindMismatch.
func (r *Registry) Register(name string, kind Kind) (*Cell, error) {
	return r.getOrRegister(name, kind, false)
}

func (r *Registry) getOrRegister(name string, kind Kind, floatGauge bool) (*Cell, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	sh := r.shard(name)
	sh.mu.RLock()
	cell, ok := sh.byName[name]
	sh.mu.RUnlock()
	if ok {
		return checkKind(cell, kind, floatGauge)
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cell, ok = sh.byName[name]; ok {
		return checkKind(cell, kind, floatGauge)
	}

	cell = &Cell{
		name:       name,
		kind:       kind,
		floatGauge: floatGauge,
		fatalWrap:  r.overflow == OverflowFatal,
	}

	r.mu.Lock()
	r.cells = append(r.cells, cell)
	cell.id = MetricID(len(r.cells))
	r.mu.Unlock()

	sh.byName[name] = cell
	return cell, nil
}

func checkKind(cell *Cell, kind Kind, floatGauge bool) (*Cell, error) {
	if cell.kind != kind || cell.floatGauge != floatGauge {
		return nil, ErrKindMismatch
	}
	return cell, nil
}

// Counter registers (or resolves) a counter and returns its writer handle.
func (r *Registry) Counter(name string) (Counter, error) {
	cell, err := r.getOrRegister(name, KindCounter, false)
	if err != nil {
		return Counter{}, err
	}
	return Counter{cell: cell}, nil
}

// Gauge registers (or resolves) an int64 gauge and returns its writer handle.
func (r *Registry) Gauge(name string) (Gauge, error) {
	cell, err := r.getOrRegister(name, KindGauge, false)
	if err != nil {
		return Gauge{}, err
	}
	return Gauge{cell: cell}, nil
}

// FloatGauge registers (or resolves) a float64 gauge and returns its writer
// handle.
func (r *Registry) FloatGauge(name string) (FloatGauge, error) {
	cell, err := r.getOrRegister(name, KindGauge, true)
	if err != nil {
		return FloatGauge{}, err
	}
	return FloatGauge{cell: cell}, nil
}

// Timer registers (or resolves) a timer and returns its writer handle.
func (r *Registry) Timer(name string) (Timer, error) {
	cell, err := r.getOrRegister(name, KindTimer, false)
	if err != nil {
		return Timer{}, err
	}
	return Timer{cell: cell}, nil
}

// View walks every currently registered cell in id order, stopping early if
// fn returns false. It may run concurrently with writers updating cells and
// with new registrations; cells registered after the walk starts are not
// guaranteed to be observed until the next walk.
func (r *Registry) View(fn func(*Cell) bool) {
	r.mu.RLock()
	cells := r.cells
	r.mu.RUnlock()

	for _, cell := range cells {
		if !fn(cell) {
			return
		}
	}
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}

// NameOf resolves a metric id back to its registration name. The reader uses
// this to label decoded snapshot entries; the wire carries ids only.
func (r *Registry) NameOf(id MetricID) (string, bool) {
	r.mu.RLock()
	cells := r.cells
	r.mu.RUnlock()

	if id == 0 || int(id) > len(cells) {
		return "", false
	}
	return cells[id-1].name, true
}
