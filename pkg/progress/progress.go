// Package progress is the narrow five-method progress protocol consumed by
// every layer of the install/update pipeline (spec.md §4.7), plus two
// implementations: a no-op reporter (scripts, tests) and a terminal reporter
// backed by a background render loop.
//
// No component instantiates a global singleton; a Reporter is threaded
// through constructors, matching the "progress as protocol, not class"
// design note. Grounded on terassyi-tomei's internal/ui.ProgressManager
// (mpb-backed bar management, isatty-gated TTY detection) generalized from
// its single download/command lane split into this package's six task
// Kinds and three lanes.
package progress

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind identifies the category of work a task represents.
type Kind string

const (
	KindAPIFetching    Kind = "API_FETCHING"
	KindDownload       Kind = "DOWNLOAD"
	KindVerification   Kind = "VERIFICATION"
	KindIconExtraction Kind = "ICON_EXTRACTION"
	KindInstallation   Kind = "INSTALLATION"
	KindUpdate         Kind = "UPDATE"
)

// kindPrefixes namespaces task IDs by kind (spec.md §4.7: "dl_<n>_<slug>, vf_<n>_<slug>, ...").
var kindPrefixes = map[Kind]string{
	KindAPIFetching:    "api",
	KindDownload:       "dl",
	KindVerification:   "vf",
	KindIconExtraction: "ic",
	KindInstallation:   "in",
	KindUpdate:         "up",
}

// TaskInfo is the cheap, non-blocking snapshot returned by GetTaskInfo.
type TaskInfo struct {
	Completed   int64
	Total       int64
	Description string
}

// Reporter is the narrow protocol every pipeline component depends on
// (spec.md §4.7). Implementations must be safe for concurrent use from any
// task.
type Reporter interface {
	IsActive() bool
	AddTask(name string, kind Kind, total int64, description string, parentTaskID string, phase, totalPhases int) string
	UpdateTask(taskID string, completed *int64, total *int64, description *string)
	FinishTask(taskID string, success bool, description string)
	GetTaskInfo(taskID string) (TaskInfo, bool)
}

// idCache is a bounded LRU of generated task IDs, used only to detect
// accidental ID reuse across kinds defensively (spec.md §4.7: "to detect
// cross-lane contamination defensively"). Capacity defaults to 1000.
type idCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]bool
}

func newIDCache(capacity int) *idCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &idCache{capacity: capacity, seen: make(map[string]bool, capacity)}
}

func (c *idCache) add(id string) (collision bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[id] {
		// A repeat counts as a use: move it to the most recently used end.
		for i, k := range c.order {
			if k == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.order = append(c.order, id)
		return true
	}
	c.seen[id] = true
	c.order = append(c.order, id)
	if len(c.order) > c.capacity {
		evict := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, evict)
	}
	return false
}

// clear empties the cache, so an ID seen before is accepted again as new;
// used by tests.
func (c *idCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.seen = make(map[string]bool, c.capacity)
}

// counters allocates monotonically increasing per-kind sequence numbers so
// task IDs stay collision-free under rapid concurrent AddTask calls.
type counters struct {
	mu   sync.Mutex
	next map[Kind]int64
}

func newCounters() *counters {
	return &counters{next: make(map[Kind]int64)}
}

func (c *counters) nextFor(kind Kind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next[kind]++
	return c.next[kind]
}

func slugify(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
			out = append(out, b)
		case b >= 'A' && b <= 'Z':
			out = append(out, b+('a'-'A'))
		case b == '-' || b == '_' || b == '.':
			out = append(out, b)
		default:
			if len(out) > 0 && out[len(out)-1] != '-' {
				out = append(out, '-')
			}
		}
	}
	s := string(out)
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		s = "task"
	}
	return s
}

// makeTaskID builds a namespaced, collision-resistant task identifier.
func makeTaskID(kind Kind, seq int64, name string) string {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		prefix = "tk"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, seq, slugify(name))
}

// makeTaskIDWithSuffix appends a short uuid suffix to a task ID. Used only
// when the counter-based ID above has already collided (spec.md §4.7: "to
// detect cross-lane contamination defensively") — the common case never
// reaches this, since per-kind sequence numbers are monotonic within one
// registry, but a cleared/reset registry (tests) or a future
// multi-process reporter could otherwise hand out the same
// kind+seq+slug twice.
func makeTaskIDWithSuffix(kind Kind, seq int64, name string) string {
	return makeTaskID(kind, seq, name) + "_" + uuid.New().String()[:8]
}

// task is the mutable record held by both reporter implementations.
type task struct {
	id            string
	name          string
	kind          Kind
	total         int64
	completed     int64
	description   string
	parentTaskID  string
	phase         int
	totalPhases   int
	finished      bool
	success       bool
	finishedNote  string
}

// registry is the concurrency-safe task store shared by both Reporter
// implementations (spec.md §4.7: "one writer at a time; operations guarded
// by a short lock; rendering works on a snapshot taken under the lock").
type registry struct {
	mu       sync.Mutex
	tasks    map[string]*task
	order    []string
	counters *counters
	ids      *idCache
	active   atomic.Bool
}

func newRegistry() *registry {
	return &registry{
		tasks:    make(map[string]*task),
		counters: newCounters(),
		ids:      newIDCache(1000),
	}
}

func (r *registry) add(name string, kind Kind, total int64, description, parentTaskID string, phase, totalPhases int) string {
	var id string
	for attempt := 0; ; attempt++ {
		seq := r.counters.nextFor(kind)
		candidate := makeTaskID(kind, seq, name)
		if attempt > 0 {
			candidate = makeTaskIDWithSuffix(kind, seq, name)
		}
		if !r.ids.add(candidate) {
			id = candidate
			break
		}
	}

	t := &task{
		id:           id,
		name:         name,
		kind:         kind,
		total:        total,
		description:  description,
		parentTaskID: parentTaskID,
		phase:        phase,
		totalPhases:  totalPhases,
	}

	r.mu.Lock()
	r.tasks[id] = t
	r.order = append(r.order, id)
	r.mu.Unlock()
	return id
}

func (r *registry) update(taskID string, completed, total *int64, description *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	if completed != nil {
		t.completed = *completed
	}
	if total != nil {
		t.total = *total
	}
	if description != nil {
		t.description = *description
	}
}

func (r *registry) finish(taskID string, success bool, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return
	}
	t.finished = true
	t.success = success
	if description != "" {
		t.finishedNote = description
	}
}

func (r *registry) info(taskID string) (TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return TaskInfo{}, false
	}
	return TaskInfo{Completed: t.completed, Total: t.total, Description: t.description}, true
}

// snapshot returns a point-in-time copy of all tasks in arrival order,
// taken under the lock, for the renderer to consume lock-free.
func (r *registry) snapshot() []task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]task, 0, len(r.order))
	for _, id := range r.order {
		if t, ok := r.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}
