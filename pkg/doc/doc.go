package doc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ContainerKind identifies the concrete type of a shared container.
type ContainerKind string

const (
	// KindMap 有序键值容器
	KindMap ContainerKind = "map"
	// KindList 有序序列容器
	KindList ContainerKind = "list"
	// KindText 富文本容器
	KindText ContainerKind = "text"
)

// pathSep joins path segments in the container registry. Segments may
// contain dots, so a control character is used instead.
const pathSep = "\x1f"

func joinPath(path []string) string {
	return strings.Join(path, pathSep)
}

// PathString renders a container path for logs and panics.
func PathString(path []string) string {
	return strings.Join(path, ".")
}

// Doc is one replica of a replicated document. It owns a tree of named
// containers addressed by path segments; containers auto-allocate on first
// access. All access to a Doc must happen from a single goroutine — the
// runtime is cooperatively scheduled and performs no internal locking.
type Doc struct {
	actor      string
	clock      uint64
	containers map[string]*state

	txnDepth   int
	delivering bool
	pending    []*event
	pendingAt  map[string]*event
	pendingOps []Op

	updateObs   map[int]func(*Update)
	nextUpdate  int
	logger      Logger
}

// New creates a Doc with a random actor ID.
func New() *Doc {
	return NewWithActor(uuid.NewString())
}

// NewWithActor creates a Doc with an explicit actor ID. Actor IDs arbitrate
// last-writer-wins conflicts between replicas and must be unique per replica.
func NewWithActor(actor string) *Doc {
	return &Doc{
		actor:      actor,
		containers: make(map[string]*state),
		pendingAt:  make(map[string]*event),
		updateObs:  make(map[int]func(*Update)),
		logger:     NewNoOpLogger(),
	}
}

// Actor returns the replica's actor ID.
func (d *Doc) Actor() string {
	return d.actor
}

// SetLogger sets the logger used for runtime diagnostics.
func (d *Doc) SetLogger(logger Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	d.logger = logger
}

// GetMap returns the ordered-key map container at the given path,
// allocating it on first access. Panics if the path already holds a
// container of a different kind.
func (d *Doc) GetMap(path ...string) *Map {
	return &Map{st: d.container(path, KindMap)}
}

// GetList returns the list container at the given path, allocating it on
// first access.
func (d *Doc) GetList(path ...string) *List {
	return &List{st: d.container(path, KindList)}
}

// GetText returns the rich-text container at the given path, allocating it
// on first access.
func (d *Doc) GetText(path ...string) *Text {
	return &Text{st: d.container(path, KindText)}
}

func (d *Doc) container(path []string, kind ContainerKind) *state {
	if len(path) == 0 {
		panic("doc: container path must not be empty")
	}
	key := joinPath(path)
	if st, ok := d.containers[key]; ok {
		if st.kind != kind {
			panic(fmt.Sprintf("doc: container %q is %s, requested %s", PathString(path), st.kind, kind))
		}
		return st
	}
	st := newState(d, append([]string(nil), path...), kind)
	d.containers[key] = st
	return st
}

// Transact runs fn inside an atomic transaction. Events emitted by
// mutations inside the transaction coalesce to at most one event per
// mutated container and are delivered when the outermost transaction
// commits. Transactions nest.
func (d *Doc) Transact(fn func()) {
	d.begin()
	defer d.commit()
	fn()
}

// OnUpdate subscribes to the committed-update feed. The callback receives
// one Update per committed transaction, containing the operations that took
// effect (local mutations and applied remote operations alike). Returns an
// idempotent disposer.
func (d *Doc) OnUpdate(fn func(*Update)) func() {
	id := d.nextUpdate
	d.nextUpdate++
	d.updateObs[id] = fn
	disposed := false
	return func() {
		if disposed {
			return
		}
		disposed = true
		delete(d.updateObs, id)
	}
}

func (d *Doc) tick() Stamp {
	d.clock++
	return Stamp{Clock: d.clock, Actor: d.actor}
}

// witness advances the Lamport clock past a remotely generated stamp.
func (d *Doc) witness(s Stamp) {
	if s.Clock > d.clock {
		d.clock = s.Clock
	}
}

func (d *Doc) begin() {
	d.txnDepth++
}

func (d *Doc) commit() {
	d.txnDepth--
	if d.txnDepth > 0 || d.delivering {
		return
	}
	d.delivering = true
	defer func() { d.delivering = false }()

	// Observer callbacks may mutate the document; those mutations land in a
	// fresh pending batch and are delivered by the next loop iteration.
	for len(d.pending) > 0 || len(d.pendingOps) > 0 {
		events := d.pending
		ops := d.pendingOps
		d.pending = nil
		d.pendingOps = nil
		d.pendingAt = make(map[string]*event)

		for _, ev := range events {
			ev.finalize()
		}
		if len(ops) > 0 {
			update := &Update{Ops: ops}
			for _, id := range sortedIDs(d.updateObs) {
				if fn, ok := d.updateObs[id]; ok {
					fn(update)
				}
			}
		}
		for _, ev := range events {
			if ev.public().Empty() {
				continue
			}
			ev.target.notifyShallow(ev.public())
		}
		d.deliverDeep(events)
	}
}

// deliverDeep routes events to deep observers on the mutated containers and
// every ancestor container on their paths. Each deep observer is called at
// most once per batch, with the events beneath it in mutation order.
func (d *Doc) deliverDeep(events []*event) {
	type bucket struct {
		st     *state
		events []*Event
	}
	var order []*state
	buckets := make(map[*state]*bucket)
	for _, ev := range events {
		if ev.public().Empty() {
			continue
		}
		for i := 1; i <= len(ev.target.path); i++ {
			key := joinPath(ev.target.path[:i])
			anc, ok := d.containers[key]
			if !ok || !anc.hasDeepObservers() {
				continue
			}
			b, ok := buckets[anc]
			if !ok {
				b = &bucket{st: anc}
				buckets[anc] = b
				order = append(order, anc)
			}
			b.events = append(b.events, ev.public())
		}
	}
	for _, st := range order {
		st.notifyDeep(buckets[st].events)
	}
}

func (d *Doc) recordOp(op Op) {
	d.pendingOps = append(d.pendingOps, op)
}

// pendingEvent returns the coalesced pending event for a container,
// creating it on first mutation within the transaction.
func (d *Doc) pendingEvent(st *state) *event {
	key := joinPath(st.path)
	if ev, ok := d.pendingAt[key]; ok {
		return ev
	}
	ev := &event{target: st, keyBefore: make(map[string]bool)}
	d.pendingAt[key] = ev
	d.pending = append(d.pending, ev)
	return ev
}

func sortedContainerKeys(m map[string]*state) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
