package doc

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// mapEntry is one key slot of a map container. Deleted keys stay behind as
// tombstones so concurrent writes can be arbitrated by stamp.
type mapEntry struct {
	value   interface{}
	stamp   Stamp
	deleted bool
}

// seqElem is one element of a list or text container. Elements are never
// physically removed; deletion tombstones them.
type seqElem struct {
	id      Stamp
	origin  Stamp // id of the left neighbour at insertion time
	value   interface{}
	deleted bool
}

// state is the shared backing of a container, independent of the typed
// handle wrapping it.
type state struct {
	doc  *Doc
	path []string
	kind ContainerKind

	entries *orderedmap.OrderedMap[string, *mapEntry] // KindMap
	elems   []*seqElem                                // KindList, KindText

	shallowObs map[int]func(*Event)
	deepObs    map[int]func([]*Event)
	nextObs    int
}

func newState(d *Doc, path []string, kind ContainerKind) *state {
	st := &state{
		doc:        d,
		path:       path,
		kind:       kind,
		shallowObs: make(map[int]func(*Event)),
		deepObs:    make(map[int]func([]*Event)),
	}
	if kind == KindMap {
		st.entries = orderedmap.New[string, *mapEntry]()
	}
	return st
}

// ==================== Observation ====================

func (st *state) observeShallow(fn func(*Event)) func() {
	id := st.nextObs
	st.nextObs++
	st.shallowObs[id] = fn
	disposed := false
	return func() {
		if disposed {
			return
		}
		disposed = true
		delete(st.shallowObs, id)
	}
}

func (st *state) observeDeep(fn func([]*Event)) func() {
	id := st.nextObs
	st.nextObs++
	st.deepObs[id] = fn
	disposed := false
	return func() {
		if disposed {
			return
		}
		disposed = true
		delete(st.deepObs, id)
	}
}

func (st *state) hasDeepObservers() bool {
	return len(st.deepObs) > 0
}

func (st *state) notifyShallow(ev *Event) {
	for _, id := range sortedIDs(st.shallowObs) {
		if fn, ok := st.shallowObs[id]; ok {
			fn(ev)
		}
	}
}

func (st *state) notifyDeep(events []*Event) {
	for _, id := range sortedIDs(st.deepObs) {
		if fn, ok := st.deepObs[id]; ok {
			fn(events)
		}
	}
}

// ==================== Map state ====================

// has reports whether the key holds a live (non-tombstoned) entry.
func (st *state) has(key string) bool {
	entry, ok := st.entries.Get(key)
	return ok && !entry.deleted
}

func (st *state) get(key string) (interface{}, bool) {
	entry, ok := st.entries.Get(key)
	if !ok || entry.deleted {
		return nil, false
	}
	return entry.value, true
}

func (st *state) keys() []string {
	keys := make([]string, 0, st.entries.Len())
	for pair := st.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.deleted {
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

// applySet writes a key with last-writer-wins arbitration. Returns whether
// the write took effect.
func (st *state) applySet(key string, value interface{}, stamp Stamp) bool {
	existing, ok := st.entries.Get(key)
	if ok && !existing.stamp.Less(stamp) {
		return false
	}
	ev := st.doc.pendingEvent(st)
	ev.touchKey(key, ok && !existing.deleted)
	st.entries.Set(key, &mapEntry{value: value, stamp: stamp})
	st.doc.recordOp(Op{
		Path:   st.path,
		Kind:   st.kind,
		Action: OpSet,
		Key:    key,
		Value:  value,
		Stamp:  stamp,
	})
	return true
}

// applyDelete tombstones a key with last-writer-wins arbitration.
func (st *state) applyDelete(key string, stamp Stamp) bool {
	existing, ok := st.entries.Get(key)
	if ok && !existing.stamp.Less(stamp) {
		return false
	}
	if !ok || existing.deleted {
		// Nothing visible to delete; still keep the tombstone so a
		// concurrent slower set loses.
		st.entries.Set(key, &mapEntry{stamp: stamp, deleted: true})
		return false
	}
	ev := st.doc.pendingEvent(st)
	ev.touchKey(key, true)
	st.entries.Set(key, &mapEntry{stamp: stamp, deleted: true})
	st.doc.recordOp(Op{
		Path:   st.path,
		Kind:   st.kind,
		Action: OpDelete,
		Key:    key,
		Stamp:  stamp,
	})
	return true
}

// ==================== Sequence state ====================

// findElem locates an element by its id.
func (st *state) findElem(id Stamp) int {
	for i, e := range st.elems {
		if e.id == id {
			return i
		}
	}
	return -1
}

// physicalIndex maps a visible index to a slot in elems. A visible index
// equal to the visible length maps to len(elems).
func (st *state) physicalIndex(visible int) int {
	if visible < 0 {
		return -1
	}
	seen := 0
	for i, e := range st.elems {
		if e.deleted {
			continue
		}
		if seen == visible {
			return i
		}
		seen++
	}
	if seen == visible {
		return len(st.elems)
	}
	return -1
}

func (st *state) visibleLen() int {
	n := 0
	for _, e := range st.elems {
		if !e.deleted {
			n++
		}
	}
	return n
}

// applyInsert places an element after its origin, ordering concurrent
// siblings by descending id so replicas converge.
func (st *state) applyInsert(elem *seqElem) bool {
	if st.findElem(elem.id) >= 0 {
		return false
	}
	pos := 0
	if !elem.origin.IsZero() {
		at := st.findElem(elem.origin)
		if at < 0 {
			// Origin not replicated yet; append. A later-arriving origin
			// keeps ordering deterministic through the sibling rule.
			at = len(st.elems) - 1
		}
		pos = at + 1
	}
	for pos < len(st.elems) && st.elems[pos].origin == elem.origin && elem.id.Less(st.elems[pos].id) {
		pos++
	}
	st.elems = append(st.elems, nil)
	copy(st.elems[pos+1:], st.elems[pos:])
	st.elems[pos] = elem
	ev := st.doc.pendingEvent(st)
	ev.seqChanged = true
	st.doc.recordOp(Op{
		Path:   st.path,
		Kind:   st.kind,
		Action: OpInsert,
		Value:  elem.value,
		Stamp:  elem.id,
		Origin: elem.origin,
	})
	return true
}

// applyRemove tombstones the element with the given id.
func (st *state) applyRemove(id Stamp, stamp Stamp) bool {
	at := st.findElem(id)
	if at < 0 || st.elems[at].deleted {
		return false
	}
	st.elems[at].deleted = true
	ev := st.doc.pendingEvent(st)
	ev.seqChanged = true
	st.doc.recordOp(Op{
		Path:   st.path,
		Kind:   st.kind,
		Action: OpRemove,
		Target: id,
		Stamp:  stamp,
	})
	return true
}

// sortedIDs returns observer IDs in registration order.
func sortedIDs[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
