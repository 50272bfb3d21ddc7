package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// Level selects what a subscription reacts to beyond table-index events.
type Level string

const (
	// LevelKeys reacts to table-index add/remove only; changed never fires.
	LevelKeys Level = "keys"
	// LevelContent additionally reacts to shallow mutations of a row
	// container (inline fields). Mutations inside sub-containers do not
	// fire changed.
	LevelContent Level = "content"
	// LevelDeep additionally reacts to mutations anywhere under the row
	// container, including sub-containers and raw shared containers.
	LevelDeep Level = "deep"
)

// WatchCallback receives one notification per emission. The three slices
// are disjoint within a call; visible is the live key-to-row mapping for
// every visible row and keeps the same identity across calls. Removed rows
// carry their last validated value.
type WatchCallback func(added, removed, changed []Row, visible map[string]Row)

// keyState is the watcher's per-(subscription, key) admission state.
type keyState int

const (
	// stateAbsent: the key is not tracked.
	stateAbsent keyState = iota
	// stateFilteredOut: the key is in the index but failed the filter when
	// last evaluated; it is not observed.
	stateFilteredOut
	// statePendingValid: the key matched the filter but the row did not
	// validate; a deep wait-until-valid observer retries admission.
	statePendingValid
	// stateVisible: the row is visible; no row observer (keys level).
	stateVisible
	// stateObservedVisible: the row is visible and a row observer is
	// attached (content and deep levels).
	stateObservedVisible
)

// subscription is one live watch over (doc, table, filter, level).
type subscription struct {
	tbl    *Table
	d      *doc.Doc
	filter Filter
	level  Level
	cb     WatchCallback

	states       map[string]keyState
	visible      map[string]Row
	rowDisposers map[string]func()
	indexDispose func()
	closed       bool
}

// emission batches one callback invocation's payload.
type emission struct {
	added   []Row
	removed []Row
	changed []Row
}

func (e *emission) empty() bool {
	return len(e.added) == 0 && len(e.removed) == 0 && len(e.changed) == 0
}

// Watch subscribes to the rows matching the filter. The initial visible
// set is computed synchronously and, when non-empty, delivered in a single
// seeding call before any other emission. Returns an idempotent
// unsubscribe function; unsubscribing detaches every observer and emits
// nothing.
//
// A row that stops matching the filter through a field change is emitted
// as removed. The inverse transition is not observed: a change that makes
// a currently non-visible row match goes unseen, because non-visible rows
// carry no observer. Such a row is admitted only when its key is next added
// to the table index; an upsert of a key that is still in the index does
// not re-evaluate it.
func (t *Table) Watch(d *doc.Doc, filter Filter, level Level, cb WatchCallback) (func(), error) {
	if d == nil {
		return nil, NewError(ErrCodeInvalidParam, "doc cannot be nil", nil)
	}
	if cb == nil {
		return nil, NewError(ErrCodeInvalidParam, "callback cannot be nil", nil)
	}
	switch level {
	case LevelKeys, LevelContent, LevelDeep:
	default:
		return nil, NewError(ErrCodeBadLevel, "unknown watch level "+string(level), nil)
	}
	if filter == nil {
		filter = Any()
	}

	s := &subscription{
		tbl:          t,
		d:            d,
		filter:       filter,
		level:        level,
		cb:           cb,
		states:       make(map[string]keyState),
		visible:      make(map[string]Row),
		rowDisposers: make(map[string]func()),
	}

	// Seed before wiring the index observer; everything is synchronous, so
	// no event can slip between the two.
	var seed emission
	for _, key := range t.index(d).Keys() {
		s.admit(key, &seed)
	}
	if len(seed.added) > 0 {
		s.cb(seed.added, nil, nil, s.visible)
	}

	s.indexDispose = t.index(d).ObserveShallow(s.onIndexEvent)

	return s.unsubscribe, nil
}

func (s *subscription) unsubscribe() {
	if s.closed {
		return
	}
	s.closed = true
	if s.indexDispose != nil {
		s.indexDispose()
	}
	for key, dispose := range s.rowDisposers {
		dispose()
		delete(s.rowDisposers, key)
	}
}

// onIndexEvent handles one coalesced table-index event: admissions for
// added keys and removals for departed keys land in the same emission.
func (s *subscription) onIndexEvent(ev *doc.Event) {
	if s.closed {
		return
	}
	var em emission
	for _, key := range ev.Added {
		s.admit(key, &em)
	}
	for _, key := range ev.Removed {
		s.onIndexRemove(key, &em)
	}
	s.flush(&em)
}

// admit runs the admission step for a key that is (or just became)
// logically present: evaluate the filter on the shallow row container,
// then attempt the full validated read.
func (s *subscription) admit(key string, em *emission) {
	rowC := s.tbl.rowContainer(s.d, key)
	prev := s.states[key]

	if !s.filter(rowC) {
		// Pre-visible keys failing the filter at an index event are
		// removals; never-visible keys are silently classified.
		s.disposeRow(key)
		if prev == stateVisible || prev == stateObservedVisible {
			em.removed = append(em.removed, s.visible[key])
			delete(s.visible, key)
		}
		s.states[key] = stateFilteredOut
		return
	}

	row, ok := s.tbl.readRowRaw(s.d, key)
	if !ok {
		// Partial row: park a deep wait-until-valid observer that retries
		// admission on every change beneath the row container.
		if prev != statePendingValid {
			s.disposeRow(key)
			s.states[key] = statePendingValid
			s.rowDisposers[key] = rowC.ObserveDeep(func([]*doc.Event) {
				s.onWaiterFire(key)
			})
		}
		return
	}

	s.disposeRow(key)
	s.visible[key] = row
	if prev == stateVisible || prev == stateObservedVisible {
		em.changed = append(em.changed, row)
	} else {
		em.added = append(em.added, row)
	}
	if s.level == LevelKeys {
		s.states[key] = stateVisible
		return
	}
	s.states[key] = stateObservedVisible
	s.attachRowObserver(key, rowC)
}

// onWaiterFire retries admission of a pending key. Admission itself
// unwires the waiter on success and on filter failure.
func (s *subscription) onWaiterFire(key string) {
	if s.closed || s.states[key] != statePendingValid {
		return
	}
	var em emission
	s.admit(key, &em)
	s.flush(&em)
}

// attachRowObserver wires the level-graded observer for an admitted,
// visible row: shallow for content, deep for deep.
func (s *subscription) attachRowObserver(key string, rowC *doc.Map) {
	fire := func() { s.onRowEvent(key) }
	if s.level == LevelContent {
		s.rowDisposers[key] = rowC.ObserveShallow(func(*doc.Event) { fire() })
	} else {
		s.rowDisposers[key] = rowC.ObserveDeep(func([]*doc.Event) { fire() })
	}
}

// onRowEvent handles a row-observer fire for a visible row: re-filter,
// then revalidate. A row leaving the filter is removed; a row that no
// longer validates is a partial-replication window and emits nothing — the
// next fire retries.
func (s *subscription) onRowEvent(key string) {
	if s.closed || s.states[key] != stateObservedVisible {
		return
	}
	var em emission
	rowC := s.tbl.rowContainer(s.d, key)

	if !s.filter(rowC) {
		s.disposeRow(key)
		em.removed = append(em.removed, s.visible[key])
		delete(s.visible, key)
		s.states[key] = stateFilteredOut
		s.flush(&em)
		return
	}

	row, ok := s.tbl.readRowRaw(s.d, key)
	if !ok {
		return
	}
	s.visible[key] = row
	em.changed = append(em.changed, row)
	s.flush(&em)
}

// onIndexRemove handles a key leaving the table index. Removals of keys
// that were never visible are silent.
func (s *subscription) onIndexRemove(key string, em *emission) {
	prev := s.states[key]
	s.disposeRow(key)
	if prev == stateVisible || prev == stateObservedVisible {
		em.removed = append(em.removed, s.visible[key])
		delete(s.visible, key)
	}
	delete(s.states, key)
}

func (s *subscription) disposeRow(key string) {
	if dispose, ok := s.rowDisposers[key]; ok {
		dispose()
		delete(s.rowDisposers, key)
	}
}

func (s *subscription) flush(em *emission) {
	if em.empty() {
		return
	}
	s.cb(em.added, em.removed, em.changed, s.visible)
}
