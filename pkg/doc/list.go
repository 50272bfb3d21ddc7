package doc

// List is an ordered sequence container.
type List struct {
	st *state
}

// ContainerKind returns "list".
func (l *List) ContainerKind() string {
	return string(KindList)
}

// Path returns the container's path segments.
func (l *List) Path() []string {
	return l.st.path
}

// Doc returns the owning document.
func (l *List) Doc() *Doc {
	return l.st.doc
}

// Len returns the number of live elements.
func (l *List) Len() int {
	return l.st.visibleLen()
}

// Get returns the element at index.
func (l *List) Get(index int) (interface{}, bool) {
	at := l.st.physicalIndex(index)
	if at < 0 || at >= len(l.st.elems) {
		return nil, false
	}
	return l.st.elems[at].value, true
}

// Insert places a value at index, shifting later elements right.
// Out-of-range indexes clamp to the ends.
func (l *List) Insert(index int, value interface{}) {
	d := l.st.doc
	d.begin()
	defer d.commit()
	l.st.localInsert(index, cloneValue(value))
}

// Push appends a value.
func (l *List) Push(value interface{}) {
	l.Insert(l.Len(), value)
}

// Delete removes the element at index. Out-of-range indexes are no-ops.
func (l *List) Delete(index int) {
	d := l.st.doc
	d.begin()
	defer d.commit()
	at := l.st.physicalIndex(index)
	if at < 0 || at >= len(l.st.elems) {
		return
	}
	l.st.applyRemove(l.st.elems[at].id, d.tick())
}

// Slice snapshots the live elements in order.
func (l *List) Slice() []interface{} {
	out := make([]interface{}, 0, len(l.st.elems))
	for _, e := range l.st.elems {
		if !e.deleted {
			out = append(out, e.value)
		}
	}
	return out
}

// ObserveShallow subscribes to direct mutations of this container.
func (l *List) ObserveShallow(fn func(*Event)) func() {
	return l.st.observeShallow(fn)
}

// ObserveDeep subscribes to mutations of this container and everything
// beneath its path.
func (l *List) ObserveDeep(fn func([]*Event)) func() {
	return l.st.observeDeep(fn)
}

// localInsert resolves a visible index into an origin element and applies
// the insert with a fresh stamp.
func (st *state) localInsert(index int, value interface{}) {
	if index < 0 {
		index = 0
	}
	if n := st.visibleLen(); index > n {
		index = n
	}
	at := st.physicalIndex(index)
	var origin Stamp
	if at > 0 {
		origin = st.elems[at-1].id
	}
	st.applyInsert(&seqElem{id: st.doc.tick(), origin: origin, value: value})
}
