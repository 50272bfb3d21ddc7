package doc

// Map is an ordered-key map container. Keys iterate in insertion order.
// Inline values are scalars or plain Go values; nested containers live in
// the document's path namespace and are reached through GetMap, GetList and
// GetText.
type Map struct {
	st *state
}

// ContainerKind returns "map".
func (m *Map) ContainerKind() string {
	return string(KindMap)
}

// Path returns the container's path segments.
func (m *Map) Path() []string {
	return m.st.path
}

// Doc returns the owning document.
func (m *Map) Doc() *Doc {
	return m.st.doc
}

// Get returns the inline value stored at key.
func (m *Map) Get(key string) (interface{}, bool) {
	return m.st.get(key)
}

// Has reports whether key holds a value.
func (m *Map) Has(key string) bool {
	return m.st.has(key)
}

// Len returns the number of live keys.
func (m *Map) Len() int {
	n := 0
	for pair := m.st.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.deleted {
			n++
		}
	}
	return n
}

// Keys returns the live keys in insertion order.
func (m *Map) Keys() []string {
	return m.st.keys()
}

// Set assigns an inline value to key, last-writer-wins under concurrency.
// Composite values are deep-copied so later caller mutations cannot bypass
// the transaction machinery.
func (m *Map) Set(key string, value interface{}) {
	d := m.st.doc
	d.begin()
	defer d.commit()
	m.st.applySet(key, cloneValue(value), d.tick())
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *Map) Delete(key string) {
	d := m.st.doc
	d.begin()
	defer d.commit()
	m.st.applyDelete(key, d.tick())
}

// GetMap returns the child map container under key, allocating on first
// access.
func (m *Map) GetMap(key string) *Map {
	return m.st.doc.GetMap(append(append([]string(nil), m.st.path...), key)...)
}

// GetList returns the child list container under key.
func (m *Map) GetList(key string) *List {
	return m.st.doc.GetList(append(append([]string(nil), m.st.path...), key)...)
}

// GetText returns the child text container under key.
func (m *Map) GetText(key string) *Text {
	return m.st.doc.GetText(append(append([]string(nil), m.st.path...), key)...)
}

// ToMap snapshots the inline entries as a plain Go map.
func (m *Map) ToMap() map[string]interface{} {
	out := make(map[string]interface{})
	for pair := m.st.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.deleted {
			out[pair.Key] = pair.Value.value
		}
	}
	return out
}

// ObserveShallow subscribes to direct mutations of this container. Returns
// an idempotent disposer.
func (m *Map) ObserveShallow(fn func(*Event)) func() {
	return m.st.observeShallow(fn)
}

// ObserveDeep subscribes to mutations of this container and of every
// container beneath its path. Returns an idempotent disposer.
func (m *Map) ObserveDeep(fn func([]*Event)) func() {
	return m.st.observeDeep(fn)
}
