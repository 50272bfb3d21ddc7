package doc

import "strings"

// Text is a rich-text fragment container. Indexes count runes.
type Text struct {
	st *state
}

// ContainerKind returns "text".
func (t *Text) ContainerKind() string {
	return string(KindText)
}

// Path returns the container's path segments.
func (t *Text) Path() []string {
	return t.st.path
}

// Doc returns the owning document.
func (t *Text) Doc() *Doc {
	return t.st.doc
}

// Len returns the rune length of the fragment.
func (t *Text) Len() int {
	return t.st.visibleLen()
}

// String assembles the fragment.
func (t *Text) String() string {
	var b strings.Builder
	for _, e := range t.st.elems {
		if e.deleted {
			continue
		}
		if s, ok := e.value.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// Insert places text at the given rune index. Elements are stored per rune
// so concurrent edits interleave at rune granularity.
func (t *Text) Insert(index int, text string) {
	d := t.st.doc
	d.begin()
	defer d.commit()
	for _, r := range text {
		t.st.localInsert(index, string(r))
		index++
	}
}

// Delete removes length runes starting at index.
func (t *Text) Delete(index, length int) {
	d := t.st.doc
	d.begin()
	defer d.commit()
	for i := 0; i < length; i++ {
		at := t.st.physicalIndex(index)
		if at < 0 || at >= len(t.st.elems) {
			return
		}
		t.st.applyRemove(t.st.elems[at].id, d.tick())
	}
}

// ObserveShallow subscribes to direct mutations of this container.
func (t *Text) ObserveShallow(fn func(*Event)) func() {
	return t.st.observeShallow(fn)
}

// ObserveDeep subscribes to mutations of this container and everything
// beneath its path.
func (t *Text) ObserveDeep(fn func([]*Event)) func() {
	return t.st.observeDeep(fn)
}
