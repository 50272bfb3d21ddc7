package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// KeyCallback receives the row's current validated value, or nil when the
// row is absent.
type KeyCallback func(row Row)

// keyWatcher is the derived single-key form of a subscription.
type keyWatcher struct {
	tbl    *Table
	d      *doc.Doc
	key    string
	level  Level
	cb     KeyCallback

	rowDispose   func()
	indexDispose func()
	closed       bool
}

// WatchKey subscribes to one row. The callback fires immediately with the
// current validated value or nil, then on key appearance (when valid), on
// key disappearance (with nil), and on content changes at the requested
// level (with the new validated value). Partial-replication states are
// swallowed: a present-but-invalid row produces no call until a row event
// at the requested level finds it valid. At the keys level no row events
// are observed, so a row that appears partial is not reported until it
// leaves the index. Returns an idempotent unsubscribe function.
func (t *Table) WatchKey(d *doc.Doc, key string, level Level, cb KeyCallback) (func(), error) {
	if d == nil {
		return nil, NewError(ErrCodeInvalidParam, "doc cannot be nil", nil)
	}
	if key == "" {
		return nil, NewError(ErrCodeMissingKey, "watch key cannot be empty", nil)
	}
	if cb == nil {
		return nil, NewError(ErrCodeInvalidParam, "callback cannot be nil", nil)
	}
	switch level {
	case LevelKeys, LevelContent, LevelDeep:
	default:
		return nil, NewError(ErrCodeBadLevel, "unknown watch level "+string(level), nil)
	}

	w := &keyWatcher{tbl: t, d: d, key: key, level: level, cb: cb}

	w.cb(t.GetKey(d, key))
	if t.index(d).Has(key) {
		w.attach()
	}
	w.indexDispose = t.index(d).ObserveShallow(w.onIndexEvent)

	return w.unsubscribe, nil
}

func (w *keyWatcher) unsubscribe() {
	if w.closed {
		return
	}
	w.closed = true
	if w.indexDispose != nil {
		w.indexDispose()
	}
	w.detach()
}

func (w *keyWatcher) onIndexEvent(ev *doc.Event) {
	if w.closed {
		return
	}
	for _, key := range ev.Added {
		if key != w.key {
			continue
		}
		if row, ok := w.tbl.readRowRaw(w.d, key); ok {
			w.cb(row)
		}
		w.attach()
	}
	for _, key := range ev.Removed {
		if key != w.key {
			continue
		}
		w.detach()
		w.cb(nil)
	}
}

// attach wires the content observer for the present key. At the keys
// level there is nothing to observe between appearance and disappearance.
// A deep observer also serves as the wait-until-valid probe for rows that
// appear partial.
func (w *keyWatcher) attach() {
	if w.rowDispose != nil || w.level == LevelKeys {
		return
	}
	rowC := w.tbl.rowContainer(w.d, w.key)
	fire := func() { w.onRowEvent() }
	if w.level == LevelContent {
		w.rowDispose = rowC.ObserveShallow(func(*doc.Event) { fire() })
	} else {
		w.rowDispose = rowC.ObserveDeep(func([]*doc.Event) { fire() })
	}
}

func (w *keyWatcher) detach() {
	if w.rowDispose != nil {
		w.rowDispose()
		w.rowDispose = nil
	}
}

func (w *keyWatcher) onRowEvent() {
	if w.closed {
		return
	}
	row, ok := w.tbl.readRowRaw(w.d, w.key)
	if !ok {
		return
	}
	w.cb(row)
}
