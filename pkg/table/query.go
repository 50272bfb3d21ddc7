package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// GetKey reads one row. Returns nil when the key is not in the table index
// or when the row is logically present but does not (yet) validate — a
// partially replicated row reads as absent until it completes.
func (t *Table) GetKey(d *doc.Doc, key string) Row {
	return t.readRowChecked(d, key)
}

// Select returns the visible rows matching the filter, in table-index
// iteration order. The filter runs against the shallow row container;
// matching rows are then fully decoded, and rows that fail validation are
// skipped.
func (t *Table) Select(d *doc.Doc, filter Filter) []Row {
	if filter == nil {
		filter = Any()
	}
	var out []Row
	for _, key := range t.index(d).Keys() {
		if !filter(t.rowContainer(d, key)) {
			continue
		}
		if row, ok := t.readRowRaw(d, key); ok {
			out = append(out, row)
		}
	}
	return out
}
