package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// Upsert validates the full row against the table schema and then, within
// one transaction, writes every field and sets the table-index entry. The
// index write is the last step of the batch, so the row becomes logically
// present only after its fields exist. A failed validation performs no
// mutations. Upserting a previously removed key revives it; residual raw
// container content at the row's paths is preserved.
func (t *Table) Upsert(d *doc.Doc, row Row) error {
	if d == nil {
		return NewError(ErrCodeInvalidParam, "doc cannot be nil", nil)
	}
	if row == nil {
		return NewError(ErrCodeInvalidParam, "row cannot be nil", nil)
	}

	parsed, err := t.node.Validate(map[string]interface{}(row))
	if err != nil {
		return NewError(ErrCodeSchemaInvalid, "row does not satisfy the schema of table "+t.name, err)
	}
	value := parsed.(map[string]interface{})
	key, _ := value[KeyField].(string)
	if key == "" {
		return NewError(ErrCodeMissingKey, "row key cannot be empty", nil)
	}

	d.Transact(func() {
		t.writeNode(t.rowContainer(d, key), t.node, value, true)
		t.index(d).Set(key, true)
	})
	return nil
}

// Update merges a partial row into the row containers without touching the
// table index. The partial must carry the row key. Fields it omits are left
// alone; sub-records merge field by field. The partial is not validated
// against the full schema, and unknown fields are written as-is. If the row
// is not logically present the writes are retained and become visible on a
// later Upsert of the same key.
func (t *Table) Update(d *doc.Doc, partial Row) error {
	if d == nil {
		return NewError(ErrCodeInvalidParam, "doc cannot be nil", nil)
	}
	key, _ := partial[KeyField].(string)
	if key == "" {
		return NewError(ErrCodeMissingKey, "update requires a non-empty row key", nil)
	}

	d.Transact(func() {
		t.writeNode(t.rowContainer(d, key), t.node, map[string]interface{}(partial), true)
	})
	return nil
}

// Remove soft-deletes a row: the key leaves the table index, the row's
// containers stay in place. Removing an absent key is a no-op.
func (t *Table) Remove(d *doc.Doc, key string) error {
	if d == nil {
		return NewError(ErrCodeInvalidParam, "doc cannot be nil", nil)
	}
	if key == "" {
		return NewError(ErrCodeMissingKey, "remove requires a non-empty row key", nil)
	}
	t.index(d).Delete(key)
	return nil
}
