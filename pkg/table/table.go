// Package table offers schema-typed, queryable, reactive tables of rows on
// top of a replicated document. A table is a stateless view: the document
// owns all persistent state. The table index container at path T holds the
// set of live row keys; each row decomposes into the row container at path
// T.K and, per the schema's storage rules, sub-containers at T.K.F and
// below.
package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
	"github.com/kasuganosora/doctable/pkg/schema"
)

// Row 行数据
type Row map[string]interface{}

// KeyField is the required key field of every row schema. It uniquely
// identifies the row within its table, is synthesised from the row path on
// read and is never written into a container.
const KeyField = "key"

// Table is a declared table: a name and a row schema. Table names must be
// unique within a document; reusing a name is the caller's bug and yields
// undefined behaviour.
type Table struct {
	name string
	node *schema.Node
}

// New declares a table. The schema must be a record with a required inline
// string field named "key".
func New(name string, node *schema.Node) (*Table, error) {
	if name == "" {
		return nil, NewError(ErrCodeInvalidParam, "table name cannot be empty", nil)
	}
	if node == nil || node.Kind() != schema.KindRecord {
		return nil, NewError(ErrCodeBadSchema, "table schema must be a record", nil)
	}
	keyNode, ok := node.Field(KeyField)
	if !ok {
		return nil, NewError(ErrCodeBadSchema, "table schema must declare a 'key' field", nil)
	}
	if keyNode.Kind() != schema.KindString || keyNode.StoredAsContainer() || keyNode.IsOptional() {
		return nil, NewError(ErrCodeBadSchema, "the 'key' field must be a required inline string", nil)
	}
	return &Table{name: name, node: node}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Schema returns the row schema.
func (t *Table) Schema() *schema.Node {
	return t.node
}

// index returns the table-index container at path T.
func (t *Table) index(d *doc.Doc) *doc.Map {
	return d.GetMap(t.name)
}

// rowContainer returns the row container at path T.K.
func (t *Table) rowContainer(d *doc.Doc, key string) *doc.Map {
	return d.GetMap(t.name, key)
}
