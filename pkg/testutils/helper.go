// Package testutils provides helpers for tests that need a document with
// declared tables and seeded rows.
package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/doctable/pkg/doc"
	"github.com/kasuganosora/doctable/pkg/schema"
	"github.com/kasuganosora/doctable/pkg/table"
)

// TableTestHelper 表测试辅助器
// 提供快速创建文档、表和数据的能力
type TableTestHelper struct {
	d   *doc.Doc
	tbl *table.Table
}

// NewTableTestHelper declares a table over a fresh single-replica document.
func NewTableTestHelper(t *testing.T, name string, node *schema.Node) *TableTestHelper {
	t.Helper()
	tbl, err := table.New(name, node)
	require.NoError(t, err, "Failed to declare table %s", name)

	return &TableTestHelper{
		d:   doc.New(),
		tbl: tbl,
	}
}

// Doc 获取文档
func (h *TableTestHelper) Doc() *doc.Doc {
	return h.d
}

// Table 获取表
func (h *TableTestHelper) Table() *table.Table {
	return h.tbl
}

// UpsertRows 插入测试数据
func (h *TableTestHelper) UpsertRows(t *testing.T, rows ...table.Row) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, h.tbl.Upsert(h.d, row), "Failed to upsert row %v", row["key"])
	}
}

// VisibleKeys returns the live row keys in index order.
func (h *TableTestHelper) VisibleKeys() []string {
	var keys []string
	for _, row := range h.tbl.Select(h.d, table.Any()) {
		keys = append(keys, row["key"].(string))
	}
	return keys
}

// Replica creates a second replica holding a full copy of the current
// document state, for merge tests.
func (h *TableTestHelper) Replica() *doc.Doc {
	replica := doc.New()
	replica.ApplyUpdate(h.d.EncodeStateAsUpdate())
	return replica
}
