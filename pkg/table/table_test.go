package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/doctable/pkg/doc"
	"github.com/kasuganosora/doctable/pkg/schema"
)

func taskSchema() *schema.Node {
	return schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"foo": schema.Bool(),
		"bar": schema.String(),
	})
}

func mustTable(t *testing.T, name string, node *schema.Node) *Table {
	t.Helper()
	tbl, err := New(name, node)
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		node    *schema.Node
		wantErr ErrorCode
	}{
		{"valid", "tasks", taskSchema(), ""},
		{"empty name", "", taskSchema(), ErrCodeInvalidParam},
		{"nil schema", "tasks", nil, ErrCodeBadSchema},
		{"non-record schema", "tasks", schema.String(), ErrCodeBadSchema},
		{"missing key field", "tasks", schema.Record(map[string]*schema.Node{"foo": schema.Bool()}), ErrCodeBadSchema},
		{"non-string key", "tasks", schema.Record(map[string]*schema.Node{"key": schema.Number()}), ErrCodeBadSchema},
		{"optional key", "tasks", schema.Record(map[string]*schema.Node{"key": schema.String().Optional()}), ErrCodeBadSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := New(tt.table, tt.node)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.table, tbl.Name())
			} else {
				require.Error(t, err)
				assert.True(t, IsErrorCode(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestUpsertAndGetKey(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	require.NoError(t, tbl.Upsert(d, Row{"key": "first", "foo": true, "bar": "baz"}))

	got := tbl.GetKey(d, "first")
	require.NotNil(t, got)
	assert.Equal(t, Row{"key": "first", "foo": true, "bar": "baz"}, got)

	assert.Nil(t, tbl.GetKey(d, "absent"))

	rows := tbl.Select(d, Any())
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0]["key"])
}

func TestUpsertValidationFailurePerformsNoMutations(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	err := tbl.Upsert(d, Row{"key": "bad", "foo": "not-a-bool", "bar": "x"})
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeSchemaInvalid))

	assert.Nil(t, tbl.GetKey(d, "bad"))
	assert.Empty(t, tbl.Select(d, Any()))
	assert.False(t, d.GetMap("tasks", "bad").Has("bar"), "failed upsert must not write fields")
}

func TestUpsertRejectsMissingKey(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	err := tbl.Upsert(d, Row{"foo": true, "bar": "x"})
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeSchemaInvalid))
}

func TestUpdateMergesPartialRow(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"a":   schema.Number(),
		"b":   schema.Number(),
	})
	tbl := mustTable(t, "nums", node)

	require.NoError(t, tbl.Upsert(d, Row{"key": "K", "a": 1, "b": 2}))
	require.NoError(t, tbl.Update(d, Row{"key": "K", "a": 9}))

	got := tbl.GetKey(d, "K")
	require.NotNil(t, got)
	assert.Equal(t, float64(9), got["a"])
	assert.Equal(t, float64(2), got["b"])
}

func TestUpdateRequiresKey(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	err := tbl.Update(d, Row{"foo": false})
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeMissingKey))
}

func TestUpdateNoOp(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	require.NoError(t, tbl.Upsert(d, Row{"key": "first", "foo": true, "bar": "baz"}))
	require.NoError(t, tbl.Update(d, Row{"key": "first"}))

	assert.Equal(t, Row{"key": "first", "foo": true, "bar": "baz"}, tbl.GetKey(d, "first"))
}

func TestUpdateBeforeUpsertIsRetained(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	// Writes to a row that is not logically present are retained; the row
	// stays invisible until an upsert adds it to the index.
	require.NoError(t, tbl.Update(d, Row{"key": "ghost", "bar": "early"}))
	assert.Nil(t, tbl.GetKey(d, "ghost"))
	assert.Empty(t, tbl.Select(d, Any()))

	require.NoError(t, tbl.Upsert(d, Row{"key": "ghost", "foo": false, "bar": "late"}))
	got := tbl.GetKey(d, "ghost")
	require.NotNil(t, got)
	assert.Equal(t, "late", got["bar"])
}

func TestRemoveSoftDeletes(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key":   schema.String(),
		"title": schema.String(),
		"notes": schema.Text(),
	})
	tbl := mustTable(t, "docs", node)

	require.NoError(t, tbl.Upsert(d, Row{"key": "a", "title": "x"}))
	got := tbl.GetKey(d, "a")
	require.NotNil(t, got)
	got["notes"].(*doc.Text).Insert(0, "memo")

	require.NoError(t, tbl.Remove(d, "a"))
	assert.Nil(t, tbl.GetKey(d, "a"))
	assert.Empty(t, tbl.Select(d, Any()))

	// The row's containers survive the soft delete.
	assert.Equal(t, "memo", d.GetText("docs", "a", "notes").String())
}

func TestUpsertAfterRemoveRevives(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key":   schema.String(),
		"title": schema.String(),
		"notes": schema.Text(),
	})
	tbl := mustTable(t, "docs", node)

	require.NoError(t, tbl.Upsert(d, Row{"key": "a", "title": "first"}))
	tbl.GetKey(d, "a")["notes"].(*doc.Text).Insert(0, "kept")
	require.NoError(t, tbl.Remove(d, "a"))

	require.NoError(t, tbl.Upsert(d, Row{"key": "a", "title": "second"}))
	got := tbl.GetKey(d, "a")
	require.NotNil(t, got)
	assert.Equal(t, "second", got["title"])
	assert.Equal(t, "kept", got["notes"].(*doc.Text).String(), "raw container content survives remove/upsert")
}

func TestRawContainerRoundTrip(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"m":   schema.Map(),
	})
	tbl := mustTable(t, "bags", node)

	require.NoError(t, tbl.Upsert(d, Row{"key": "r"}))

	first := tbl.GetKey(d, "r")
	require.NotNil(t, first)
	first["m"].(*doc.Map).Set("k", "v")

	second := tbl.GetKey(d, "r")
	require.NotNil(t, second)
	v, ok := second["m"].(*doc.Map).Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRawContainerNotOverwrittenByUpsert(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"m":   schema.Map(),
	})
	tbl := mustTable(t, "bags", node)

	require.NoError(t, tbl.Upsert(d, Row{"key": "r"}))
	tbl.GetKey(d, "r")["m"].(*doc.Map).Set("pre", 1)

	require.NoError(t, tbl.Upsert(d, Row{"key": "r"}))
	v, ok := tbl.GetKey(d, "r")["m"].(*doc.Map).Get("pre")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNestedRecordStorage(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"geo": schema.Record(map[string]*schema.Node{
			"lat": schema.Number(),
			"lng": schema.Number(),
		}),
	})
	tbl := mustTable(t, "places", node)

	require.NoError(t, tbl.Upsert(d, Row{
		"key": "home",
		"geo": map[string]interface{}{"lat": 1.5, "lng": 2.5},
	}))

	// Nested record fields live in their own sub-container.
	v, ok := d.GetMap("places", "home", "geo").Get("lat")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
	assert.False(t, d.GetMap("places", "home").Has("geo"), "sub-container fields are not inline")

	got := tbl.GetKey(d, "home")
	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{"lat": 1.5, "lng": 2.5}, got["geo"])

	// Sub-records merge field by field.
	require.NoError(t, tbl.Update(d, Row{"key": "home", "geo": map[string]interface{}{"lat": 9.0}}))
	got = tbl.GetKey(d, "home")
	assert.Equal(t, map[string]interface{}{"lat": 9.0, "lng": 2.5}, got["geo"])
}

func TestShallowRecordStoredInline(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"geo": schema.Record(map[string]*schema.Node{
			"lat": schema.Number(),
			"lng": schema.Number(),
		}).Shallow(),
	})
	tbl := mustTable(t, "places", node)

	require.NoError(t, tbl.Upsert(d, Row{
		"key": "home",
		"geo": map[string]interface{}{"lat": 1.0, "lng": 2.0},
	}))

	assert.True(t, d.GetMap("places", "home").Has("geo"), "shallow records store inline")
	got := tbl.GetKey(d, "home")
	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{"lat": 1.0, "lng": 2.0}, got["geo"])
}

func TestTaggedUnionRoundTrip(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"variant": schema.Union("type", map[string]*schema.Node{
			"text":   schema.Record(map[string]*schema.Node{"content": schema.String()}),
			"number": schema.Record(map[string]*schema.Node{"value": schema.Number()}),
		}),
	})
	tbl := mustTable(t, "V", node)

	require.NoError(t, tbl.Upsert(d, Row{
		"key":     "k1",
		"variant": map[string]interface{}{"type": "text", "content": "hello"},
	}))
	got := tbl.GetKey(d, "k1")
	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{"type": "text", "content": "hello"}, got["variant"])

	require.NoError(t, tbl.Update(d, Row{
		"key":     "k1",
		"variant": map[string]interface{}{"type": "number", "value": 42},
	}))
	got = tbl.GetKey(d, "k1")
	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{"type": "number", "value": float64(42)}, got["variant"])
}

func TestTaggedUnionUnknownVariantDropped(t *testing.T) {
	d := doc.New()
	node := schema.Record(map[string]*schema.Node{
		"key": schema.String(),
		"variant": schema.Union("type", map[string]*schema.Node{
			"text": schema.Record(map[string]*schema.Node{"content": schema.String()}),
		}),
	})
	tbl := mustTable(t, "V", node)

	require.NoError(t, tbl.Upsert(d, Row{
		"key":     "k1",
		"variant": map[string]interface{}{"type": "text", "content": "hello"},
	}))

	// An unknown variant on a partial write is dropped silently; the row
	// keeps its previous value.
	require.NoError(t, tbl.Update(d, Row{
		"key":     "k1",
		"variant": map[string]interface{}{"type": "blob", "data": "x"},
	}))
	got := tbl.GetKey(d, "k1")
	require.NotNil(t, got)
	assert.Equal(t, map[string]interface{}{"type": "text", "content": "hello"}, got["variant"])
}

func TestKeyNeverWrittenToContainers(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	require.NoError(t, tbl.Upsert(d, Row{"key": "first", "foo": true, "bar": "baz"}))
	assert.False(t, d.GetMap("tasks", "first").Has("key"))

	got := tbl.GetKey(d, "first")
	assert.Equal(t, "first", got["key"], "key is synthesised from the row path")
}

func TestPartialRowInvisible(t *testing.T) {
	d := doc.New()
	tbl := mustTable(t, "tasks", taskSchema())

	// Force a logically-present but schema-invalid row, as a partial
	// replication window would.
	d.GetMap("tasks", "broken").Set("foo", true)
	d.GetMap("tasks").Set("broken", true)

	assert.Nil(t, tbl.GetKey(d, "broken"))
	assert.Empty(t, tbl.Select(d, Any()))

	// Completing the row makes it visible.
	d.GetMap("tasks", "broken").Set("bar", "now")
	require.NotNil(t, tbl.GetKey(d, "broken"))
}
