package table

import (
	"sort"

	"github.com/kasuganosora/doctable/pkg/doc"
	"github.com/kasuganosora/doctable/pkg/schema"
)

// ==================== Write path ====================

// writeNode decomposes a record value into container writes per the
// schema's storage rules. Fields absent from the value are not touched, so
// writes merge shallowly at every level. Must run inside a document
// transaction.
func (t *Table) writeNode(container *doc.Map, node *schema.Node, value map[string]interface{}, root bool) {
	written := make(map[string]bool, len(value))

	for _, field := range node.Fields() {
		if root && field.Name == KeyField {
			written[field.Name] = true
			continue
		}
		v, present := value[field.Name]
		if !present {
			continue
		}
		written[field.Name] = true
		t.writeField(container, field.Name, field.Node, v)
	}

	// Unknown fields are written inline as-is; partial updates are not
	// validated against the schema.
	rest := make([]string, 0, len(value))
	for name := range value {
		if !written[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		if root && name == KeyField {
			continue
		}
		container.Set(name, value[name])
	}
}

func (t *Table) writeField(container *doc.Map, name string, node *schema.Node, value interface{}) {
	if !node.StoredAsContainer() {
		container.Set(name, value)
		return
	}

	switch node.Kind() {
	case schema.KindRecord:
		sub, ok := schema.AsRecord(value)
		if !ok {
			logger.Warn("table %s: dropping non-record value for sub-container field %q (%T)", t.name, name, value)
			return
		}
		t.writeNode(container.GetMap(name), node, sub, false)

	case schema.KindUnion:
		sub, ok := schema.AsRecord(value)
		if !ok {
			logger.Warn("table %s: dropping non-record value for union field %q (%T)", t.name, name, value)
			return
		}
		disc, _ := sub[node.Discriminator()].(string)
		variant, ok := node.Variant(disc)
		if !ok {
			logger.Warn("table %s: dropping write to union field %q: unknown variant %q", t.name, name, disc)
			return
		}
		child := container.GetMap(name)
		child.Set(node.Discriminator(), disc)
		payload := make(map[string]interface{}, len(sub))
		for k, v := range sub {
			if k == node.Discriminator() {
				continue
			}
			payload[k] = v
		}
		t.writeNode(child, variant, payload, false)

	default:
		// Raw shared containers are never overwritten through the mutation
		// API; their content is edited through the container's own API and
		// the handle auto-allocates on read.
	}
}

// ==================== Read path ====================

// readRowChecked is the public read: a row is visible only if its key is in
// the table index and the assembled value validates.
func (t *Table) readRowChecked(d *doc.Doc, key string) Row {
	if !t.index(d).Has(key) {
		return nil
	}
	row, _ := t.readRowRaw(d, key)
	return row
}

// readRowRaw probes the row containers regardless of index presence. The
// watcher engine uses it to test partially replicated rows. Returns false
// when the row is structurally partial or fails schema validation — both
// are transient replication states, not errors.
func (t *Table) readRowRaw(d *doc.Doc, key string) (Row, bool) {
	assembled, ok := t.assembleNode(t.rowContainer(d, key), t.node, true)
	if !ok {
		return nil, false
	}
	// The key never lives in a container; synthesise it from the row path
	// so the full row schema validates in one pass.
	assembled[KeyField] = key
	parsed, err := t.node.Validate(assembled)
	if err != nil {
		return nil, false
	}
	return Row(parsed.(map[string]interface{})), true
}

// assembleNode gathers a record's fields from their storage locations.
// ok=false marks a structurally undecodable state: a union sub-container
// whose discriminator is missing or unmatched, at any depth.
func (t *Table) assembleNode(container *doc.Map, node *schema.Node, root bool) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, len(node.Fields()))
	for _, field := range node.Fields() {
		if root && field.Name == KeyField {
			continue
		}
		value, ok := t.assembleField(container, field.Name, field.Node)
		if !ok {
			return nil, false
		}
		if value != nil {
			out[field.Name] = value
		}
	}
	return out, true
}

func (t *Table) assembleField(container *doc.Map, name string, node *schema.Node) (interface{}, bool) {
	if !node.StoredAsContainer() {
		v, ok := container.Get(name)
		if !ok {
			return nil, true
		}
		return v, true
	}

	switch node.Kind() {
	case schema.KindRecord:
		sub, ok := t.assembleNode(container.GetMap(name), node, false)
		if !ok {
			return nil, false
		}
		return sub, true

	case schema.KindUnion:
		child := container.GetMap(name)
		discValue, ok := child.Get(node.Discriminator())
		if !ok {
			return nil, false
		}
		disc, ok := discValue.(string)
		if !ok {
			return nil, false
		}
		variant, ok := node.Variant(disc)
		if !ok {
			return nil, false
		}
		sub, ok := t.assembleNode(child, variant, false)
		if !ok {
			return nil, false
		}
		sub[node.Discriminator()] = disc
		return sub, true

	default:
		// Raw shared container: hand back the typed handle; containers
		// auto-allocate on first access.
		switch node.StorageContainerKind() {
		case schema.ContainerList:
			return container.GetList(name), true
		case schema.ContainerText:
			return container.GetText(name), true
		default:
			return container.GetMap(name), true
		}
	}
}
