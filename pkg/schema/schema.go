// Package schema models declarative row schemas as a tree of node
// descriptors. The node kind set is closed; every consumer dispatches on
// Kind rather than on concrete types. Nodes carry the two storage options
// recognised by the row codec: SyncAs forces sub-container storage of a
// named container kind, Shallow opts a record or union out of sub-container
// storage.
package schema

import "sort"

// Kind 节点类型
type Kind int

const (
	// KindString 字符串叶子节点
	KindString Kind = iota
	// KindNumber 数值叶子节点
	KindNumber
	// KindBool 布尔叶子节点
	KindBool
	// KindAny 任意值叶子节点
	KindAny
	// KindRecord 记录节点
	KindRecord
	// KindUnion 带判别字段的联合节点
	KindUnion
	// KindContainer 原生共享容器节点
	KindContainer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindAny:
		return "any"
	case KindRecord:
		return "record"
	case KindUnion:
		return "union"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Container kind names shared with the document runtime.
const (
	ContainerMap  = "map"
	ContainerList = "list"
	ContainerText = "text"
)

// Field is one named field of a record node. Record fields are ordered by
// name so storage decomposition is deterministic across replicas.
type Field struct {
	Name string
	Node *Node
}

// Node is one schema tree node.
type Node struct {
	kind Kind

	fields     []Field          // KindRecord
	fieldIndex map[string]*Node // KindRecord

	discriminator string           // KindUnion
	variantNames  []string         // KindUnion
	variants      map[string]*Node // KindUnion

	containerKind string // KindContainer

	syncAs   string
	shallow  bool
	optional bool
}

// String declares a string leaf.
func String() *Node {
	return &Node{kind: KindString}
}

// Number declares a numeric leaf. Values coerce to float64.
func Number() *Node {
	return &Node{kind: KindNumber}
}

// Bool declares a boolean leaf.
func Bool() *Node {
	return &Node{kind: KindBool}
}

// Any declares a leaf that accepts every value unchecked.
func Any() *Node {
	return &Node{kind: KindAny}
}

// Record declares a record node with the given fields.
func Record(fields map[string]*Node) *Node {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	n := &Node{kind: KindRecord, fieldIndex: make(map[string]*Node, len(fields))}
	for _, name := range names {
		n.fields = append(n.fields, Field{Name: name, Node: fields[name]})
		n.fieldIndex[name] = fields[name]
	}
	return n
}

// Union declares a tagged union. The discriminator names the field whose
// string value selects the variant; each variant must be a record node and
// does not itself list the discriminator.
func Union(discriminator string, variants map[string]*Node) *Node {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Node{
		kind:          KindUnion,
		discriminator: discriminator,
		variantNames:  names,
		variants:      variants,
	}
}

// Map declares a raw ordered-key map container field.
func Map() *Node {
	return &Node{kind: KindContainer, containerKind: ContainerMap}
}

// List declares a raw list container field.
func List() *Node {
	return &Node{kind: KindContainer, containerKind: ContainerList}
}

// Text declares a raw rich-text container field.
func Text() *Node {
	return &Node{kind: KindContainer, containerKind: ContainerText}
}

// ==================== Options ====================

// SyncAs forces sub-container storage of the named container kind.
func (n *Node) SyncAs(containerKind string) *Node {
	n.syncAs = containerKind
	return n
}

// Shallow opts a record or union node out of sub-container storage; the
// value is stored inline in the parent row container instead.
func (n *Node) Shallow() *Node {
	n.shallow = true
	return n
}

// Optional marks a field value that may be absent.
func (n *Node) Optional() *Node {
	n.optional = true
	return n
}

// ==================== Introspection ====================

// Kind returns the node kind.
func (n *Node) Kind() Kind {
	return n.kind
}

// Fields returns a record node's fields in deterministic order.
func (n *Node) Fields() []Field {
	return n.fields
}

// Field returns a record node's field by name.
func (n *Node) Field(name string) (*Node, bool) {
	node, ok := n.fieldIndex[name]
	return node, ok
}

// Discriminator returns a union node's discriminator field name.
func (n *Node) Discriminator() string {
	return n.discriminator
}

// VariantNames returns a union node's variant names in deterministic order.
func (n *Node) VariantNames() []string {
	return n.variantNames
}

// Variant returns a union node's variant record by discriminator value.
func (n *Node) Variant(name string) (*Node, bool) {
	v, ok := n.variants[name]
	return v, ok
}

// IsOptional reports the Optional flag.
func (n *Node) IsOptional() bool {
	return n.optional
}

// IsShallow reports the Shallow flag.
func (n *Node) IsShallow() bool {
	return n.shallow
}

// SyncAsKind returns the forced container kind, or "".
func (n *Node) SyncAsKind() string {
	return n.syncAs
}

// StoredAsContainer decides per-field storage: sub-container if SyncAs
// names a container kind, or the node is a record or union and not marked
// shallow; inline otherwise. The decision is a pure function of the node,
// so writers and readers derive it identically.
func (n *Node) StoredAsContainer() bool {
	if n.shallow {
		return false
	}
	if n.syncAs != "" || n.kind == KindContainer {
		return true
	}
	return n.kind == KindRecord || n.kind == KindUnion
}

// StorageContainerKind returns the container kind used when the node is
// stored as a sub-container.
func (n *Node) StorageContainerKind() string {
	if n.syncAs != "" {
		return n.syncAs
	}
	if n.kind == KindContainer {
		return n.containerKind
	}
	return ContainerMap
}
