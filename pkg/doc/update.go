package doc

import (
	"encoding/json"
	"fmt"
)

// Stamp is a Lamport timestamp tagged with the originating actor. Stamps
// totally order concurrent writes: higher clock wins, ties break on actor.
type Stamp struct {
	Clock uint64 `json:"clock"`
	Actor string `json:"actor"`
}

// Less reports whether s orders before o.
func (s Stamp) Less(o Stamp) bool {
	if s.Clock != o.Clock {
		return s.Clock < o.Clock
	}
	return s.Actor < o.Actor
}

// IsZero reports whether s is the zero stamp.
func (s Stamp) IsZero() bool {
	return s.Clock == 0 && s.Actor == ""
}

// OpAction enumerates the operation kinds of the update log.
type OpAction string

const (
	// OpSet writes a map key.
	OpSet OpAction = "set"
	// OpDelete tombstones a map key.
	OpDelete OpAction = "delete"
	// OpInsert places a sequence element after its origin.
	OpInsert OpAction = "insert"
	// OpRemove tombstones a sequence element.
	OpRemove OpAction = "remove"
)

// Op is one replicable operation. Ops are self-describing: they carry the
// container path and kind, so applying an op allocates the container on
// demand.
type Op struct {
	Path   []string      `json:"path"`
	Kind   ContainerKind `json:"kind"`
	Action OpAction      `json:"action"`
	Key    string        `json:"key,omitempty"`
	Value  interface{}   `json:"value,omitempty"`
	Stamp  Stamp         `json:"stamp"`
	Origin Stamp         `json:"origin,omitzero"`
	Target Stamp         `json:"target,omitzero"`
}

// Update is an atomic batch of operations, the unit shipped between
// replicas and appended to persistence logs.
type Update struct {
	Ops []Op `json:"ops"`
}

// Encode serializes the update.
func (u *Update) Encode() ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUpdate deserializes an update.
func DecodeUpdate(data []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("doc: failed to decode update: %w", err)
	}
	return &u, nil
}

// ApplyUpdate merges a remote update into the document inside one
// transaction. Application is idempotent and commutes with concurrent
// local writes under the stamp order. Updates may be applied partially and
// out of order; convergence holds once all ops have been seen.
func (d *Doc) ApplyUpdate(u *Update) {
	if u == nil || len(u.Ops) == 0 {
		return
	}
	d.begin()
	defer d.commit()

	applied := 0
	for _, op := range u.Ops {
		d.witness(op.Stamp)
		st := d.container(op.Path, op.Kind)
		switch op.Action {
		case OpSet:
			if st.applySet(op.Key, op.Value, op.Stamp) {
				applied++
			}
		case OpDelete:
			if st.applyDelete(op.Key, op.Stamp) {
				applied++
			}
		case OpInsert:
			if st.applyInsert(&seqElem{id: op.Stamp, origin: op.Origin, value: op.Value}) {
				applied++
			}
		case OpRemove:
			if st.applyRemove(op.Target, op.Stamp) {
				applied++
			}
		default:
			d.logger.Warn("doc: ignoring unknown op action %q", op.Action)
		}
	}
	d.logger.Debug("doc: applied %d/%d ops", applied, len(u.Ops))
}

// EncodeStateAsUpdate snapshots the whole document as a single update that
// brings an empty replica to the current state. Map tombstones are carried
// so concurrent slower writes still lose after a state transfer; sequence
// tombstones are compacted away.
func (d *Doc) EncodeStateAsUpdate() *Update {
	u := &Update{}
	for _, key := range sortedContainerKeys(d.containers) {
		st := d.containers[key]
		switch st.kind {
		case KindMap:
			for pair := st.entries.Oldest(); pair != nil; pair = pair.Next() {
				op := Op{
					Path:  st.path,
					Kind:  st.kind,
					Key:   pair.Key,
					Stamp: pair.Value.stamp,
				}
				if pair.Value.deleted {
					op.Action = OpDelete
				} else {
					op.Action = OpSet
					op.Value = pair.Value.value
				}
				u.Ops = append(u.Ops, op)
			}
		case KindList, KindText:
			for _, e := range st.elems {
				if e.deleted {
					continue
				}
				u.Ops = append(u.Ops, Op{
					Path:   st.path,
					Kind:   st.kind,
					Action: OpInsert,
					Value:  e.value,
					Stamp:  e.id,
					Origin: e.origin,
				})
			}
		}
	}
	return u
}
