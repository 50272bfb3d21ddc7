package doc

// Event describes the net effect of one transaction on one container.
// For map containers the key slices classify every touched key against its
// state before the transaction; for list and text containers only
// SeqChanged is set.
type Event struct {
	// Path is the mutated container's path.
	Path []string
	// Kind is the mutated container's kind.
	Kind ContainerKind
	// Added holds map keys that did not exist before the transaction.
	Added []string
	// Updated holds map keys that existed before and still exist.
	Updated []string
	// Removed holds map keys that existed before and no longer do.
	Removed []string
	// SeqChanged reports a list/text mutation.
	SeqChanged bool
}

// event accumulates a container's changes while a transaction is open and
// is classified into a public Event at commit.
type event struct {
	target *state

	keyOrder   []string
	keyBefore  map[string]bool
	seqChanged bool

	final *Event
}

// touchKey records the first-touch prior existence of a map key.
func (ev *event) touchKey(key string, existedBefore bool) {
	if _, ok := ev.keyBefore[key]; ok {
		return
	}
	ev.keyBefore[key] = existedBefore
	ev.keyOrder = append(ev.keyOrder, key)
}

// finalize classifies touched keys against the container's post-commit
// state. Keys that were created and deleted within one transaction cancel
// out and appear in no slice.
func (ev *event) finalize() {
	out := &Event{
		Path:       ev.target.path,
		Kind:       ev.target.kind,
		SeqChanged: ev.seqChanged,
	}
	for _, key := range ev.keyOrder {
		before := ev.keyBefore[key]
		now := ev.target.has(key)
		switch {
		case !before && now:
			out.Added = append(out.Added, key)
		case before && now:
			out.Updated = append(out.Updated, key)
		case before && !now:
			out.Removed = append(out.Removed, key)
		}
	}
	ev.final = out
}

func (ev *event) public() *Event {
	return ev.final
}

// Empty reports an event whose changes cancelled out within the
// transaction. Empty events are not delivered.
func (e *Event) Empty() bool {
	return !e.SeqChanged && len(e.Added) == 0 && len(e.Updated) == 0 && len(e.Removed) == 0
}
