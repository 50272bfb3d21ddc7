package persist

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/doctable/pkg/doc"
)

// Key layout: update:{doc_id}:{seq}. The sequence number is zero-padded so
// lexical iteration order equals append order. Document IDs must not
// contain ':'.
const (
	prefixUpdate = "update:"
	seqFormat    = "%016d"
)

// Store is a Badger-backed update log for any number of documents.
type Store struct {
	db     *badger.DB
	logger doc.Logger

	mu      sync.Mutex
	nextSeq map[string]uint64
}

// Open opens (or creates) a store.
func Open(cfg *Config) (*Store, error) {
	cfg = cfg.normalize()

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DataDir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persist: failed to open badger store: %w", err)
	}
	return &Store{
		db:      db,
		logger:  cfg.Logger,
		nextSeq: make(map[string]uint64),
	}, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one committed update to the document's log.
func (s *Store) Append(docID string, update *doc.Update) error {
	if err := checkDocID(docID); err != nil {
		return err
	}
	if update == nil || len(update.Ops) == 0 {
		return nil
	}
	data, err := update.Encode()
	if err != nil {
		return fmt.Errorf("persist: failed to encode update for doc %q: %w", docID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seq, err := s.nextSeqLocked(docID)
	if err != nil {
		return err
	}

	key := updateKey(docID, seq)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("persist: failed to append update for doc %q: %w", docID, err)
	}
	s.nextSeq[docID] = seq + 1
	s.logger.Debug("persist: appended update %d for doc %s (%d ops)", seq, docID, len(update.Ops))
	return nil
}

// Load replays the document's log, in append order, into the given
// document. Returns the number of updates applied.
func (s *Store) Load(docID string, d *doc.Doc) (int, error) {
	if err := checkDocID(docID); err != nil {
		return 0, err
	}
	var updates []*doc.Update
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix(docID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var u *doc.Update
			err := it.Item().Value(func(val []byte) error {
				var err error
				u, err = doc.DecodeUpdate(val)
				return err
			})
			if err != nil {
				return err
			}
			updates = append(updates, u)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("persist: failed to load doc %q: %w", docID, err)
	}
	for _, u := range updates {
		d.ApplyUpdate(u)
	}
	s.logger.Debug("persist: loaded %d updates into doc %s", len(updates), docID)
	return len(updates), nil
}

// Compact rewrites the document's log as a single full-state update taken
// from the given (fully loaded) document.
func (s *Store) Compact(docID string, d *doc.Doc) error {
	if err := checkDocID(docID); err != nil {
		return err
	}
	snapshot := d.EncodeStateAsUpdate()
	data, err := snapshot.Encode()
	if err != nil {
		return fmt.Errorf("persist: failed to encode snapshot for doc %q: %w", docID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropPrefix(docPrefix(docID)); err != nil {
		return fmt.Errorf("persist: failed to drop log of doc %q: %w", docID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(updateKey(docID, 0), data)
	})
	if err != nil {
		return fmt.Errorf("persist: failed to write snapshot for doc %q: %w", docID, err)
	}
	s.nextSeq[docID] = 1
	s.logger.Debug("persist: compacted doc %s to %d ops", docID, len(snapshot.Ops))
	return nil
}

// Attach subscribes to the document's committed-update feed and appends
// every update as it commits. Returns a disposer. Append failures are
// logged, not surfaced — the feed has no error channel.
func (s *Store) Attach(docID string, d *doc.Doc) (func(), error) {
	if err := checkDocID(docID); err != nil {
		return nil, err
	}
	dispose := d.OnUpdate(func(u *doc.Update) {
		if err := s.Append(docID, u); err != nil {
			s.logger.Error("persist: dropping update for doc %s: %v", docID, err)
		}
	})
	return dispose, nil
}

// nextSeqLocked lazily recovers the next sequence number from the stored
// log tail.
func (s *Store) nextSeqLocked(docID string) (uint64, error) {
	if seq, ok := s.nextSeq[docID]; ok {
		return seq, nil
	}
	var count uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix(docID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("persist: failed to recover sequence for doc %q: %w", docID, err)
	}
	s.nextSeq[docID] = count
	return count, nil
}

func docPrefix(docID string) []byte {
	return []byte(prefixUpdate + docID + ":")
}

func updateKey(docID string, seq uint64) []byte {
	return []byte(prefixUpdate + docID + ":" + fmt.Sprintf(seqFormat, seq))
}

func checkDocID(docID string) error {
	if docID == "" {
		return fmt.Errorf("persist: doc id cannot be empty")
	}
	if strings.Contains(docID, ":") {
		return fmt.Errorf("persist: doc id %q must not contain ':'", docID)
	}
	return nil
}
