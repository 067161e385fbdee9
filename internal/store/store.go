// Package store holds the agenda's configuration and records in memory,
// keeps a bounded undo/redo history of record lists and persists every
// change asynchronously through a key-value collaborator.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/agenda/internal/persistence"
	"github.com/example/agenda/internal/record"
)

// ErrRecordNotFound is returned when an update or delete targets an unknown
// record ID.
var ErrRecordNotFound = errors.New("store: record not found")

// ErrDuplicateRecord is returned by AddRecord when the ID is already taken.
var ErrDuplicateRecord = errors.New("store: record id already exists")

// ChangeKind identifies what a mutation did.
type ChangeKind string

const (
	ChangeLoaded        ChangeKind = "loaded"
	ChangeConfig        ChangeKind = "config"
	ChangeRecordsSet    ChangeKind = "records_set"
	ChangeRecordAdded   ChangeKind = "record_added"
	ChangeRecordUpdated ChangeKind = "record_updated"
	ChangeRecordDeleted ChangeKind = "record_deleted"
	ChangeUndo          ChangeKind = "undo"
	ChangeRedo          ChangeKind = "redo"
)

// Change describes a settled mutation. Records holds the affected records;
// for updates both the previous and the new version are included.
type Change struct {
	Kind    ChangeKind
	Records []record.Record
}

// Resets reports whether the change replaced the record list wholesale.
func (c Change) Resets() bool {
	switch c.Kind {
	case ChangeLoaded, ChangeRecordsSet, ChangeUndo, ChangeRedo:
		return true
	}
	return false
}

// Option customises a Store.
type Option func(*Store)

// WithHistoryLimit bounds the undo and redo stacks. Values below one select
// DefaultHistoryLimit.
func WithHistoryLimit(limit int) Option {
	return func(s *Store) { s.historyLimit = limit }
}

// WithClock injects the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for load and persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultConfig sets the taxonomy used before load and on load failure.
func WithDefaultConfig(cfg record.Config) Option {
	return func(s *Store) { s.defaultConfig = cfg.Clone() }
}

// Store is safe for concurrent use. Mutations are serialized; persistence
// writes run in the background and are not awaited.
type Store struct {
	kv            persistence.KeyValueStore
	now           func() time.Time
	logger        *slog.Logger
	historyLimit  int
	defaultConfig record.Config

	mu      sync.Mutex
	loaded  bool
	config  record.Config
	records []record.Record
	undo    *stack[[]record.Record]
	redo    *stack[[]record.Record]
	canUndo bool
	canRedo bool
	seq     uint64

	subMu     sync.RWMutex
	subs      map[int]func(Change)
	nextSubID int

	writeMu  sync.Mutex
	written  map[string]uint64
	inflight sync.WaitGroup
}

// New constructs a Store backed by kv. A nil kv disables persistence.
func New(kv persistence.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:            kv,
		now:           time.Now,
		logger:        slog.Default(),
		historyLimit:  DefaultHistoryLimit,
		defaultConfig: record.DefaultConfig(),
		subs:          make(map[int]func(Change)),
		written:       make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.config = s.defaultConfig.Clone()
	s.records = []record.Record{}
	s.undo = newStack[[]record.Record](s.historyLimit)
	s.redo = newStack[[]record.Record](s.historyLimit)
	return s
}

// Load reads the configuration and records from the key-value collaborator.
// Missing or unreadable values fall back to defaults; the store is marked
// loaded in every case and history is reset.
func (s *Store) Load(ctx context.Context) {
	cfg := s.defaultConfig.Clone()
	records := []record.Record{}

	if s.kv != nil {
		if raw, ok := s.read(ctx, persistence.KeyConfig); ok {
			var decoded record.Config
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				s.logger.Error("decode stored config failed", "key", persistence.KeyConfig, "error", err)
			} else {
				cfg = decoded
			}
		}
		if raw, ok := s.read(ctx, persistence.KeyRecords); ok {
			var decoded []record.Record
			if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
				s.logger.Error("decode stored records failed", "key", persistence.KeyRecords, "error", err)
			} else if decoded != nil {
				records = decoded
			}
		}
	}

	s.mu.Lock()
	s.config = cfg
	s.records = records
	s.undo.reset()
	s.redo.reset()
	s.refreshFlagsLocked()
	s.loaded = true
	snapshot := record.CloneAll(records)
	s.mu.Unlock()

	s.logger.Info("store loaded", "records", len(records), "areas", len(cfg.Areas))
	s.notify(Change{Kind: ChangeLoaded, Records: snapshot})
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		return raw, true
	case errors.Is(err, persistence.ErrNotFound):
		return "", false
	default:
		s.logger.Error("read stored value failed", "key", key, "error", err)
		return "", false
	}
}

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Config returns a copy of the current taxonomy.
func (s *Store) Config() record.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// Records returns a copy of the current record list.
func (s *Store) Records() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return record.CloneAll(s.records)
}

// Record returns a copy of the record with the given ID.
func (s *Store) Record(id string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return record.Record{}, false
}

// CanUndo reports whether Undo would change the record list.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canUndo
}

// CanRedo reports whether Redo would change the record list.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canRedo
}

// SetConfig replaces the taxonomy. Configuration is not part of history.
func (s *Store) SetConfig(cfg record.Config) {
	s.mu.Lock()
	s.config = cfg.Clone()
	w := s.configWriteLocked()
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: ChangeConfig})
}

// SetRecords replaces the whole record list.
func (s *Store) SetRecords(records []record.Record) {
	s.mu.Lock()
	s.pushHistoryLocked()
	s.records = record.CloneAll(records)
	if s.records == nil {
		s.records = []record.Record{}
	}
	w := s.recordsWriteLocked()
	snapshot := record.CloneAll(s.records)
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: ChangeRecordsSet, Records: snapshot})
}

// AddRecord appends rec to the record list. A record whose ID is already
// stored is rejected and history is left untouched.
func (s *Store) AddRecord(rec record.Record) error {
	s.mu.Lock()
	if s.indexLocked(rec.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ID)
	}
	s.pushHistoryLocked()
	s.records = append(s.records, rec.Clone())
	w := s.recordsWriteLocked()
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: ChangeRecordAdded, Records: []record.Record{rec.Clone()}})
	return nil
}

// UpdateRecord applies patch to the record with the given ID and returns the
// updated record.
func (s *Store) UpdateRecord(id string, patch record.Patch) (record.Record, error) {
	updated, err := s.UpdateRecords(map[string]record.Patch{id: patch})
	if err != nil {
		return record.Record{}, err
	}
	return updated[0], nil
}

// UpdateRecords applies several patches as one history step. Either every
// ID exists and all patches apply, or nothing changes. The updated records
// are returned in list order.
func (s *Store) UpdateRecords(patches map[string]record.Patch) ([]record.Record, error) {
	s.mu.Lock()
	indexes := make([]int, 0, len(patches))
	for i, rec := range s.records {
		if _, ok := patches[rec.ID]; ok {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) != len(patches) || len(patches) == 0 {
		s.mu.Unlock()
		return nil, s.missingError(patches)
	}

	s.pushHistoryLocked()
	now := s.now()
	next := record.CloneAll(s.records)
	changed := make([]record.Record, 0, 2*len(indexes))
	updated := make([]record.Record, 0, len(indexes))
	for _, i := range indexes {
		before := next[i]
		after := patches[before.ID].Apply(before, now)
		next[i] = after
		changed = append(changed, before, after.Clone())
		updated = append(updated, after.Clone())
	}
	s.records = next
	w := s.recordsWriteLocked()
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: ChangeRecordUpdated, Records: changed})
	return updated, nil
}

func (s *Store) missingError(patches map[string]record.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range patches {
		if s.indexLocked(id) < 0 {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
	}
	return ErrRecordNotFound
}

// DeleteRecord removes the record with the given ID and returns it.
func (s *Store) DeleteRecord(id string) (record.Record, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return record.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	s.pushHistoryLocked()
	removed := s.records[i]
	next := make([]record.Record, 0, len(s.records)-1)
	next = append(next, s.records[:i]...)
	next = append(next, s.records[i+1:]...)
	s.records = next
	w := s.recordsWriteLocked()
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: ChangeRecordDeleted, Records: []record.Record{removed.Clone()}})
	return removed.Clone(), nil
}

// Undo restores the record list captured before the most recent mutation.
// It reports false when there is nothing to undo.
func (s *Store) Undo() bool {
	return s.step(s.undo, s.redo, ChangeUndo)
}

// Redo reapplies the most recently undone mutation. It reports false when
// there is nothing to redo.
func (s *Store) Redo() bool {
	return s.step(s.redo, s.undo, ChangeRedo)
}

func (s *Store) step(from, to *stack[[]record.Record], kind ChangeKind) bool {
	s.mu.Lock()
	snapshot, ok := from.pop()
	if !ok {
		s.mu.Unlock()
		return false
	}
	to.push(record.CloneAll(s.records))
	s.records = snapshot
	s.refreshFlagsLocked()
	w := s.recordsWriteLocked()
	current := record.CloneAll(s.records)
	s.mu.Unlock()

	s.persist(w)
	s.notify(Change{Kind: kind, Records: current})
	return true
}

// pushHistoryLocked snapshots the current list before a mutation and
// invalidates the redo branch.
func (s *Store) pushHistoryLocked() {
	s.undo.push(record.CloneAll(s.records))
	s.redo.reset()
	s.refreshFlagsLocked()
}

func (s *Store) refreshFlagsLocked() {
	s.canUndo = s.undo.len() > 0
	s.canRedo = s.redo.len() > 0
}

func (s *Store) indexLocked(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// Subscribe registers fn to receive every settled change. The returned
// function removes the subscription. Callbacks run on the mutating
// goroutine after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(change Change) {
	s.subMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
