package store

import (
	"context"
	"encoding/json"

	"github.com/example/agenda/internal/persistence"
)

// write is a pending persistence of one key. A zero key means nothing to do.
type write struct {
	key   string
	value []byte
	seq   uint64
	err   error
}

func (s *Store) recordsWriteLocked() write {
	return s.encodeLocked(persistence.KeyRecords, s.records)
}

func (s *Store) configWriteLocked() write {
	return s.encodeLocked(persistence.KeyConfig, s.config)
}

func (s *Store) encodeLocked(key string, v any) write {
	if !s.loaded || s.kv == nil {
		return write{}
	}
	s.seq++
	value, err := json.Marshal(v)
	return write{key: key, value: value, seq: s.seq, err: err}
}

// persist writes in the background. A write older than one already stored
// for the same key is dropped, so the latest state wins.
func (s *Store) persist(w write) {
	if w.key == "" {
		return
	}
	if w.err != nil {
		s.logger.Error("encode value failed", "key", w.key, "error", w.err)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if w.seq <= s.written[w.key] {
			return
		}
		if err := s.kv.Set(context.Background(), w.key, string(w.value)); err != nil {
			s.logger.Error("persist value failed", "key", w.key, "error", err)
			return
		}
		s.written[w.key] = w.seq
	}()
}

// Wait blocks until every in-flight write has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}
