// Package store holds transaction records in memory behind a two-level
// locking protocol.
//
// A primary table maps identifiers to records and a B-tree index orders the
// same records by (create time, identifier). Every mutation takes the
// record's try-lock, changes the table, then takes the index lock
// exclusively with a bounded wait before changing the index. If the index
// lock cannot be obtained the table change is rolled back, so the table and
// the index agree whenever no operation is in flight.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/cursor"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultLockTimeout bounds the wait for exclusive index access.
const DefaultLockTimeout = time.Second

// Options configures a Store.
type Options struct {
	// LockTimeout bounds the wait for the exclusive index lock during a
	// mutation. Zero or negative means do not wait at all.
	LockTimeout time.Duration
}

// DefaultOptions returns the options used by the API server.
func DefaultOptions() Options {
	return Options{LockTimeout: DefaultLockTimeout}
}

// Store is a concurrency-safe in-memory record store.
type Store struct {
	opts Options
	log  zerolog.Logger

	mu      sync.RWMutex
	records map[string]domain.Transaction
	retired map[string]struct{}

	keys  *keyLocks
	index *timeIndex
	ilock *indexLock
}

// New creates an empty store.
func New(opts Options, log zerolog.Logger) *Store {
	return &Store{
		opts:    opts,
		log:     log.With().Str("component", "store").Logger(),
		records: make(map[string]domain.Transaction),
		retired: make(map[string]struct{}),
		keys:    newKeyLocks(),
		index:   newTimeIndex(),
		ilock:   newIndexLock(),
	}
}

// Create inserts tx under tx.ID. It fails with a Duplicate error if the
// identifier is present or was deleted earlier, and with a Concurrency error
// if the record or the index is locked.
func (s *Store) Create(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return apperr.New(apperr.Argument, "transaction id is required")
	}
	tx = tx.Truncate()

	m, err := s.begin(tx.ID)
	if err != nil {
		return err
	}
	defer m.end()

	s.mu.Lock()
	_, exists := s.records[tx.ID]
	_, deleted := s.retired[tx.ID]
	if exists || deleted {
		s.mu.Unlock()
		m.retire = deleted
		return apperr.ForID(apperr.Duplicate, tx.ID)
	}
	s.records[tx.ID] = tx
	s.mu.Unlock()

	if err := m.lockIndex(ctx); err != nil {
		s.mu.Lock()
		delete(s.records, tx.ID)
		s.mu.Unlock()
		m.retire = true
		s.log.Debug().Err(err).Str("id", tx.ID).Msg("create rolled back")
		return err
	}

	s.index.put(tx)
	return nil
}

// Update replaces the record stored under tx.ID. A zero CreateTime keeps
// the stored creation time. The index is updated under the exclusive lock
// in every case; if that lock cannot be obtained the previous value is
// restored.
func (s *Store) Update(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return apperr.New(apperr.Argument, "transaction id is required")
	}
	tx = tx.Truncate()

	m, err := s.begin(tx.ID)
	if err != nil {
		return err
	}
	defer m.end()

	s.mu.Lock()
	prev, ok := s.records[tx.ID]
	if !ok {
		s.mu.Unlock()
		m.retire = true
		return apperr.ForID(apperr.NotFound, tx.ID)
	}
	if tx.CreateTime.IsZero() {
		tx.CreateTime = prev.CreateTime
	}
	s.records[tx.ID] = tx
	s.mu.Unlock()

	if err := m.lockIndex(ctx); err != nil {
		s.mu.Lock()
		s.records[tx.ID] = prev
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("id", tx.ID).Msg("update rolled back")
		return err
	}

	if oldKey := prev.SortKey(); oldKey != tx.SortKey() {
		s.index.remove(oldKey)
	}
	s.index.put(tx)
	return nil
}

// Delete removes the record stored under id and retires its lock. The
// identifier cannot be created again.
func (s *Store) Delete(ctx context.Context, id string) error {
	m, err := s.begin(id)
	if err != nil {
		return err
	}
	defer m.end()

	s.mu.Lock()
	prev, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		m.retire = true
		return apperr.ForID(apperr.NotFound, id)
	}
	delete(s.records, id)
	s.mu.Unlock()

	if err := m.lockIndex(ctx); err != nil {
		s.mu.Lock()
		s.records[id] = prev
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("id", id).Msg("delete rolled back")
		return err
	}

	s.index.remove(prev.SortKey())

	s.mu.Lock()
	s.retired[id] = struct{}{}
	s.mu.Unlock()
	m.retire = true
	return nil
}

// List returns up to size records sorting strictly after c, in ascending
// (create time, id) order. It fails fast with a Concurrency error if a
// writer holds or is waiting for the index.
func (s *Store) List(c domain.Cursor, size int) (domain.Page, error) {
	if size < 1 {
		return domain.Page{}, apperr.New(apperr.Argument, "page size must be positive, got %d", size)
	}
	if !s.ilock.tryRLock() {
		return domain.Page{}, apperr.New(apperr.Concurrency, "index is being modified, retry later")
	}
	items := s.index.after(c, size+1)
	s.ilock.rUnlock()

	page := domain.Page{Items: items}
	if len(items) > size {
		page.Items = items[:size]
		page.HasNext = true
		page.NextCursor = cursor.EncodeRecord(&page.Items[size-1])
	}
	return page, nil
}

// Get returns a copy of the record stored under id.
func (s *Store) Get(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.records[id]
	return tx, ok
}

// Exists reports whether a record is stored under id.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// mutation holds the locks of one create, update or delete. end releases
// them in reverse order of acquisition.
type mutation struct {
	s       *Store
	id      string
	key     *keyLock
	indexed bool
	retire  bool
}

func (s *Store) begin(id string) (*mutation, error) {
	l, ok := s.keys.tryAcquire(id)
	if !ok {
		return nil, apperr.ForID(apperr.Concurrency, id)
	}
	return &mutation{s: s, id: id, key: l}, nil
}

// lockIndex takes the index lock exclusively, waiting at most the
// configured timeout. Expiry of that timeout is a Concurrency error;
// cancellation of ctx by the caller is a System error.
func (m *mutation) lockIndex(ctx context.Context) error {
	timeout := m.s.opts.LockTimeout
	if timeout <= 0 {
		if !m.s.ilock.tryLock() {
			return apperr.ForID(apperr.Concurrency, m.id)
		}
		m.indexed = true
		return nil
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.s.ilock.lock(lctx); err != nil {
		if ctx.Err() != nil {
			m.s.log.Error().Err(ctx.Err()).Str("id", m.id).Msg("index lock wait interrupted")
			return apperr.Wrap(apperr.System, ctx.Err(), "index lock wait interrupted")
		}
		return &apperr.Error{Kind: apperr.Concurrency, ID: m.id, Message: "index lock timed out", Err: err}
	}
	m.indexed = true
	return nil
}

func (m *mutation) end() {
	if m.indexed {
		m.s.ilock.unlock()
	}
	m.s.keys.release(m.id, m.key, m.retire)
}
