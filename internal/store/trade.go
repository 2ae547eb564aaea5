package store

import (
	"sync"
	"sync/atomic"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/google/btree"
)

// TradeRecord owns one trade. Writers serialize on Lock/Unlock and publish
// whole snapshots with Store; readers call Load and never block.
type TradeRecord struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Trade]
}

// Lock serializes transitions of this trade.
func (r *TradeRecord) Lock() { r.mu.Lock() }

// Unlock releases the transition lock.
func (r *TradeRecord) Unlock() { r.mu.Unlock() }

// Load returns the latest published snapshot. The returned value must not
// be modified; Clone it first.
func (r *TradeRecord) Load() *domain.Trade {
	return r.snap.Load()
}

// Store publishes t as the new snapshot. The caller must hold the lock and
// must not modify t afterwards.
func (r *TradeRecord) Store(t *domain.Trade) {
	r.snap.Store(t)
}

type tradeEntry struct {
	id  uint64
	rec *TradeRecord
}

func tradeLess(a, b tradeEntry) bool {
	return a.id < b.id
}

// TradeStore is a thread-safe in-memory store for trades, indexed by id in
// a B-tree so listings page newest first without sorting.
type TradeStore struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[tradeEntry]
	next uint64
}

// NewTradeStore creates an empty TradeStore. The first trade gets id 0.
func NewTradeStore() *TradeStore {
	const degree = 32
	return &TradeStore{
		tree: btree.NewG[tradeEntry](degree, tradeLess),
	}
}

// Insert assigns the next id to t, stores it and returns its record with
// the transition lock already held. The caller must Unlock it once any
// follow-up work that has to precede other writers is done.
func (s *TradeStore) Insert(t *domain.Trade) *TradeRecord {
	rec := &TradeRecord{}
	rec.Lock()

	s.mu.Lock()
	defer s.mu.Unlock()

	t.TradeID = s.next
	s.next++
	rec.Store(t)
	s.tree.ReplaceOrInsert(tradeEntry{id: t.TradeID, rec: rec})
	return rec
}

// Get returns the record for id, or domain.ErrTradeNotFound.
func (s *TradeStore) Get(id uint64) (*TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tree.Get(tradeEntry{id: id})
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return e.rec, nil
}

// Count returns how many trades have been created.
func (s *TradeStore) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// List returns snapshot copies of the trades matching filter, newest first.
// Pagination is 1-based. The second result is the number of matches before
// pagination.
func (s *TradeStore) List(filter domain.TradeFilter, page, limit int) ([]*domain.Trade, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := (page - 1) * limit
	result := make([]*domain.Trade, 0, limit)
	total := 0

	s.tree.Descend(func(e tradeEntry) bool {
		t := e.rec.Load()
		if !filter.Matches(t) {
			return true
		}
		if total >= start && len(result) < limit {
			result = append(result, t.Clone())
		}
		total++
		return true
	})

	return result, total
}

// Each calls fn with every current snapshot in ascending id order until fn
// returns false.
func (s *TradeStore) Each(fn func(*domain.Trade) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.tree.Ascend(func(e tradeEntry) bool {
		return fn(e.rec.Load())
	})
}
