package store

import (
	"strings"
	"sync"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/google/btree"
)

// indexEntry is one (secondary key, order id) pair.
type indexEntry struct {
	Key string
	ID  string
}

func indexLess(a, b indexEntry) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.ID < b.ID
}

// orderIndex is an ordered multi-map from secondary key to order ids.
type orderIndex struct {
	tree *btree.BTreeG[indexEntry]
}

func newOrderIndex() orderIndex {
	const degree = 16
	return orderIndex{tree: btree.NewG[indexEntry](degree, indexLess)}
}

func (ix orderIndex) add(key, id string)    { ix.tree.ReplaceOrInsert(indexEntry{Key: key, ID: id}) }
func (ix orderIndex) remove(key, id string) { ix.tree.Delete(indexEntry{Key: key, ID: id}) }

// ids returns the ids stored under key in ascending order.
func (ix orderIndex) ids(key string) []string {
	var out []string
	ix.tree.AscendGreaterOrEqual(indexEntry{Key: key}, func(e indexEntry) bool {
		if e.Key != key {
			return false
		}
		out = append(out, e.ID)
		return true
	})
	return out
}

// orderTable is the primary record map plus the indexes shared by asks and bids.
type orderTable struct {
	byID    orderIndex // key is always ""
	byOwner orderIndex
	byType  orderIndex
}

func newOrderTable() orderTable {
	return orderTable{byID: newOrderIndex(), byOwner: newOrderIndex(), byType: newOrderIndex()}
}

// candidates returns ids matching q, ordered by id, using the narrowest index.
func (t orderTable) candidates(q Search) []string {
	switch {
	case q.Owner != "":
		return t.byOwner.ids(q.Owner)
	case q.Type != "":
		return t.byType.ids(string(q.Type))
	default:
		return t.byID.ids("")
	}
}

// MemoryStore is a thread-safe in-memory Store: primary maps keyed by id
// and B-tree secondary indexes maintained on every commit.
type MemoryStore struct {
	mu       sync.RWMutex
	asks     map[string]*domain.AskOrder
	bids     map[string]*domain.BidOrder
	askTable orderTable
	bidTable orderTable
	askByCID orderIndex
	settings *domain.Settings
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		asks:     make(map[string]*domain.AskOrder),
		bids:     make(map[string]*domain.BidOrder),
		askTable: newOrderTable(),
		bidTable: newOrderTable(),
		askByCID: newOrderIndex(),
	}
}

// GetAsk retrieves an ask by ID. It returns domain.ErrAskNotFound if the ask
// does not exist.
func (s *MemoryStore) GetAsk(id string) (*domain.AskOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.asks[id]
	if !ok {
		return nil, domain.ErrAskNotFound
	}
	return a.Clone(), nil
}

// GetBid retrieves a bid by ID. It returns domain.ErrBidNotFound if the bid
// does not exist.
func (s *MemoryStore) GetBid(id string) (*domain.BidOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, domain.ErrBidNotFound
	}
	return b.Clone(), nil
}

// AsksByCollateralID returns the asks indexed under collateralID, ordered by id.
func (s *MemoryStore) AsksByCollateralID(collateralID string) ([]*domain.AskOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.askByCID.ids(collateralID)
	out := make([]*domain.AskOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.asks[id].Clone())
	}
	return out, nil
}

// SearchAsks returns one page of asks matching q and the total match count.
func (s *MemoryStore) SearchAsks(q Search) ([]*domain.AskOrder, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []string
	for _, id := range s.askTable.candidates(q) {
		if a := s.asks[id]; matchesSearch(q, a.ID, a.Owner, a.Type) {
			matched = append(matched, id)
		}
	}
	page := paginate(matched, q.Page, q.Limit)
	out := make([]*domain.AskOrder, 0, len(page))
	for _, id := range page {
		out = append(out, s.asks[id].Clone())
	}
	return out, len(matched), nil
}

// SearchBids returns one page of bids matching q and the total match count.
func (s *MemoryStore) SearchBids(q Search) ([]*domain.BidOrder, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []string
	for _, id := range s.bidTable.candidates(q) {
		if b := s.bids[id]; matchesSearch(q, b.ID, b.Owner, b.Type) {
			matched = append(matched, id)
		}
	}
	page := paginate(matched, q.Page, q.Limit)
	out := make([]*domain.BidOrder, 0, len(page))
	for _, id := range page {
		out = append(out, s.bids[id].Clone())
	}
	return out, len(matched), nil
}

// GetSettings returns the stored settings, or ErrSettingsNotFound.
func (s *MemoryStore) GetSettings() (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, ErrSettingsNotFound
	}
	return copySettings(s.settings), nil
}

// Commit validates the whole change set under the write lock and then
// applies it. A rejected change set leaves the store unchanged.
func (s *MemoryStore) Commit(cs *ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := planCommit(memoryReader{s}, cs)
	if err != nil {
		return err
	}
	for _, w := range p.asks {
		if w.before != nil {
			delete(s.asks, w.id)
			s.askTable.byID.remove("", w.id)
			s.askTable.byOwner.remove(w.before.Owner, w.id)
			s.askTable.byType.remove(string(w.before.Type), w.id)
			s.askByCID.remove(w.before.CollateralID(), w.id)
		}
		if w.after != nil {
			s.asks[w.id] = w.after.Clone()
			s.askTable.byID.add("", w.id)
			s.askTable.byOwner.add(w.after.Owner, w.id)
			s.askTable.byType.add(string(w.after.Type), w.id)
			s.askByCID.add(w.after.CollateralID(), w.id)
		}
	}
	for _, w := range p.bids {
		if w.before != nil {
			delete(s.bids, w.id)
			s.bidTable.byID.remove("", w.id)
			s.bidTable.byOwner.remove(w.before.Owner, w.id)
			s.bidTable.byType.remove(string(w.before.Type), w.id)
		}
		if w.after != nil {
			s.bids[w.id] = w.after.Clone()
			s.bidTable.byID.add("", w.id)
			s.bidTable.byOwner.add(w.after.Owner, w.id)
			s.bidTable.byType.add(string(w.after.Type), w.id)
		}
	}
	if p.settings != nil {
		s.settings = copySettings(p.settings)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// memoryReader exposes the store to the planner. The caller holds s.mu.
type memoryReader struct{ s *MemoryStore }

func (r memoryReader) loadAsk(id string) (*domain.AskOrder, bool, error) {
	a, ok := r.s.asks[id]
	return a, ok, nil
}

func (r memoryReader) loadBid(id string) (*domain.BidOrder, bool, error) {
	b, ok := r.s.bids[id]
	return b, ok, nil
}

func (r memoryReader) askIDsByCollateral(cid string) ([]string, error) {
	return r.s.askByCID.ids(cid), nil
}

func matchesSearch(q Search, id, owner string, t domain.RequestType) bool {
	if q.Owner != "" && owner != q.Owner {
		return false
	}
	if q.Type != "" && t != q.Type {
		return false
	}
	return q.IDPrefix == "" || strings.HasPrefix(id, q.IDPrefix)
}

var _ Store = (*MemoryStore)(nil)
