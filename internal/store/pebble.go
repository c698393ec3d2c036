package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// PebbleStore persists orders in a Pebble database. Every commit is one
// synced batch, so a change set is either fully durable or absent.
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex // serializes Commit so planning and writing see one state
}

// OpenPebbleStore opens (or creates) a Pebble database at path.
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error { return s.db.Close() }

// GetAsk retrieves an ask by ID. It returns domain.ErrAskNotFound if the ask
// does not exist.
func (s *PebbleStore) GetAsk(id string) (*domain.AskOrder, error) {
	var a domain.AskOrder
	found, err := s.getJSON(askKey(id), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrAskNotFound
	}
	return &a, nil
}

// GetBid retrieves a bid by ID. It returns domain.ErrBidNotFound if the bid
// does not exist.
func (s *PebbleStore) GetBid(id string) (*domain.BidOrder, error) {
	var b domain.BidOrder
	found, err := s.getJSON(bidKey(id), &b)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrBidNotFound
	}
	return &b, nil
}

// AsksByCollateralID returns the asks indexed under collateralID, ordered by id.
func (s *PebbleStore) AsksByCollateralID(collateralID string) ([]*domain.AskOrder, error) {
	ids, err := s.scanIndex(indexPrefix(prefixAskCID, collateralID))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AskOrder, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAsk(id)
		if err != nil {
			return nil, fmt.Errorf("collateral index points at ask %q: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SearchAsks returns one page of asks matching q and the total match count.
func (s *PebbleStore) SearchAsks(q Search) ([]*domain.AskOrder, int, error) {
	ids, err := s.candidates(q, prefixAsk, prefixAskOwner, prefixAskType)
	if err != nil {
		return nil, 0, err
	}
	var matched []*domain.AskOrder
	for _, id := range ids {
		a, err := s.GetAsk(id)
		if err != nil {
			return nil, 0, err
		}
		if matchesSearch(q, a.ID, a.Owner, a.Type) {
			matched = append(matched, a)
		}
	}
	return paginate(matched, q.Page, q.Limit), len(matched), nil
}

// SearchBids returns one page of bids matching q and the total match count.
func (s *PebbleStore) SearchBids(q Search) ([]*domain.BidOrder, int, error) {
	ids, err := s.candidates(q, prefixBid, prefixBidOwner, prefixBidType)
	if err != nil {
		return nil, 0, err
	}
	var matched []*domain.BidOrder
	for _, id := range ids {
		b, err := s.GetBid(id)
		if err != nil {
			return nil, 0, err
		}
		if matchesSearch(q, b.ID, b.Owner, b.Type) {
			matched = append(matched, b)
		}
	}
	return paginate(matched, q.Page, q.Limit), len(matched), nil
}

// GetSettings returns the stored settings, or ErrSettingsNotFound.
func (s *PebbleStore) GetSettings() (*domain.Settings, error) {
	var out domain.Settings
	found, err := s.getJSON([]byte(keySettings), &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSettingsNotFound
	}
	return &out, nil
}

// Commit plans the change set against the stored state and writes it as a
// single synced batch.
func (s *PebbleStore) Commit(cs *ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := planCommit(pebbleReader{s}, cs)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, w := range p.asks {
		if w.before != nil {
			for _, k := range [][]byte{
				askKey(w.id),
				indexKey(prefixAskOwner, w.before.Owner, w.id),
				indexKey(prefixAskType, string(w.before.Type), w.id),
				indexKey(prefixAskCID, w.before.CollateralID(), w.id),
			} {
				if err := batch.Delete(k, nil); err != nil {
					return fmt.Errorf("failed to stage ask delete: %w", err)
				}
			}
		}
		if w.after != nil {
			if err := setJSON(batch, askKey(w.id), w.after); err != nil {
				return err
			}
			for _, k := range [][]byte{
				indexKey(prefixAskOwner, w.after.Owner, w.id),
				indexKey(prefixAskType, string(w.after.Type), w.id),
				indexKey(prefixAskCID, w.after.CollateralID(), w.id),
			} {
				if err := batch.Set(k, []byte(w.id), nil); err != nil {
					return fmt.Errorf("failed to stage ask index: %w", err)
				}
			}
		}
	}
	for _, w := range p.bids {
		if w.before != nil {
			for _, k := range [][]byte{
				bidKey(w.id),
				indexKey(prefixBidOwner, w.before.Owner, w.id),
				indexKey(prefixBidType, string(w.before.Type), w.id),
			} {
				if err := batch.Delete(k, nil); err != nil {
					return fmt.Errorf("failed to stage bid delete: %w", err)
				}
			}
		}
		if w.after != nil {
			if err := setJSON(batch, bidKey(w.id), w.after); err != nil {
				return err
			}
			for _, k := range [][]byte{
				indexKey(prefixBidOwner, w.after.Owner, w.id),
				indexKey(prefixBidType, string(w.after.Type), w.id),
			} {
				if err := batch.Set(k, []byte(w.id), nil); err != nil {
					return fmt.Errorf("failed to stage bid index: %w", err)
				}
			}
		}
	}
	if p.settings != nil {
		if err := setJSON(batch, []byte(keySettings), p.settings); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PebbleStore) getJSON(key []byte, v any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return true, nil
}

func setJSON(batch *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	if err := batch.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to stage %q: %w", key, err)
	}
	return nil
}

// scanIndex returns the ids stored under an index prefix, in key order.
func (s *PebbleStore) scanIndex(prefix []byte) ([]string, error) {
	return s.scanIDs(prefix, len(prefix))
}

// scanIDs returns the suffix after strip bytes of every key under prefix.
func (s *PebbleStore) scanIDs(prefix []byte, strip int) ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()[strip:]))
	}
	return ids, nil
}

func (s *PebbleStore) candidates(q Search, primary, ownerPrefix, typePrefix string) ([]string, error) {
	switch {
	case q.Owner != "":
		return s.scanIndex(indexPrefix(ownerPrefix, q.Owner))
	case q.Type != "":
		return s.scanIndex(indexPrefix(typePrefix, string(q.Type)))
	default:
		return s.scanIDs([]byte(primary+q.IDPrefix), len(primary))
	}
}

type pebbleReader struct{ s *PebbleStore }

func (r pebbleReader) loadAsk(id string) (*domain.AskOrder, bool, error) {
	a, err := r.s.GetAsk(id)
	if errors.Is(err, domain.ErrAskNotFound) {
		return nil, false, nil
	}
	return a, err == nil, err
}

func (r pebbleReader) loadBid(id string) (*domain.BidOrder, bool, error) {
	b, err := r.s.GetBid(id)
	if errors.Is(err, domain.ErrBidNotFound) {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (r pebbleReader) askIDsByCollateral(cid string) ([]string, error) {
	return r.s.scanIndex(indexPrefix(prefixAskCID, cid))
}

var _ Store = (*PebbleStore)(nil)
