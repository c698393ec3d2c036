package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// ErrStaleWrite is returned by Commit when a change set was built from a
// version of an order that no longer matches the stored one.
var ErrStaleWrite = errors.New("stale_write")

// ErrSettingsNotFound is returned when settings were never written.
var ErrSettingsNotFound = errors.New("settings_not_found")

// Search filters a paginated order listing. Zero-valued filters match all.
// Results are ordered by order id; Page is 1-based.
type Search struct {
	Type     domain.RequestType
	Owner    string
	IDPrefix string
	Page     int
	Limit    int
}

// Store persists asks and bids with their secondary indexes.
// Implementations are safe for concurrent use.
type Store interface {
	GetAsk(id string) (*domain.AskOrder, error)
	GetBid(id string) (*domain.BidOrder, error)
	// AsksByCollateralID returns every open ask escrowing the given
	// collateral. Only share sales can produce more than one.
	AsksByCollateralID(collateralID string) ([]*domain.AskOrder, error)
	SearchAsks(q Search) ([]*domain.AskOrder, int, error)
	SearchBids(q Search) ([]*domain.BidOrder, int, error)
	GetSettings() (*domain.Settings, error)
	// Commit applies every change in cs or none of them.
	Commit(cs *ChangeSet) error
	Close() error
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type askOp struct {
	kind opKind
	prev *domain.AskOrder
	next *domain.AskOrder
}

type bidOp struct {
	kind opKind
	prev *domain.BidOrder
	next *domain.BidOrder
}

// ChangeSet is an ordered group of writes committed atomically. It keeps the
// prior value of every touched record so it can be inverted.
type ChangeSet struct {
	asks         []askOp
	bids         []bidOp
	settings     *domain.Settings
	prevSettings *domain.Settings
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{}
}

// CreateAsk records the insertion of a new ask.
func (cs *ChangeSet) CreateAsk(a *domain.AskOrder) {
	cs.asks = append(cs.asks, askOp{kind: opCreate, next: a.Clone()})
}

// UpdateAsk records replacing prev with next. Both must share an id.
func (cs *ChangeSet) UpdateAsk(prev, next *domain.AskOrder) {
	cs.asks = append(cs.asks, askOp{kind: opUpdate, prev: prev.Clone(), next: next.Clone()})
}

// DeleteAsk records the removal of prev.
func (cs *ChangeSet) DeleteAsk(prev *domain.AskOrder) {
	cs.asks = append(cs.asks, askOp{kind: opDelete, prev: prev.Clone()})
}

// CreateBid records the insertion of a new bid.
func (cs *ChangeSet) CreateBid(b *domain.BidOrder) {
	cs.bids = append(cs.bids, bidOp{kind: opCreate, next: b.Clone()})
}

// UpdateBid records replacing prev with next. Both must share an id.
func (cs *ChangeSet) UpdateBid(prev, next *domain.BidOrder) {
	cs.bids = append(cs.bids, bidOp{kind: opUpdate, prev: prev.Clone(), next: next.Clone()})
}

// DeleteBid records the removal of prev.
func (cs *ChangeSet) DeleteBid(prev *domain.BidOrder) {
	cs.bids = append(cs.bids, bidOp{kind: opDelete, prev: prev.Clone()})
}

// PutSettings records replacing prev (nil when unset) with next.
func (cs *ChangeSet) PutSettings(prev, next *domain.Settings) {
	cs.prevSettings = copySettings(prev)
	cs.settings = copySettings(next)
}

// Empty reports whether the change set has nothing to write.
func (cs *ChangeSet) Empty() bool {
	return len(cs.asks) == 0 && len(cs.bids) == 0 && cs.settings == nil
}

// Inverse returns the change set that undoes cs once cs has been committed.
func (cs *ChangeSet) Inverse() *ChangeSet {
	inv := &ChangeSet{}
	for i := len(cs.asks) - 1; i >= 0; i-- {
		op := cs.asks[i]
		switch op.kind {
		case opCreate:
			inv.asks = append(inv.asks, askOp{kind: opDelete, prev: op.next})
		case opUpdate:
			inv.asks = append(inv.asks, askOp{kind: opUpdate, prev: op.next, next: op.prev})
		case opDelete:
			inv.asks = append(inv.asks, askOp{kind: opCreate, next: op.prev})
		}
	}
	for i := len(cs.bids) - 1; i >= 0; i-- {
		op := cs.bids[i]
		switch op.kind {
		case opCreate:
			inv.bids = append(inv.bids, bidOp{kind: opDelete, prev: op.next})
		case opUpdate:
			inv.bids = append(inv.bids, bidOp{kind: opUpdate, prev: op.next, next: op.prev})
		case opDelete:
			inv.bids = append(inv.bids, bidOp{kind: opCreate, next: op.prev})
		}
	}
	if cs.settings != nil && cs.prevSettings != nil {
		inv.settings = copySettings(cs.prevSettings)
		inv.prevSettings = copySettings(cs.settings)
	}
	return inv
}

func copySettings(s *domain.Settings) *domain.Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.AskFee = append(domain.Coins(nil), s.AskFee...)
	out.BidFee = append(domain.Coins(nil), s.BidFee...)
	return &out
}

// reader is the read side both backends expose to the commit planner.
type reader interface {
	loadAsk(id string) (*domain.AskOrder, bool, error)
	loadBid(id string) (*domain.BidOrder, bool, error)
	askIDsByCollateral(cid string) ([]string, error)
}

// askWrite is one resolved primary-record change: before is what is stored
// at that point of the plan, after is what replaces it (nil deletes).
type askWrite struct {
	id     string
	before *domain.AskOrder
	after  *domain.AskOrder
}

type bidWrite struct {
	id     string
	before *domain.BidOrder
	after  *domain.BidOrder
}

type plan struct {
	asks     []askWrite
	bids     []bidWrite
	settings *domain.Settings
}

// planCommit checks every operation of cs against the stored state overlaid
// with the operations before it, and resolves the writes to perform. Nothing
// is written here; any failure leaves the store untouched.
func planCommit(r reader, cs *ChangeSet) (*plan, error) {
	p := &plan{settings: cs.settings}
	asks := make(map[string]*domain.AskOrder) // staged; nil value = deleted
	staged := func(id string) (*domain.AskOrder, bool, error) {
		if a, ok := asks[id]; ok {
			return a, a != nil, nil
		}
		return r.loadAsk(id)
	}

	for _, op := range cs.asks {
		id := opAskID(op)
		current, exists, err := staged(id)
		if err != nil {
			return nil, err
		}
		switch op.kind {
		case opCreate:
			if exists {
				return nil, fmt.Errorf("%w: ask %q", domain.ErrAskAlreadyExists, id)
			}
		case opUpdate, opDelete:
			if !exists {
				return nil, fmt.Errorf("%w: ask %q", domain.ErrAskNotFound, id)
			}
			if !sameJSON(current, op.prev) {
				return nil, fmt.Errorf("%w: ask %q changed since it was read", ErrStaleWrite, id)
			}
		}
		if op.next != nil {
			if err := checkCollateral(r, asks, op.next); err != nil {
				return nil, err
			}
		}
		var before *domain.AskOrder
		if exists {
			before = current
		}
		p.asks = append(p.asks, askWrite{id: id, before: before, after: op.next})
		asks[id] = op.next
	}

	bids := make(map[string]*domain.BidOrder)
	for _, op := range cs.bids {
		id := opBidID(op)
		current, exists := bids[id]
		if exists {
			exists = current != nil
		} else {
			var err error
			current, exists, err = r.loadBid(id)
			if err != nil {
				return nil, err
			}
		}
		if !exists {
			current = nil
		}
		switch op.kind {
		case opCreate:
			if exists {
				return nil, fmt.Errorf("%w: bid %q", domain.ErrBidAlreadyExists, id)
			}
		case opUpdate, opDelete:
			if !exists {
				return nil, fmt.Errorf("%w: bid %q", domain.ErrBidNotFound, id)
			}
			if !sameJSON(current, op.prev) {
				return nil, fmt.Errorf("%w: bid %q changed since it was read", ErrStaleWrite, id)
			}
		}
		p.bids = append(p.bids, bidWrite{id: id, before: current, after: op.next})
		bids[id] = op.next
	}
	return p, nil
}

// checkCollateral enforces the unique collateral index for asks. Share sales
// on the same marker may coexist with each other but with nothing else.
func checkCollateral(r reader, staged map[string]*domain.AskOrder, next *domain.AskOrder) error {
	cid := next.CollateralID()
	ids, err := r.askIDsByCollateral(cid)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(ids))
	holders := make([]*domain.AskOrder, 0, len(ids))
	for _, id := range ids {
		seen[id] = true
		if a, ok := staged[id]; ok {
			if a != nil && a.CollateralID() == cid {
				holders = append(holders, a)
			}
			continue
		}
		a, exists, err := r.loadAsk(id)
		if err != nil {
			return err
		}
		if exists {
			holders = append(holders, a)
		}
	}
	for id, a := range staged {
		if !seen[id] && a != nil && a.CollateralID() == cid {
			holders = append(holders, a)
		}
	}
	for _, other := range holders {
		if other.ID == next.ID {
			continue
		}
		if other.Type == domain.RequestTypeMarkerShareSale && next.Type == domain.RequestTypeMarkerShareSale {
			continue
		}
		return fmt.Errorf("%w: collateral %q is already escrowed by ask %q", domain.ErrCollateralInUse, cid, other.ID)
	}
	return nil
}

func opAskID(op askOp) string {
	if op.next != nil {
		return op.next.ID
	}
	return op.prev.ID
}

func opBidID(op bidOp) string {
	if op.next != nil {
		return op.next.ID
	}
	return op.prev.ID
}

func sameJSON(a, b any) bool {
	x, err := json.Marshal(a)
	if err != nil {
		return false
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

// paginate slices items for a 1-based page. A non-positive limit returns all.
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
