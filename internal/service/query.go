package service

import (
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// GetAsk returns the open ask with the given id, or domain.ErrAskNotFound.
func (s *Service) GetAsk(id string) (*domain.AskOrder, error) {
	return s.store.GetAsk(id)
}

// GetBid returns the open bid with the given id, or domain.ErrBidNotFound.
func (s *Service) GetBid(id string) (*domain.BidOrder, error) {
	return s.store.GetBid(id)
}

// GetAsksByCollateralID returns the open asks escrowing a collateral id: the
// ask id for coin trades, the marker address or the scope address otherwise.
func (s *Service) GetAsksByCollateralID(collateralID string) ([]*domain.AskOrder, error) {
	return s.store.AsksByCollateralID(collateralID)
}

// SearchAsks returns one page of asks matching q and the total match count.
func (s *Service) SearchAsks(q store.Search) ([]*domain.AskOrder, int, error) {
	if err := validateSearch(q); err != nil {
		return nil, 0, err
	}
	return s.store.SearchAsks(q)
}

// SearchBids returns one page of bids matching q and the total match count.
func (s *Service) SearchBids(q store.Search) ([]*domain.BidOrder, int, error) {
	if err := validateSearch(q); err != nil {
		return nil, 0, err
	}
	return s.store.SearchBids(q)
}

func validateSearch(q store.Search) error {
	var msgs []string
	if q.Type != "" && !q.Type.Valid() {
		msgs = append(msgs, fmt.Sprintf("Invalid type filter: '%s'. Must be one of: coin_trade, marker_trade, marker_share_sale, scope_trade", q.Type))
	}
	if q.Page < 1 {
		msgs = append(msgs, "page must be >= 1")
	}
	if q.Limit < 1 || q.Limit > 100 {
		msgs = append(msgs, "limit must be between 1 and 100")
	}
	return domain.NewValidationError(msgs)
}
