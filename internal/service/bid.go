package service

import (
	"errors"
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// CreateBid escrows the attached funds as the quote of a new bid owned by the
// caller.
func (s *Service) CreateBid(c Caller, req BidRequest, desc *domain.RequestDescriptor) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetBid(req.BidID()); err == nil {
		return nil, fmt.Errorf("%w: bid %q", domain.ErrBidAlreadyExists, req.BidID())
	} else if !errors.Is(err, domain.ErrBidNotFound) {
		return nil, err
	}
	funds, err := requireFunds(c, "bid")
	if err != nil {
		return nil, err
	}

	bid := &domain.BidOrder{ID: req.BidID(), Type: req.RequestType(), Owner: c.Sender, Descriptor: desc}
	bid.Collateral, err = s.bidCollateral(req, funds)
	if err != nil {
		return nil, err
	}
	if err := bid.Validate(); err != nil {
		return nil, err
	}

	cs := store.NewChangeSet()
	cs.CreateBid(bid)
	if err := s.commit(cs, c, nil); err != nil {
		return nil, err
	}
	s.logger.Info("bid created", "bid_id", bid.ID, "type", bid.Type, "owner", bid.Owner)
	return &Result{Bid: bid}, nil
}

// UpdateBid replaces the terms and the escrowed quote of an existing bid.
// The previous quote is refunded.
func (s *Service) UpdateBid(c Caller, req BidRequest, desc *domain.RequestDescriptor) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetBid(req.BidID())
	if err != nil {
		return nil, err
	}
	if existing.Owner != c.Sender {
		return nil, fmt.Errorf("%w: only the owner may update bid %s", domain.ErrUnauthorized, existing.ID)
	}
	if existing.Type != req.RequestType() {
		return nil, fmt.Errorf("%w: bid %s is a %s, cannot become a %s",
			domain.ErrInvalidUpdate, existing.ID, existing.Type, req.RequestType())
	}
	funds, err := requireFunds(c, "bid update")
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	updated.Descriptor = desc
	updated.Collateral, err = s.bidCollateral(req, funds)
	if err != nil {
		return nil, err
	}
	if err := sameBidTarget(existing.Collateral, updated.Collateral); err != nil {
		return nil, fmt.Errorf("%w: bid %s: %v", domain.ErrInvalidUpdate, existing.ID, err)
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	transfers := domain.Transfers{domain.BankSend{ToAddress: existing.Owner, Amount: domain.BidQuote(existing.Collateral)}}
	cs := store.NewChangeSet()
	cs.UpdateBid(existing, updated)
	if err := s.commit(cs, c, transfers); err != nil {
		return nil, err
	}
	s.logger.Info("bid updated", "bid_id", updated.ID, "type", updated.Type)
	return &Result{Bid: updated, Transfers: transfers}, nil
}

// CancelBid deletes a bid and refunds its quote. Only the owner or the admin
// may cancel.
func (s *Service) CancelBid(c Caller, id string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	if err := requireNoFunds(c, "cancel bid"); err != nil {
		return nil, err
	}
	bid, err := s.store.GetBid(id)
	if err != nil {
		return nil, err
	}
	if c.Sender != bid.Owner && !settings.IsAdmin(c.Sender) {
		return nil, fmt.Errorf("%w: only the owner or admin may cancel bid %s", domain.ErrUnauthorized, id)
	}

	transfers := domain.Transfers{domain.BankSend{ToAddress: bid.Owner, Amount: domain.BidQuote(bid.Collateral)}}
	cs := store.NewChangeSet()
	cs.DeleteBid(bid)
	if err := s.commit(cs, c, transfers); err != nil {
		return nil, err
	}
	s.logger.Info("bid cancelled", "bid_id", bid.ID, "type", bid.Type, "by", c.Sender)
	return &Result{Bid: bid, Transfers: transfers}, nil
}

func (s *Service) bidCollateral(req BidRequest, quote domain.Coins) (domain.BidCollateral, error) {
	switch r := req.(type) {
	case CoinTradeBid:
		return domain.CoinTradeBidCollateral{Base: r.Base, Quote: quote}, nil
	case MarkerTradeBid:
		m, err := s.registry.GetMarkerByDenom(r.MarkerDenom)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to look up marker %s: %v", domain.ErrInvalidExternalState, r.MarkerDenom, err)
		}
		return domain.MarkerTradeBidCollateral{MarkerAddress: m.Address, MarkerDenom: m.Denom, Quote: quote}, nil
	case MarkerShareSaleBid:
		m, err := s.registry.GetMarkerByDenom(r.MarkerDenom)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to look up marker %s: %v", domain.ErrInvalidExternalState, r.MarkerDenom, err)
		}
		return domain.MarkerShareSaleBidCollateral{
			MarkerAddress: m.Address, MarkerDenom: m.Denom, ShareCount: r.ShareCount, Quote: quote,
		}, nil
	case ScopeTradeBid:
		return domain.ScopeTradeBidCollateral{ScopeAddress: r.ScopeAddress, Quote: quote}, nil
	}
	return nil, fmt.Errorf("unsupported bid request %T", req)
}

// sameBidTarget rejects updates that point a bid at a different asset.
func sameBidTarget(prev, next domain.BidCollateral) error {
	switch p := prev.(type) {
	case domain.MarkerTradeBidCollateral:
		if n := next.(domain.MarkerTradeBidCollateral); n.MarkerDenom != p.MarkerDenom {
			return fmt.Errorf("marker cannot change from %s to %s", p.MarkerDenom, n.MarkerDenom)
		}
	case domain.MarkerShareSaleBidCollateral:
		if n := next.(domain.MarkerShareSaleBidCollateral); n.MarkerDenom != p.MarkerDenom {
			return fmt.Errorf("marker cannot change from %s to %s", p.MarkerDenom, n.MarkerDenom)
		}
	case domain.ScopeTradeBidCollateral:
		if n := next.(domain.ScopeTradeBidCollateral); n.ScopeAddress != p.ScopeAddress {
			return fmt.Errorf("scope cannot change from %s to %s", p.ScopeAddress, n.ScopeAddress)
		}
	}
	return nil
}
