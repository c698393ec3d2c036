package service

import (
	"errors"
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/engine"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// ExecuteMatch settles an ask against a bid. Only the admin may match. Every
// match validation failure is returned at once as a *domain.ValidationError,
// and nothing is written.
func (s *Service) ExecuteMatch(c Caller, askID, bidID string, acceptMismatchedBids bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	if !settings.IsAdmin(c.Sender) {
		return nil, fmt.Errorf("%w: only the admin may execute matches", domain.ErrUnauthorized)
	}
	if err := requireNoFunds(c, "execute match"); err != nil {
		return nil, err
	}

	ask, err := s.store.GetAsk(askID)
	if err != nil {
		return nil, err
	}
	bid, err := s.store.GetBid(bidID)
	if err != nil {
		return nil, err
	}

	if msgs := s.validator.Validate(ask, bid, acceptMismatchedBids); len(msgs) > 0 {
		return nil, domain.NewValidationError(msgs)
	}

	custody := engine.Custody{ContractAddress: settings.ContractAddress}
	if col, ok := ask.Collateral.(domain.MarkerShareSaleAskCollateral); ok {
		others, err := s.otherShareSales(col.MarkerAddress, ask.ID)
		if err != nil {
			return nil, err
		}
		custody.OpenShareSales = len(others)
	}

	settlement, err := s.executor.Execute(ask, bid, custody)
	if err != nil {
		return nil, err
	}

	cs := store.NewChangeSet()
	cs.DeleteBid(bid)
	resultAsk := ask
	if settlement.AskDeleted {
		cs.DeleteAsk(ask)
	} else {
		cs.UpdateAsk(ask, settlement.UpdatedAsk)
		resultAsk = settlement.UpdatedAsk
	}
	if err := s.commit(cs, c, settlement.Transfers); err != nil {
		return nil, err
	}

	s.logger.Info("match settled",
		"settlement_id", settlement.ID,
		"ask_id", ask.ID,
		"bid_id", bid.ID,
		"type", settlement.Type,
		"ask_deleted", settlement.AskDeleted,
		"accept_mismatched_bids", acceptMismatchedBids,
		"transfers", len(settlement.Transfers),
	)
	return &Result{Ask: resultAsk, Bid: bid, Settlement: settlement, Transfers: settlement.Transfers}, nil
}

// MatchReport is a dry run of ExecuteMatch's validation.
type MatchReport struct {
	AskExists                  bool     `json:"ask_exists"`
	BidExists                  bool     `json:"bid_exists"`
	StandardMatchPossible      bool     `json:"standard_match_possible"`
	QuoteMismatchMatchPossible bool     `json:"quote_mismatch_match_possible"`
	ErrorMessages              []string `json:"error_messages"`
}

// MatchReport reports whether the pair could settle, with and without
// accepting a quote mismatch. Nothing is written.
func (s *Service) MatchReport(askID, bidID string) (*MatchReport, error) {
	report := &MatchReport{ErrorMessages: []string{}}

	ask, err := s.store.GetAsk(askID)
	switch {
	case err == nil:
		report.AskExists = true
	case errors.Is(err, domain.ErrAskNotFound):
		report.ErrorMessages = append(report.ErrorMessages, fmt.Sprintf("ask with id [%s] was not found", askID))
	default:
		return nil, err
	}
	bid, err := s.store.GetBid(bidID)
	switch {
	case err == nil:
		report.BidExists = true
	case errors.Is(err, domain.ErrBidNotFound):
		report.ErrorMessages = append(report.ErrorMessages, fmt.Sprintf("bid with id [%s] was not found", bidID))
	default:
		return nil, err
	}
	if !report.AskExists || !report.BidExists {
		return report, nil
	}

	standard := s.validator.Validate(ask, bid, false)
	mismatched := s.validator.Validate(ask, bid, true)
	report.StandardMatchPossible = len(standard) == 0
	report.QuoteMismatchMatchPossible = len(mismatched) == 0
	report.ErrorMessages = append(report.ErrorMessages, standard...)
	return report, nil
}
