package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// ErrNotSettleable is returned when Execute is handed a pair whose
// collateral variants cannot settle against each other. Callers are expected
// to run the MatchValidator first.
var ErrNotSettleable = errors.New("not_settleable")

// Settlement is the outcome of one executed match: the transfers to perform
// and what happens to each order. The bid is always consumed.
type Settlement struct {
	ID         string             `json:"id"`
	AskID      string             `json:"ask_id"`
	BidID      string             `json:"bid_id"`
	Type       domain.RequestType `json:"type"`
	Transfers  domain.Transfers   `json:"transfers"`
	AskDeleted bool               `json:"ask_deleted"`
	// UpdatedAsk is set when a partially filled share sale stays open.
	UpdatedAsk *domain.AskOrder `json:"updated_ask,omitempty"`
}

// Custody describes the contract's position when a settlement runs.
type Custody struct {
	ContractAddress string
	// OpenShareSales counts other open share sale asks on the same marker.
	// Custody of a marker is only released by the last of them.
	OpenShareSales int
}

// Executor turns a validated ask/bid pair into a Settlement. It never writes
// anything; the caller commits the result.
type Executor struct {
	markers MarkerRegistry
	scopes  ScopeRegistry
}

// NewExecutor creates an Executor over the given registries.
func NewExecutor(markers MarkerRegistry, scopes ScopeRegistry) *Executor {
	return &Executor{markers: markers, scopes: scopes}
}

// Execute computes the settlement of ask against bid. Any failure to derive
// the data it needs returns an error and no settlement.
func (e *Executor) Execute(ask *domain.AskOrder, bid *domain.BidOrder, custody Custody) (*Settlement, error) {
	s := &Settlement{
		ID:    uuid.New().String(),
		AskID: ask.ID,
		BidID: bid.ID,
		Type:  ask.Type,
	}

	var err error
	switch a := ask.Collateral.(type) {
	case domain.CoinTradeAskCollateral:
		b, ok := bid.Collateral.(domain.CoinTradeBidCollateral)
		if !ok {
			return nil, mismatch(ask, bid)
		}
		s.Transfers = domain.Transfers{
			domain.BankSend{ToAddress: ask.Owner, Amount: b.Quote},
			domain.BankSend{ToAddress: bid.Owner, Amount: a.Base},
		}
		s.AskDeleted = true

	case domain.MarkerTradeAskCollateral:
		b, ok := bid.Collateral.(domain.MarkerTradeBidCollateral)
		if !ok {
			return nil, mismatch(ask, bid)
		}
		err = e.settleMarkerTrade(s, ask, a, bid, b, custody)

	case domain.MarkerShareSaleAskCollateral:
		b, ok := bid.Collateral.(domain.MarkerShareSaleBidCollateral)
		if !ok {
			return nil, mismatch(ask, bid)
		}
		err = settleShareSale(s, ask, a, bid, b, custody)

	case domain.ScopeTradeAskCollateral:
		b, ok := bid.Collateral.(domain.ScopeTradeBidCollateral)
		if !ok {
			return nil, mismatch(ask, bid)
		}
		err = e.settleScopeTrade(s, ask, a, bid, b, custody)

	default:
		return nil, mismatch(ask, bid)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// settleMarkerTrade hands the whole marker to the bidder: the asker's
// original grants are restored with the bidder in the asker's place.
func (e *Executor) settleMarkerTrade(s *Settlement, ask *domain.AskOrder, a domain.MarkerTradeAskCollateral, bid *domain.BidOrder, b domain.MarkerTradeBidCollateral, custody Custody) error {
	m, err := e.markers.GetMarkerByDenom(a.MarkerDenom)
	if err != nil {
		return fmt.Errorf("%w: failed to look up marker %s: %v", domain.ErrInvalidExternalState, a.MarkerDenom, err)
	}
	if _, err := m.OwnHolding(); err != nil {
		return err
	}

	grants := domain.ReassignGrants(a.RemovedPermissions, ask.Owner, bid.Owner)
	s.Transfers = append(domain.ReleaseMarker(a.MarkerDenom, custody.ContractAddress, grants),
		domain.BankSend{ToAddress: ask.Owner, Amount: b.Quote})
	s.AskDeleted = true
	return nil
}

// settleShareSale pays the asker, withdraws the traded shares to the bidder,
// and either closes or decrements the sale.
func settleShareSale(s *Settlement, ask *domain.AskOrder, a domain.MarkerShareSaleAskCollateral, bid *domain.BidOrder, b domain.MarkerShareSaleBidCollateral, custody Custody) error {
	if b.ShareCount > a.RemainingSharesInSale {
		return fmt.Errorf("%w: bid %s wants %d shares, ask %s has %d remaining",
			ErrNotSettleable, bid.ID, b.ShareCount, ask.ID, a.RemainingSharesInSale)
	}
	remaining := a.RemainingSharesInSale - b.ShareCount

	s.Transfers = domain.Transfers{
		domain.BankSend{ToAddress: ask.Owner, Amount: b.Quote},
		domain.MarkerWithdraw{
			Denom:     a.MarkerDenom,
			Amount:    domain.Coin{Denom: a.MarkerDenom, Amount: b.ShareCount},
			Recipient: bid.Owner,
		},
	}

	complete := a.SaleType.Kind == domain.ShareSaleSingleTransaction || remaining == a.SaleType.Threshold()
	if !complete {
		updated := ask.Clone()
		c := a
		c.RemainingSharesInSale = remaining
		updated.Collateral = c
		s.UpdatedAsk = updated
		return nil
	}

	if custody.OpenShareSales == 0 {
		s.Transfers = append(s.Transfers, domain.ReleaseMarker(a.MarkerDenom, custody.ContractAddress, a.RemovedPermissions)...)
	}
	s.AskDeleted = true
	return nil
}

// settleScopeTrade pays the asker the ask's quote out of the bid's escrow,
// refunds whatever the bid escrowed beyond it, and writes the scope over to
// the bidder.
func (e *Executor) settleScopeTrade(s *Settlement, ask *domain.AskOrder, a domain.ScopeTradeAskCollateral, bid *domain.BidOrder, b domain.ScopeTradeBidCollateral, custody Custody) error {
	scope, err := e.scopes.GetScope(a.ScopeAddress)
	if err != nil {
		return fmt.Errorf("%w: failed to look up scope %s: %v", domain.ErrInvalidExternalState, a.ScopeAddress, err)
	}

	if paid := b.Quote.CappedBy(a.Quote); len(paid) > 0 {
		s.Transfers = append(s.Transfers, domain.BankSend{ToAddress: ask.Owner, Amount: paid})
	}
	if surplus := b.Quote.Surplus(a.Quote); len(surplus) > 0 {
		s.Transfers = append(s.Transfers, domain.BankSend{ToAddress: bid.Owner, Amount: surplus})
	}
	s.Transfers = append(s.Transfers, domain.WriteScope{
		Scope:   scope.WithSoleOwner(bid.Owner),
		Signers: []string{custody.ContractAddress},
	})
	s.AskDeleted = true
	return nil
}

func mismatch(ask *domain.AskOrder, bid *domain.BidOrder) error {
	return fmt.Errorf("%w: ask %s (%s) cannot settle against bid %s (%s)",
		ErrNotSettleable, ask.ID, ask.Type, bid.ID, bid.Type)
}
