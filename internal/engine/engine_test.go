package engine

import (
	"errors"
	"strings"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/registry"
)

const contract = "contract"

// newTestLedger returns a ledger holding one active marker "mdenom" with 100
// shares in contract custody and one scope held by the contract.
func newTestLedger() *registry.Ledger {
	l := registry.NewLedger(contract)
	l.PutMarker(domain.Marker{
		Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusActive,
		Permissions: []domain.AccessGrant{
			{Address: contract, Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin, domain.MarkerAccessWithdraw}},
		},
		Holdings: domain.Coins{{Denom: "mdenom", Amount: 100}},
	})
	l.PutScope(domain.Scope{
		Address:           "scope-addr",
		Owners:            []domain.Party{{Address: contract, Role: domain.PartyRoleOwner}},
		ValueOwnerAddress: contract,
	})
	return l
}

type failingAttributes struct{}

func (failingAttributes) GetAttributes(string) ([]string, error) {
	return nil, errors.New("registry unavailable")
}

func askerGrants() []domain.AccessGrant {
	return []domain.AccessGrant{{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin, domain.MarkerAccessWithdraw}}}
}

func coinPair() (*domain.AskOrder, *domain.BidOrder) {
	ask := &domain.AskOrder{
		ID: "ask-1", Type: domain.RequestTypeCoinTrade, Owner: "asker",
		Collateral: domain.CoinTradeAskCollateral{
			Base:  domain.Coins{{Denom: "base_1", Amount: 200}},
			Quote: domain.Coins{{Denom: "quote_1", Amount: 100}},
		},
	}
	bid := &domain.BidOrder{
		ID: "bid-1", Type: domain.RequestTypeCoinTrade, Owner: "bidder",
		Collateral: domain.CoinTradeBidCollateral{
			Base:  domain.Coins{{Denom: "base_1", Amount: 200}},
			Quote: domain.Coins{{Denom: "quote_1", Amount: 100}},
		},
	}
	return ask, bid
}

func markerPair(shares uint64, quote uint64) (*domain.AskOrder, *domain.BidOrder) {
	ask := &domain.AskOrder{
		ID: "ask-m", Type: domain.RequestTypeMarkerTrade, Owner: "asker",
		Collateral: domain.MarkerTradeAskCollateral{
			MarkerAddress: "marker-addr", MarkerDenom: "mdenom", ShareCount: shares,
			QuotePerShare: domain.Coins{{Denom: "nhash", Amount: 2}}, RemovedPermissions: askerGrants(),
		},
	}
	bid := &domain.BidOrder{
		ID: "bid-m", Type: domain.RequestTypeMarkerTrade, Owner: "bidder",
		Collateral: domain.MarkerTradeBidCollateral{
			MarkerAddress: "marker-addr", MarkerDenom: "mdenom",
			Quote: domain.Coins{{Denom: "nhash", Amount: quote}},
		},
	}
	return ask, bid
}

func shareSaleAsk(total, remaining uint64, saleType domain.ShareSaleType) *domain.AskOrder {
	return &domain.AskOrder{
		ID: "ask-s", Type: domain.RequestTypeMarkerShareSale, Owner: "asker",
		Collateral: domain.MarkerShareSaleAskCollateral{
			MarkerAddress: "marker-addr", MarkerDenom: "mdenom",
			TotalSharesInSale: total, RemainingSharesInSale: remaining,
			QuotePerShare: domain.Coins{{Denom: "nhash", Amount: 3}}, RemovedPermissions: askerGrants(),
			SaleType: saleType,
		},
	}
}

func shareSaleBid(id string, shares, quote uint64) *domain.BidOrder {
	return &domain.BidOrder{
		ID: id, Type: domain.RequestTypeMarkerShareSale, Owner: "bidder",
		Collateral: domain.MarkerShareSaleBidCollateral{
			MarkerAddress: "marker-addr", MarkerDenom: "mdenom", ShareCount: shares,
			Quote: domain.Coins{{Denom: "nhash", Amount: quote}},
		},
	}
}

func scopePair(askQuote, bidQuote domain.Coins) (*domain.AskOrder, *domain.BidOrder) {
	ask := &domain.AskOrder{
		ID: "ask-sc", Type: domain.RequestTypeScopeTrade, Owner: "asker",
		Collateral: domain.ScopeTradeAskCollateral{ScopeAddress: "scope-addr", Quote: askQuote},
	}
	bid := &domain.BidOrder{
		ID: "bid-sc", Type: domain.RequestTypeScopeTrade, Owner: "bidder",
		Collateral: domain.ScopeTradeBidCollateral{ScopeAddress: "scope-addr", Quote: bidQuote},
	}
	return ask, bid
}

func hasMessage(msgs []string, fragment string) bool {
	for _, m := range msgs {
		if strings.Contains(m, fragment) {
			return true
		}
	}
	return false
}
