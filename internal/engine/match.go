package engine

import (
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// MarkerRegistry reads live marker state.
type MarkerRegistry interface {
	GetMarkerByDenom(denom string) (*domain.Marker, error)
}

// ScopeRegistry reads live scope records.
type ScopeRegistry interface {
	GetScope(address string) (*domain.Scope, error)
}

// AttributeRegistry reads the identity attributes held by an address.
type AttributeRegistry interface {
	GetAttributes(address string) ([]string, error)
}

// MatchValidator decides whether an ask and a bid can settle against each
// other. Cached collateral snapshots are re-verified against the live marker
// registry on every call.
type MatchValidator struct {
	markers    MarkerRegistry
	attributes AttributeRegistry
}

// NewMatchValidator creates a MatchValidator over the given registries.
func NewMatchValidator(markers MarkerRegistry, attributes AttributeRegistry) *MatchValidator {
	return &MatchValidator{markers: markers, attributes: attributes}
}

// Validate returns every reason the pair cannot settle. An empty result means
// the pair is eligible. All checks run; none stops the others. Quote
// comparisons are skipped when acceptMismatchedBids is set.
func (v *MatchValidator) Validate(ask *domain.AskOrder, bid *domain.BidOrder, acceptMismatchedBids bool) []string {
	var msgs []string

	if ask.Type != bid.Type {
		msgs = append(msgs, fmt.Sprintf("ask type [%s] does not match bid type [%s]", ask.Type, bid.Type))
	}

	msgs = v.checkAttributes(msgs, "ask", ask.AttributeRequirement(), "bidder", bid.Owner)
	msgs = v.checkAttributes(msgs, "bid", bid.AttributeRequirement(), "asker", ask.Owner)

	checkQuote := !acceptMismatchedBids
	switch a := ask.Collateral.(type) {
	case domain.CoinTradeAskCollateral:
		if b, ok := bid.Collateral.(domain.CoinTradeBidCollateral); ok {
			msgs = checkCoinTrade(msgs, a, b, checkQuote)
		}
	case domain.MarkerTradeAskCollateral:
		if b, ok := bid.Collateral.(domain.MarkerTradeBidCollateral); ok {
			msgs = v.checkMarkerTrade(msgs, a, b, checkQuote)
		}
	case domain.MarkerShareSaleAskCollateral:
		if b, ok := bid.Collateral.(domain.MarkerShareSaleBidCollateral); ok {
			msgs = v.checkMarkerShareSale(msgs, a, b, checkQuote)
		}
	case domain.ScopeTradeAskCollateral:
		if b, ok := bid.Collateral.(domain.ScopeTradeBidCollateral); ok {
			msgs = checkScopeTrade(msgs, a, b, checkQuote)
		}
	}

	if ask.Collateral == nil || bid.Collateral == nil {
		msgs = append(msgs, "ask and bid must both carry collateral")
	} else if ask.Type == bid.Type && ask.Collateral.RequestType() != bid.Collateral.RequestType() {
		msgs = append(msgs, fmt.Sprintf("ask collateral [%s] and bid collateral [%s] are different variants",
			ask.Collateral.RequestType(), bid.Collateral.RequestType()))
	}
	return msgs
}

// checkAttributes verifies one side's requirement against its counterparty.
// A registry failure is reported as a violation.
func (v *MatchValidator) checkAttributes(msgs []string, side string, req *domain.AttributeRequirement, role, address string) []string {
	if req == nil {
		return msgs
	}
	held, err := v.attributes.GetAttributes(address)
	if err != nil {
		return append(msgs, fmt.Sprintf("failed to look up attributes for %s [%s]: %v", role, address, err))
	}
	if !req.SatisfiedBy(held) {
		msgs = append(msgs, fmt.Sprintf("%s requires %s of attributes %v but %s [%s] does not qualify",
			side, req.Type, req.Attributes, role, address))
	}
	return msgs
}

func checkCoinTrade(msgs []string, a domain.CoinTradeAskCollateral, b domain.CoinTradeBidCollateral, checkQuote bool) []string {
	if !a.Base.Equal(b.Base) {
		msgs = append(msgs, fmt.Sprintf("ask base [%s] does not match bid base [%s]", a.Base, b.Base))
	}
	if checkQuote && !a.Quote.Equal(b.Quote) {
		msgs = append(msgs, fmt.Sprintf("ask quote [%s] does not match bid quote [%s]", a.Quote, b.Quote))
	}
	return msgs
}

func (v *MatchValidator) checkMarkerTrade(msgs []string, a domain.MarkerTradeAskCollateral, b domain.MarkerTradeBidCollateral, checkQuote bool) []string {
	msgs = checkMarkerIdentity(msgs, a.MarkerDenom, a.MarkerAddress, b.MarkerDenom, b.MarkerAddress)

	holding, err := v.liveHolding(a.MarkerDenom)
	if err != nil {
		return append(msgs, err.Error())
	}
	if holding != a.ShareCount {
		msgs = append(msgs, fmt.Sprintf("marker [%s] now holds %d shares but the ask recorded %d",
			a.MarkerDenom, holding, a.ShareCount))
	}
	if checkQuote {
		msgs = checkTotalQuote(msgs, a.QuotePerShare, holding, b.Quote)
	}
	return msgs
}

func (v *MatchValidator) checkMarkerShareSale(msgs []string, a domain.MarkerShareSaleAskCollateral, b domain.MarkerShareSaleBidCollateral, checkQuote bool) []string {
	msgs = checkMarkerIdentity(msgs, a.MarkerDenom, a.MarkerAddress, b.MarkerDenom, b.MarkerAddress)

	if b.ShareCount > a.RemainingSharesInSale {
		msgs = append(msgs, fmt.Sprintf("bid wants %d shares but only %d remain in sale",
			b.ShareCount, a.RemainingSharesInSale))
	}
	switch a.SaleType.Kind {
	case domain.ShareSaleSingleTransaction:
		if b.ShareCount != a.TotalSharesInSale {
			msgs = append(msgs, fmt.Sprintf("single transaction sale requires bidding for all %d shares, bid wants %d",
				a.TotalSharesInSale, b.ShareCount))
		}
	case domain.ShareSaleMultipleTransactions:
		threshold := a.SaleType.Threshold()
		if b.ShareCount <= a.RemainingSharesInSale && a.RemainingSharesInSale-b.ShareCount < threshold {
			msgs = append(msgs, fmt.Sprintf("bid for %d shares would take the sale below its threshold of %d remaining shares",
				b.ShareCount, threshold))
		}
	default:
		msgs = append(msgs, fmt.Sprintf("unknown share sale type [%s]", a.SaleType.Kind))
	}

	holding, err := v.liveHolding(a.MarkerDenom)
	if err != nil {
		msgs = append(msgs, err.Error())
	} else if holding < a.RemainingSharesInSale {
		msgs = append(msgs, fmt.Sprintf("marker [%s] holds %d shares, fewer than the %d remaining in sale",
			a.MarkerDenom, holding, a.RemainingSharesInSale))
	}

	if checkQuote {
		msgs = checkTotalQuote(msgs, a.QuotePerShare, b.ShareCount, b.Quote)
	}
	return msgs
}

func checkScopeTrade(msgs []string, a domain.ScopeTradeAskCollateral, b domain.ScopeTradeBidCollateral, checkQuote bool) []string {
	if a.ScopeAddress != b.ScopeAddress {
		msgs = append(msgs, fmt.Sprintf("ask scope [%s] does not match bid scope [%s]", a.ScopeAddress, b.ScopeAddress))
	}
	if checkQuote && !a.Quote.Equal(b.Quote) {
		msgs = append(msgs, fmt.Sprintf("ask quote [%s] does not match bid quote [%s]", a.Quote, b.Quote))
	}
	return msgs
}

func checkMarkerIdentity(msgs []string, askDenom, askAddr, bidDenom, bidAddr string) []string {
	if askDenom != bidDenom {
		msgs = append(msgs, fmt.Sprintf("ask marker denom [%s] does not match bid marker denom [%s]", askDenom, bidDenom))
	}
	if askAddr != bidAddr {
		msgs = append(msgs, fmt.Sprintf("ask marker address [%s] does not match bid marker address [%s]", askAddr, bidAddr))
	}
	return msgs
}

// checkTotalQuote compares perShare × shares against the bid's quote.
func checkTotalQuote(msgs []string, perShare domain.Coins, shares uint64, bidQuote domain.Coins) []string {
	total, err := perShare.MulUint64(shares)
	if err != nil {
		return append(msgs, fmt.Sprintf("failed to compute quote for %d shares: %v", shares, err))
	}
	if !total.Equal(bidQuote) {
		msgs = append(msgs, fmt.Sprintf("quote for %d shares is [%s] but bid escrowed [%s]", shares, total, bidQuote))
	}
	return msgs
}

func (v *MatchValidator) liveHolding(denom string) (uint64, error) {
	m, err := v.markers.GetMarkerByDenom(denom)
	if err != nil {
		return 0, fmt.Errorf("failed to look up marker [%s]: %w", denom, err)
	}
	return m.OwnHolding()
}
