package domain

import (
	"fmt"
	"strings"
)

// Validate checks every structural invariant of the ask and returns a
// *ValidationError listing each violated rule, or nil.
func (a *AskOrder) Validate() error {
	var msgs []string
	msgs = checkIdentity(msgs, "ask", a.ID, a.Owner)
	if a.Collateral == nil {
		msgs = append(msgs, "ask collateral must be provided")
	} else if a.Type != a.Collateral.RequestType() {
		msgs = append(msgs, fmt.Sprintf("ask type %q does not match collateral type %q", a.Type, a.Collateral.RequestType()))
	}
	msgs = checkDescriptor(msgs, "ask", a.Descriptor)

	switch c := a.Collateral.(type) {
	case CoinTradeAskCollateral:
		msgs = checkCoins(msgs, "coin trade ask base", c.Base)
		msgs = checkCoins(msgs, "coin trade ask quote", c.Quote)
	case MarkerTradeAskCollateral:
		msgs = checkMarkerIdentity(msgs, "marker trade ask", c.MarkerAddress, c.MarkerDenom)
		if c.ShareCount == 0 {
			msgs = append(msgs, "marker trade ask share count must be greater than zero")
		}
		msgs = checkCoins(msgs, "marker trade ask quote per share", c.QuotePerShare)
		msgs = checkRemovedPermissions(msgs, "marker trade ask", a.Owner, c.RemovedPermissions)
	case MarkerShareSaleAskCollateral:
		msgs = checkMarkerIdentity(msgs, "marker share sale ask", c.MarkerAddress, c.MarkerDenom)
		if c.TotalSharesInSale == 0 {
			msgs = append(msgs, "marker share sale ask total shares in sale must be greater than zero")
		}
		if c.RemainingSharesInSale == 0 {
			msgs = append(msgs, "marker share sale ask remaining shares in sale must be greater than zero")
		}
		if c.RemainingSharesInSale > c.TotalSharesInSale {
			msgs = append(msgs, "marker share sale ask remaining shares in sale must not exceed total shares in sale")
		}
		msgs = checkCoins(msgs, "marker share sale ask quote per share", c.QuotePerShare)
		msgs = checkRemovedPermissions(msgs, "marker share sale ask", a.Owner, c.RemovedPermissions)
		msgs = checkShareSaleType(msgs, c.SaleType, c.TotalSharesInSale, c.RemainingSharesInSale)
	case ScopeTradeAskCollateral:
		if strings.TrimSpace(c.ScopeAddress) == "" {
			msgs = append(msgs, "scope trade ask scope address must not be blank")
		}
		msgs = checkCoins(msgs, "scope trade ask quote", c.Quote)
	}
	return NewValidationError(msgs)
}

// ValidateNew applies Validate plus the rules that only hold when an ask is
// first created: a share sale must not have been partially filled yet.
func (a *AskOrder) ValidateNew() error {
	var msgs []string
	if err := a.Validate(); err != nil {
		msgs = append(msgs, err.(*ValidationError).Messages...)
	}
	if c, ok := a.Collateral.(MarkerShareSaleAskCollateral); ok && c.RemainingSharesInSale != c.TotalSharesInSale {
		msgs = append(msgs, "marker share sale ask must start with remaining shares equal to total shares")
	}
	return NewValidationError(msgs)
}

// Validate checks every structural invariant of the bid and returns a
// *ValidationError listing each violated rule, or nil.
func (b *BidOrder) Validate() error {
	var msgs []string
	msgs = checkIdentity(msgs, "bid", b.ID, b.Owner)
	if b.Collateral == nil {
		msgs = append(msgs, "bid collateral must be provided")
	} else if b.Type != b.Collateral.RequestType() {
		msgs = append(msgs, fmt.Sprintf("bid type %q does not match collateral type %q", b.Type, b.Collateral.RequestType()))
	}
	msgs = checkDescriptor(msgs, "bid", b.Descriptor)

	switch c := b.Collateral.(type) {
	case CoinTradeBidCollateral:
		msgs = checkCoins(msgs, "coin trade bid base", c.Base)
		msgs = checkCoins(msgs, "coin trade bid quote", c.Quote)
	case MarkerTradeBidCollateral:
		msgs = checkMarkerIdentity(msgs, "marker trade bid", c.MarkerAddress, c.MarkerDenom)
		msgs = checkCoins(msgs, "marker trade bid quote", c.Quote)
	case MarkerShareSaleBidCollateral:
		msgs = checkMarkerIdentity(msgs, "marker share sale bid", c.MarkerAddress, c.MarkerDenom)
		if c.ShareCount == 0 {
			msgs = append(msgs, "marker share sale bid share count must be greater than zero")
		}
		msgs = checkCoins(msgs, "marker share sale bid quote", c.Quote)
	case ScopeTradeBidCollateral:
		if strings.TrimSpace(c.ScopeAddress) == "" {
			msgs = append(msgs, "scope trade bid scope address must not be blank")
		}
		msgs = checkCoins(msgs, "scope trade bid quote", c.Quote)
	}
	return NewValidationError(msgs)
}

func checkIdentity(msgs []string, kind, id, owner string) []string {
	if strings.TrimSpace(id) == "" {
		msgs = append(msgs, kind+" id must not be blank")
	}
	if strings.TrimSpace(owner) == "" {
		msgs = append(msgs, kind+" owner must not be blank")
	}
	return msgs
}

func checkDescriptor(msgs []string, kind string, d *RequestDescriptor) []string {
	if d == nil || d.AttributeRequirement == nil {
		return msgs
	}
	req := d.AttributeRequirement
	if len(req.Attributes) == 0 {
		msgs = append(msgs, kind+" attribute requirement must include at least one attribute")
	}
	for i, attr := range req.Attributes {
		if strings.TrimSpace(attr) == "" {
			msgs = append(msgs, fmt.Sprintf("%s attribute requirement attribute %d must not be blank", kind, i))
		}
	}
	switch req.Type {
	case AttributeRequirementAll, AttributeRequirementAny, AttributeRequirementNone:
	default:
		msgs = append(msgs, fmt.Sprintf("%s attribute requirement type %q must be one of: all, any, none", kind, req.Type))
	}
	return msgs
}

func checkCoins(msgs []string, field string, coins Coins) []string {
	if len(coins) == 0 {
		return append(msgs, field+" must not be empty")
	}
	for _, c := range coins {
		if strings.TrimSpace(c.Denom) == "" {
			msgs = append(msgs, fmt.Sprintf("%s includes a coin with a blank denom", field))
		}
		if c.Amount == 0 {
			msgs = append(msgs, fmt.Sprintf("%s includes a zero amount for denom %q", field, c.Denom))
		}
	}
	return msgs
}

func checkMarkerIdentity(msgs []string, kind, address, denom string) []string {
	if strings.TrimSpace(address) == "" {
		msgs = append(msgs, kind+" marker address must not be blank")
	}
	if strings.TrimSpace(denom) == "" {
		msgs = append(msgs, kind+" marker denom must not be blank")
	}
	return msgs
}

func checkRemovedPermissions(msgs []string, kind, owner string, grants []AccessGrant) []string {
	for _, g := range grants {
		if g.Address == owner {
			return msgs
		}
	}
	return append(msgs, fmt.Sprintf("%s removed permissions must include the owner %q", kind, owner))
}

// checkShareSaleType rejects sale types that no bid could ever fill given the
// shares still remaining.
func checkShareSaleType(msgs []string, t ShareSaleType, total, remaining uint64) []string {
	switch t.Kind {
	case ShareSaleSingleTransaction:
		if t.RemoveSaleShareThreshold != nil {
			msgs = append(msgs, "single transaction share sale must not set a remove sale share threshold")
		}
		if remaining != total {
			msgs = append(msgs, "single transaction share sale must not be partially filled")
		}
	case ShareSaleMultipleTransactions:
		if t.RemoveSaleShareThreshold == nil {
			break
		}
		if *t.RemoveSaleShareThreshold >= total {
			msgs = append(msgs, "remove sale share threshold must be less than total shares in sale")
		} else if *t.RemoveSaleShareThreshold >= remaining {
			msgs = append(msgs, "remove sale share threshold must be less than remaining shares in sale")
		}
	default:
		msgs = append(msgs, fmt.Sprintf("share sale type %q must be one of: single_transaction, multiple_transactions", t.Kind))
	}
	return msgs
}
