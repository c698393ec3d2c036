package domain

import (
	"encoding/json"
	"fmt"
)

// RequestType names the asset class an order trades.
type RequestType string

const (
	RequestTypeCoinTrade       RequestType = "coin_trade"
	RequestTypeMarkerTrade     RequestType = "marker_trade"
	RequestTypeMarkerShareSale RequestType = "marker_share_sale"
	RequestTypeScopeTrade      RequestType = "scope_trade"
)

// Valid reports whether t is one of the known asset classes.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeCoinTrade, RequestTypeMarkerTrade, RequestTypeMarkerShareSale, RequestTypeScopeTrade:
		return true
	}
	return false
}

// ShareSaleKind selects whether a share sale fills once or many times.
type ShareSaleKind string

const (
	ShareSaleSingleTransaction    ShareSaleKind = "single_transaction"
	ShareSaleMultipleTransactions ShareSaleKind = "multiple_transactions"
)

// ShareSaleType describes how a marker share sale may be filled.
// RemoveSaleShareThreshold only applies to multiple-transaction sales: once
// the remaining share count reaches it, the sale closes.
type ShareSaleType struct {
	Kind                     ShareSaleKind `json:"kind"`
	RemoveSaleShareThreshold *uint64       `json:"remove_sale_share_threshold,omitempty"`
}

// SingleTransaction returns a sale type that must be bought in full at once.
func SingleTransaction() ShareSaleType {
	return ShareSaleType{Kind: ShareSaleSingleTransaction}
}

// MultipleTransactions returns a sale type that may be partially filled.
// A nil threshold closes the sale when no shares remain.
func MultipleTransactions(threshold *uint64) ShareSaleType {
	return ShareSaleType{Kind: ShareSaleMultipleTransactions, RemoveSaleShareThreshold: threshold}
}

// Threshold returns the remaining-share floor at which the sale completes.
func (t ShareSaleType) Threshold() uint64 {
	if t.RemoveSaleShareThreshold == nil {
		return 0
	}
	return *t.RemoveSaleShareThreshold
}

// AskCollateral is what an ask escrows. Exactly one variant per asset class.
type AskCollateral interface {
	RequestType() RequestType
	isAskCollateral()
}

// CoinTradeAskCollateral escrows Base and wants Quote in return.
type CoinTradeAskCollateral struct {
	Base  Coins `json:"base"`
	Quote Coins `json:"quote"`
}

// MarkerTradeAskCollateral offers an entire marker. RemovedPermissions is the
// snapshot of every grant revoked when the marker entered escrow.
type MarkerTradeAskCollateral struct {
	MarkerAddress      string        `json:"marker_address"`
	MarkerDenom        string        `json:"marker_denom"`
	ShareCount         uint64        `json:"share_count"`
	QuotePerShare      Coins         `json:"quote_per_share"`
	RemovedPermissions []AccessGrant `json:"removed_permissions"`
}

// MarkerShareSaleAskCollateral offers part of a marker's own-denom holding.
type MarkerShareSaleAskCollateral struct {
	MarkerAddress         string        `json:"marker_address"`
	MarkerDenom           string        `json:"marker_denom"`
	TotalSharesInSale     uint64        `json:"total_shares_in_sale"`
	RemainingSharesInSale uint64        `json:"remaining_shares_in_sale"`
	QuotePerShare         Coins         `json:"quote_per_share"`
	RemovedPermissions    []AccessGrant `json:"removed_permissions"`
	SaleType              ShareSaleType `json:"sale_type"`
}

// ScopeTradeAskCollateral offers a scope held in custody by the contract.
type ScopeTradeAskCollateral struct {
	ScopeAddress string `json:"scope_address"`
	Quote        Coins  `json:"quote"`
}

func (CoinTradeAskCollateral) RequestType() RequestType       { return RequestTypeCoinTrade }
func (MarkerTradeAskCollateral) RequestType() RequestType     { return RequestTypeMarkerTrade }
func (MarkerShareSaleAskCollateral) RequestType() RequestType { return RequestTypeMarkerShareSale }
func (ScopeTradeAskCollateral) RequestType() RequestType      { return RequestTypeScopeTrade }

func (CoinTradeAskCollateral) isAskCollateral()       {}
func (MarkerTradeAskCollateral) isAskCollateral()     {}
func (MarkerShareSaleAskCollateral) isAskCollateral() {}
func (ScopeTradeAskCollateral) isAskCollateral()      {}

// BidCollateral is what a bid escrows and expects, mirrored from the ask side.
type BidCollateral interface {
	RequestType() RequestType
	isBidCollateral()
}

// CoinTradeBidCollateral escrows Quote and wants Base.
type CoinTradeBidCollateral struct {
	Base  Coins `json:"base"`
	Quote Coins `json:"quote"`
}

// MarkerTradeBidCollateral escrows Quote for a whole marker.
type MarkerTradeBidCollateral struct {
	MarkerAddress string `json:"marker_address"`
	MarkerDenom   string `json:"marker_denom"`
	Quote         Coins  `json:"quote"`
}

// MarkerShareSaleBidCollateral escrows Quote for ShareCount shares.
type MarkerShareSaleBidCollateral struct {
	MarkerAddress string `json:"marker_address"`
	MarkerDenom   string `json:"marker_denom"`
	ShareCount    uint64 `json:"share_count"`
	Quote         Coins  `json:"quote"`
}

// ScopeTradeBidCollateral escrows Quote for a scope.
type ScopeTradeBidCollateral struct {
	ScopeAddress string `json:"scope_address"`
	Quote        Coins  `json:"quote"`
}

func (CoinTradeBidCollateral) RequestType() RequestType       { return RequestTypeCoinTrade }
func (MarkerTradeBidCollateral) RequestType() RequestType     { return RequestTypeMarkerTrade }
func (MarkerShareSaleBidCollateral) RequestType() RequestType { return RequestTypeMarkerShareSale }
func (ScopeTradeBidCollateral) RequestType() RequestType      { return RequestTypeScopeTrade }

func (CoinTradeBidCollateral) isBidCollateral()       {}
func (MarkerTradeBidCollateral) isBidCollateral()     {}
func (MarkerShareSaleBidCollateral) isBidCollateral() {}
func (ScopeTradeBidCollateral) isBidCollateral()      {}

// BidQuote returns the coins a bid holds in escrow.
func BidQuote(c BidCollateral) Coins {
	switch c := c.(type) {
	case CoinTradeBidCollateral:
		return c.Quote
	case MarkerTradeBidCollateral:
		return c.Quote
	case MarkerShareSaleBidCollateral:
		return c.Quote
	case ScopeTradeBidCollateral:
		return c.Quote
	}
	return nil
}

// marshalVariant encodes a union member as {"<request_type>": {...}}.
func marshalVariant(t RequestType, v any) ([]byte, error) {
	return json.Marshal(map[RequestType]any{t: v})
}

func splitVariant(data []byte) (RequestType, json.RawMessage, error) {
	var env map[RequestType]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	if len(env) != 1 {
		return "", nil, fmt.Errorf("collateral must have exactly one variant, got %d", len(env))
	}
	for t, raw := range env {
		return t, raw, nil
	}
	return "", nil, nil
}

func unmarshalAskCollateral(data []byte) (AskCollateral, error) {
	t, raw, err := splitVariant(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case RequestTypeCoinTrade:
		var c CoinTradeAskCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeMarkerTrade:
		var c MarkerTradeAskCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeMarkerShareSale:
		var c MarkerShareSaleAskCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeScopeTrade:
		var c ScopeTradeAskCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown ask collateral variant %q", t)
}

func unmarshalBidCollateral(data []byte) (BidCollateral, error) {
	t, raw, err := splitVariant(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case RequestTypeCoinTrade:
		var c CoinTradeBidCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeMarkerTrade:
		var c MarkerTradeBidCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeMarkerShareSale:
		var c MarkerShareSaleBidCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	case RequestTypeScopeTrade:
		var c ScopeTradeBidCollateral
		err = json.Unmarshal(raw, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown bid collateral variant %q", t)
}
