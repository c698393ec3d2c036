package service

import "github.com/efreitasn/bilateralexchange/internal/domain"

// AskRequest is the caller's description of an ask. The escrowed collateral
// is derived from it, the attached funds, and the live registries.
type AskRequest interface {
	AskID() string
	RequestType() domain.RequestType
}

// CoinTradeAsk offers the attached funds for Quote.
type CoinTradeAsk struct {
	ID    string       `json:"id"`
	Quote domain.Coins `json:"quote"`
}

// MarkerTradeAsk offers an entire marker at QuotePerShare of its holding.
type MarkerTradeAsk struct {
	ID            string       `json:"id"`
	MarkerDenom   string       `json:"marker_denom"`
	QuotePerShare domain.Coins `json:"quote_per_share"`
}

// MarkerShareSaleAsk offers SharesToSell of a marker's holding.
type MarkerShareSaleAsk struct {
	ID            string               `json:"id"`
	MarkerDenom   string               `json:"marker_denom"`
	SharesToSell  uint64               `json:"shares_to_sell"`
	QuotePerShare domain.Coins         `json:"quote_per_share"`
	ShareSaleType domain.ShareSaleType `json:"share_sale_type"`
}

// ScopeTradeAsk offers a scope already written over to the contract.
type ScopeTradeAsk struct {
	ID           string       `json:"id"`
	ScopeAddress string       `json:"scope_address"`
	Quote        domain.Coins `json:"quote"`
}

func (r CoinTradeAsk) AskID() string       { return r.ID }
func (r MarkerTradeAsk) AskID() string     { return r.ID }
func (r MarkerShareSaleAsk) AskID() string { return r.ID }
func (r ScopeTradeAsk) AskID() string      { return r.ID }

func (CoinTradeAsk) RequestType() domain.RequestType       { return domain.RequestTypeCoinTrade }
func (MarkerTradeAsk) RequestType() domain.RequestType     { return domain.RequestTypeMarkerTrade }
func (MarkerShareSaleAsk) RequestType() domain.RequestType { return domain.RequestTypeMarkerShareSale }
func (ScopeTradeAsk) RequestType() domain.RequestType      { return domain.RequestTypeScopeTrade }

// BidRequest is the caller's description of a bid. The attached funds become
// the bid's quote.
type BidRequest interface {
	BidID() string
	RequestType() domain.RequestType
}

// CoinTradeBid pays the attached funds for Base.
type CoinTradeBid struct {
	ID   string       `json:"id"`
	Base domain.Coins `json:"base"`
}

// MarkerTradeBid pays the attached funds for a whole marker.
type MarkerTradeBid struct {
	ID          string `json:"id"`
	MarkerDenom string `json:"marker_denom"`
}

// MarkerShareSaleBid pays the attached funds for ShareCount shares.
type MarkerShareSaleBid struct {
	ID          string `json:"id"`
	MarkerDenom string `json:"marker_denom"`
	ShareCount  uint64 `json:"share_count"`
}

// ScopeTradeBid pays the attached funds for a scope.
type ScopeTradeBid struct {
	ID           string `json:"id"`
	ScopeAddress string `json:"scope_address"`
}

func (r CoinTradeBid) BidID() string       { return r.ID }
func (r MarkerTradeBid) BidID() string     { return r.ID }
func (r MarkerShareSaleBid) BidID() string { return r.ID }
func (r ScopeTradeBid) BidID() string      { return r.ID }

func (CoinTradeBid) RequestType() domain.RequestType       { return domain.RequestTypeCoinTrade }
func (MarkerTradeBid) RequestType() domain.RequestType     { return domain.RequestTypeMarkerTrade }
func (MarkerShareSaleBid) RequestType() domain.RequestType { return domain.RequestTypeMarkerShareSale }
func (ScopeTradeBid) RequestType() domain.RequestType      { return domain.RequestTypeScopeTrade }
