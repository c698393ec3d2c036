package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/service"
)

// BidHandler handles HTTP requests for bid endpoints.
type BidHandler struct {
	svc *service.Service
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(svc *service.Service) *BidHandler {
	return &BidHandler{svc: svc}
}

// bidVariants holds exactly one bid request, keyed by asset class.
type bidVariants struct {
	CoinTrade       *service.CoinTradeBid       `json:"coin_trade,omitempty"`
	MarkerTrade     *service.MarkerTradeBid     `json:"marker_trade,omitempty"`
	MarkerShareSale *service.MarkerShareSaleBid `json:"marker_share_sale,omitempty"`
	ScopeTrade      *service.ScopeTradeBid      `json:"scope_trade,omitempty"`
}

// bidCommand is the JSON request body for POST /bids and PUT /bids/{bid_id}.
type bidCommand struct {
	Bid        bidVariants               `json:"bid"`
	Descriptor *domain.RequestDescriptor `json:"descriptor"`
	Funds      domain.Coins              `json:"funds"`
}

func (v bidVariants) request(pathID string) (service.BidRequest, error) {
	var reqs []service.BidRequest
	if v.CoinTrade != nil {
		if pathID != "" {
			v.CoinTrade.ID = pathID
		}
		reqs = append(reqs, *v.CoinTrade)
	}
	if v.MarkerTrade != nil {
		if pathID != "" {
			v.MarkerTrade.ID = pathID
		}
		reqs = append(reqs, *v.MarkerTrade)
	}
	if v.MarkerShareSale != nil {
		if pathID != "" {
			v.MarkerShareSale.ID = pathID
		}
		reqs = append(reqs, *v.MarkerShareSale)
	}
	if v.ScopeTrade != nil {
		if pathID != "" {
			v.ScopeTrade.ID = pathID
		}
		reqs = append(reqs, *v.ScopeTrade)
	}
	if len(reqs) != 1 {
		return nil, domain.NewValidationError([]string{
			"bid must set exactly one of: coin_trade, marker_trade, marker_share_sale, scope_trade",
		})
	}
	return reqs[0], nil
}

// bidResponse is the JSON response for a single bid. UnitPrice is set for
// share sale bids.
type bidResponse struct {
	Bid       *domain.BidOrder     `json:"bid"`
	UnitPrice []domain.DecimalCoin `json:"unit_price,omitempty"`
}

func buildBidResponse(b *domain.BidOrder) bidResponse {
	resp := bidResponse{Bid: b}
	if c, ok := b.Collateral.(domain.MarkerShareSaleBidCollateral); ok {
		resp.UnitPrice = domain.UnitPrice(c.Quote, c.ShareCount)
	}
	return resp
}

// Create handles POST /bids.
func (h *BidHandler) Create(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var cmd bidCommand
	if err := ParseJSON(r, &cmd); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := cmd.Bid.request("")
	if err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.CreateBid(service.Caller{Sender: sender, Funds: cmd.Funds}, req, cmd.Descriptor)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

// Update handles PUT /bids/{bid_id}.
func (h *BidHandler) Update(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var cmd bidCommand
	if err := ParseJSON(r, &cmd); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := cmd.Bid.request(chi.URLParam(r, "bid_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.UpdateBid(service.Caller{Sender: sender, Funds: cmd.Funds}, req, cmd.Descriptor)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Cancel handles DELETE /bids/{bid_id}.
func (h *BidHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CancelBid(service.Caller{Sender: sender}, chi.URLParam(r, "bid_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Get handles GET /bids/{bid_id}.
func (h *BidHandler) Get(w http.ResponseWriter, r *http.Request) {
	bid, err := h.svc.GetBid(chi.URLParam(r, "bid_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildBidResponse(bid))
}

// Search handles GET /bids/search. Filtering by owner lists an account's bids.
func (h *BidHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearch(r)
	if err != nil {
		mapError(w, err)
		return
	}
	bids, total, err := h.svc.SearchBids(q)
	if err != nil {
		mapError(w, err)
		return
	}
	items := make([]bidResponse, len(bids))
	for i, b := range bids {
		items[i] = buildBidResponse(b)
	}
	WriteJSON(w, http.StatusOK, pageResponse[bidResponse]{Items: items, Total: total, Page: q.Page, Limit: q.Limit})
}
