package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/service"
)

// AskHandler handles HTTP requests for ask endpoints.
type AskHandler struct {
	svc *service.Service
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(svc *service.Service) *AskHandler {
	return &AskHandler{svc: svc}
}

// askVariants holds exactly one ask request, keyed by asset class.
type askVariants struct {
	CoinTrade       *service.CoinTradeAsk       `json:"coin_trade,omitempty"`
	MarkerTrade     *service.MarkerTradeAsk     `json:"marker_trade,omitempty"`
	MarkerShareSale *service.MarkerShareSaleAsk `json:"marker_share_sale,omitempty"`
	ScopeTrade      *service.ScopeTradeAsk      `json:"scope_trade,omitempty"`
}

// askCommand is the JSON request body for POST /asks and PUT /asks/{ask_id}.
type askCommand struct {
	Ask        askVariants               `json:"ask"`
	Descriptor *domain.RequestDescriptor `json:"descriptor"`
	Funds      domain.Coins              `json:"funds"`
}

// request returns the single variant set in v. When pathID is non-empty it
// replaces the id in the body.
func (v askVariants) request(pathID string) (service.AskRequest, error) {
	var reqs []service.AskRequest
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
			"ask must set exactly one of: coin_trade, marker_trade, marker_share_sale, scope_trade",
		})
	}
	return reqs[0], nil
}

// askResponse is the JSON response for a single ask.
type askResponse struct {
	Ask *domain.AskOrder `json:"ask"`
}

// Create handles POST /asks.
func (h *AskHandler) Create(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var cmd askCommand
	if err := ParseJSON(r, &cmd); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := cmd.Ask.request("")
	if err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.CreateAsk(service.Caller{Sender: sender, Funds: cmd.Funds}, req, cmd.Descriptor)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

// Update handles PUT /asks/{ask_id}.
func (h *AskHandler) Update(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var cmd askCommand
	if err := ParseJSON(r, &cmd); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := cmd.Ask.request(chi.URLParam(r, "ask_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.UpdateAsk(service.Caller{Sender: sender, Funds: cmd.Funds}, req, cmd.Descriptor)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Cancel handles DELETE /asks/{ask_id}.
func (h *AskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CancelAsk(service.Caller{Sender: sender}, chi.URLParam(r, "ask_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Get handles GET /asks/{ask_id}.
func (h *AskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ask, err := h.svc.GetAsk(chi.URLParam(r, "ask_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, askResponse{Ask: ask})
}

// ListByCollateral handles GET /asks?collateral_id=.
func (h *AskHandler) ListByCollateral(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("collateral_id")
	if cid == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "collateral_id query parameter is required")
		return
	}
	asks, err := h.svc.GetAsksByCollateralID(cid)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"asks": asks})
}

// Search handles GET /asks/search.
func (h *AskHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearch(r)
	if err != nil {
		mapError(w, err)
		return
	}
	asks, total, err := h.svc.SearchAsks(q)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, pageResponse[*domain.AskOrder]{Items: asks, Total: total, Page: q.Page, Limit: q.Limit})
}
