package handler

import (
	"net/http"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/service"
)

// MatchHandler handles HTTP requests for match endpoints.
type MatchHandler struct {
	svc *service.Service
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(svc *service.Service) *MatchHandler {
	return &MatchHandler{svc: svc}
}

// executeMatchRequest is the JSON request body for POST /matches.
type executeMatchRequest struct {
	AskID                string       `json:"ask_id"`
	BidID                string       `json:"bid_id"`
	AcceptMismatchedBids bool         `json:"accept_mismatched_bids"`
	Funds                domain.Coins `json:"funds"`
}

// Execute handles POST /matches.
func (h *MatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var req executeMatchRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.svc.ExecuteMatch(service.Caller{Sender: sender, Funds: req.Funds}, req.AskID, req.BidID, req.AcceptMismatchedBids)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Report handles GET /matches/report?ask_id=&bid_id=.
func (h *MatchHandler) Report(w http.ResponseWriter, r *http.Request) {
	askID := r.URL.Query().Get("ask_id")
	bidID := r.URL.Query().Get("bid_id")
	if askID == "" || bidID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "ask_id and bid_id query parameters are required")
		return
	}
	report, err := h.svc.MatchReport(askID, bidID)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
