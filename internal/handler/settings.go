package handler

import (
	"net/http"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/service"
)

// SettingsHandler handles HTTP requests for the settings endpoints.
type SettingsHandler struct {
	svc *service.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc *service.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// updateSettingsRequest is the JSON request body for PUT /settings.
type updateSettingsRequest struct {
	Admin           string       `json:"admin"`
	ContractAddress string       `json:"contract_address"`
	AskFee          domain.Coins `json:"ask_fee"`
	BidFee          domain.Coins `json:"bid_fee"`
	Funds           domain.Coins `json:"funds"`
}

// Get handles GET /settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSettings()
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// Update handles PUT /settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireSender(w, r)
	if !ok {
		return
	}
	var req updateSettingsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s, err := h.svc.UpdateSettings(service.Caller{Sender: sender, Funds: req.Funds}, domain.Settings{
		Admin:           req.Admin,
		ContractAddress: req.ContractAddress,
		AskFee:          req.AskFee,
		BidFee:          req.BidFee,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}
