package domain

import "strings"

// Settings is the engine's contract-level configuration.
type Settings struct {
	Admin           string `json:"admin"`
	ContractAddress string `json:"contract_address"`
	// Fees are recorded for reporting; collection happens outside the engine.
	AskFee Coins `json:"ask_fee,omitempty"`
	BidFee Coins `json:"bid_fee,omitempty"`
}

// Validate reports every defect in the settings. Fees are optional.
func (s *Settings) Validate() error {
	var msgs []string
	if strings.TrimSpace(s.Admin) == "" {
		msgs = append(msgs, "admin must not be blank")
	}
	if strings.TrimSpace(s.ContractAddress) == "" {
		msgs = append(msgs, "contract address must not be blank")
	}
	if len(s.AskFee) > 0 {
		msgs = checkCoins(msgs, "ask fee", s.AskFee)
	}
	if len(s.BidFee) > 0 {
		msgs = checkCoins(msgs, "bid fee", s.BidFee)
	}
	return NewValidationError(msgs)
}

// IsAdmin reports whether addr is the configured administrator.
func (s *Settings) IsAdmin(addr string) bool {
	return addr != "" && addr == s.Admin
}
