package service

import (
	"errors"
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// CreateAsk takes the collateral described by req into contract custody and
// stores the new ask, owned by the caller.
func (s *Service) CreateAsk(c Caller, req AskRequest, desc *domain.RequestDescriptor) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAsk(req.AskID()); err == nil {
		return nil, fmt.Errorf("%w: ask %q", domain.ErrAskAlreadyExists, req.AskID())
	} else if !errors.Is(err, domain.ErrAskNotFound) {
		return nil, err
	}

	ask := &domain.AskOrder{ID: req.AskID(), Type: req.RequestType(), Owner: c.Sender, Descriptor: desc}
	var transfers domain.Transfers

	switch r := req.(type) {
	case CoinTradeAsk:
		funds, err := requireFunds(c, "coin trade ask")
		if err != nil {
			return nil, err
		}
		ask.Collateral = domain.CoinTradeAskCollateral{Base: funds, Quote: r.Quote}

	case MarkerTradeAsk:
		if err := requireNoFunds(c, "marker trade ask"); err != nil {
			return nil, err
		}
		m, holding, err := s.activeMarker(r.MarkerDenom)
		if err != nil {
			return nil, err
		}
		if err := s.requireCollateralFree(m.Address); err != nil {
			return nil, err
		}
		removed, revokes, err := takeCustody(m, c.Sender, settings.ContractAddress)
		if err != nil {
			return nil, err
		}
		ask.Collateral = domain.MarkerTradeAskCollateral{
			MarkerAddress:      m.Address,
			MarkerDenom:        m.Denom,
			ShareCount:         holding,
			QuotePerShare:      r.QuotePerShare,
			RemovedPermissions: removed,
		}
		transfers = revokes

	case MarkerShareSaleAsk:
		if err := requireNoFunds(c, "marker share sale ask"); err != nil {
			return nil, err
		}
		m, holding, err := s.activeMarker(r.MarkerDenom)
		if err != nil {
			return nil, err
		}
		others, err := s.otherShareSales(m.Address, ask.ID)
		if err != nil {
			return nil, err
		}
		var removed []domain.AccessGrant
		if len(others) == 0 {
			removed, transfers, err = takeCustody(m, c.Sender, settings.ContractAddress)
			if err != nil {
				return nil, err
			}
		} else {
			// The marker is already in custody; reuse the snapshot taken then.
			removed = others[0].RemovedPermissions
			if !hasGrant(removed, c.Sender) {
				return nil, fmt.Errorf("%w: %s held no permissions on marker %s when it entered custody",
					domain.ErrUnauthorized, c.Sender, m.Denom)
			}
		}
		if err := checkListable(m.Denom, holding, listedShares(others), r.SharesToSell); err != nil {
			return nil, err
		}
		ask.Collateral = domain.MarkerShareSaleAskCollateral{
			MarkerAddress:         m.Address,
			MarkerDenom:           m.Denom,
			TotalSharesInSale:     r.SharesToSell,
			RemainingSharesInSale: r.SharesToSell,
			QuotePerShare:         r.QuotePerShare,
			RemovedPermissions:    removed,
			SaleType:              r.ShareSaleType,
		}

	case ScopeTradeAsk:
		if err := requireNoFunds(c, "scope trade ask"); err != nil {
			return nil, err
		}
		scope, err := s.registry.GetScope(r.ScopeAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to look up scope %s: %v", domain.ErrInvalidExternalState, r.ScopeAddress, err)
		}
		if !heldSolelyBy(scope, settings.ContractAddress) {
			return nil, fmt.Errorf("%w: scope %s must be owned and value-owned solely by the contract",
				domain.ErrInvalidExternalState, scope.Address)
		}
		if err := s.requireCollateralFree(scope.Address); err != nil {
			return nil, err
		}
		ask.Collateral = domain.ScopeTradeAskCollateral{ScopeAddress: scope.Address, Quote: r.Quote}

	default:
		return nil, fmt.Errorf("unsupported ask request %T", req)
	}

	if err := ask.ValidateNew(); err != nil {
		return nil, err
	}

	cs := store.NewChangeSet()
	cs.CreateAsk(ask)
	if err := s.commit(cs, c, transfers); err != nil {
		return nil, err
	}
	s.logger.Info("ask created",
		"ask_id", ask.ID,
		"type", ask.Type,
		"owner", ask.Owner,
		"collateral_id", ask.CollateralID(),
	)
	return &Result{Ask: ask, Transfers: transfers}, nil
}

// UpdateAsk replaces the terms of an existing ask. The asset class and the
// escrowed collateral's identity cannot change.
func (s *Service) UpdateAsk(c Caller, req AskRequest, desc *domain.RequestDescriptor) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetAsk(req.AskID())
	if err != nil {
		return nil, err
	}
	if existing.Owner != c.Sender {
		return nil, fmt.Errorf("%w: only the owner may update ask %s", domain.ErrUnauthorized, existing.ID)
	}
	if existing.Type != req.RequestType() {
		return nil, fmt.Errorf("%w: ask %s is a %s, cannot become a %s",
			domain.ErrInvalidUpdate, existing.ID, existing.Type, req.RequestType())
	}

	updated := existing.Clone()
	updated.Descriptor = desc
	var transfers domain.Transfers

	switch r := req.(type) {
	case CoinTradeAsk:
		funds, err := requireFunds(c, "coin trade ask update")
		if err != nil {
			return nil, err
		}
		old := existing.Collateral.(domain.CoinTradeAskCollateral)
		transfers = domain.Transfers{domain.BankSend{ToAddress: existing.Owner, Amount: old.Base}}
		updated.Collateral = domain.CoinTradeAskCollateral{Base: funds, Quote: r.Quote}

	case MarkerTradeAsk:
		if err := requireNoFunds(c, "marker trade ask update"); err != nil {
			return nil, err
		}
		col := existing.Collateral.(domain.MarkerTradeAskCollateral)
		if r.MarkerDenom != col.MarkerDenom {
			return nil, fmt.Errorf("%w: ask %s escrows marker %s", domain.ErrInvalidUpdate, existing.ID, col.MarkerDenom)
		}
		col.QuotePerShare = r.QuotePerShare
		updated.Collateral = col

	case MarkerShareSaleAsk:
		if err := requireNoFunds(c, "marker share sale ask update"); err != nil {
			return nil, err
		}
		col := existing.Collateral.(domain.MarkerShareSaleAskCollateral)
		if r.MarkerDenom != col.MarkerDenom {
			return nil, fmt.Errorf("%w: ask %s escrows marker %s", domain.ErrInvalidUpdate, existing.ID, col.MarkerDenom)
		}
		if r.SharesToSell != col.TotalSharesInSale {
			if col.RemainingSharesInSale != col.TotalSharesInSale {
				return nil, fmt.Errorf("%w: shares in sale cannot change after ask %s was partially filled",
					domain.ErrInvalidUpdate, existing.ID)
			}
			_, holding, err := s.activeMarker(col.MarkerDenom)
			if err != nil {
				return nil, err
			}
			others, err := s.otherShareSales(col.MarkerAddress, existing.ID)
			if err != nil {
				return nil, err
			}
			if err := checkListable(col.MarkerDenom, holding, listedShares(others), r.SharesToSell); err != nil {
				return nil, err
			}
			col.TotalSharesInSale = r.SharesToSell
			col.RemainingSharesInSale = r.SharesToSell
		}
		if col.RemainingSharesInSale != col.TotalSharesInSale && !sameSaleType(col.SaleType, r.ShareSaleType) {
			return nil, fmt.Errorf("%w: sale type cannot change after ask %s was partially filled",
				domain.ErrInvalidUpdate, existing.ID)
		}
		col.QuotePerShare = r.QuotePerShare
		col.SaleType = r.ShareSaleType
		updated.Collateral = col

	case ScopeTradeAsk:
		if err := requireNoFunds(c, "scope trade ask update"); err != nil {
			return nil, err
		}
		col := existing.Collateral.(domain.ScopeTradeAskCollateral)
		if r.ScopeAddress != col.ScopeAddress {
			return nil, fmt.Errorf("%w: ask %s escrows scope %s", domain.ErrInvalidUpdate, existing.ID, col.ScopeAddress)
		}
		col.Quote = r.Quote
		updated.Collateral = col

	default:
		return nil, fmt.Errorf("unsupported ask request %T", req)
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	cs := store.NewChangeSet()
	cs.UpdateAsk(existing, updated)
	if err := s.commit(cs, c, transfers); err != nil {
		return nil, err
	}
	s.logger.Info("ask updated", "ask_id", updated.ID, "type", updated.Type)
	return &Result{Ask: updated, Transfers: transfers}, nil
}

// CancelAsk deletes an ask and returns its collateral to the owner. Only the
// owner or the admin may cancel.
func (s *Service) CancelAsk(c Caller, id string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	if err := requireNoFunds(c, "cancel ask"); err != nil {
		return nil, err
	}
	ask, err := s.store.GetAsk(id)
	if err != nil {
		return nil, err
	}
	if c.Sender != ask.Owner && !settings.IsAdmin(c.Sender) {
		return nil, fmt.Errorf("%w: only the owner or admin may cancel ask %s", domain.ErrUnauthorized, id)
	}

	var transfers domain.Transfers
	switch col := ask.Collateral.(type) {
	case domain.CoinTradeAskCollateral:
		transfers = domain.Transfers{domain.BankSend{ToAddress: ask.Owner, Amount: col.Base}}

	case domain.MarkerTradeAskCollateral:
		transfers = domain.ReleaseMarker(col.MarkerDenom, settings.ContractAddress, col.RemovedPermissions)

	case domain.MarkerShareSaleAskCollateral:
		others, err := s.otherShareSales(col.MarkerAddress, ask.ID)
		if err != nil {
			return nil, err
		}
		if len(others) == 0 {
			transfers = domain.ReleaseMarker(col.MarkerDenom, settings.ContractAddress, col.RemovedPermissions)
		}

	case domain.ScopeTradeAskCollateral:
		scope, err := s.registry.GetScope(col.ScopeAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to look up scope %s: %v", domain.ErrInvalidExternalState, col.ScopeAddress, err)
		}
		transfers = domain.Transfers{domain.WriteScope{
			Scope:   scope.WithSoleOwner(ask.Owner),
			Signers: []string{settings.ContractAddress},
		}}
	}

	cs := store.NewChangeSet()
	cs.DeleteAsk(ask)
	if err := s.commit(cs, c, transfers); err != nil {
		return nil, err
	}
	s.logger.Info("ask cancelled", "ask_id", ask.ID, "type", ask.Type, "by", c.Sender)
	return &Result{Ask: ask, Transfers: transfers}, nil
}

// activeMarker returns the marker with denom and its own-denom holding. The
// marker must be active.
func (s *Service) activeMarker(denom string) (*domain.Marker, uint64, error) {
	m, err := s.registry.GetMarkerByDenom(denom)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to look up marker %s: %v", domain.ErrInvalidExternalState, denom, err)
	}
	if m.Status != domain.MarkerStatusActive {
		return nil, 0, fmt.Errorf("%w: marker %s is %s, not active", domain.ErrInvalidExternalState, denom, m.Status)
	}
	holding, err := m.OwnHolding()
	if err != nil {
		return nil, 0, err
	}
	return m, holding, nil
}

func (s *Service) requireCollateralFree(collateralID string) error {
	asks, err := s.store.AsksByCollateralID(collateralID)
	if err != nil {
		return err
	}
	if len(asks) > 0 {
		return fmt.Errorf("%w: %s is already escrowed by ask %s", domain.ErrCollateralInUse, collateralID, asks[0].ID)
	}
	return nil
}

// otherShareSales returns the open share sales on a marker, excluding
// excludeID. Any other kind of ask holding the marker is a conflict.
func (s *Service) otherShareSales(markerAddress, excludeID string) ([]domain.MarkerShareSaleAskCollateral, error) {
	asks, err := s.store.AsksByCollateralID(markerAddress)
	if err != nil {
		return nil, err
	}
	var out []domain.MarkerShareSaleAskCollateral
	for _, a := range asks {
		if a.ID == excludeID {
			continue
		}
		col, ok := a.Collateral.(domain.MarkerShareSaleAskCollateral)
		if !ok {
			return nil, fmt.Errorf("%w: %s is already escrowed by ask %s", domain.ErrCollateralInUse, markerAddress, a.ID)
		}
		out = append(out, col)
	}
	return out, nil
}

// takeCustody checks that both the sender and the contract administer m and
// returns the grants the contract must revoke, with the revocations.
func takeCustody(m *domain.Marker, sender, contract string) ([]domain.AccessGrant, domain.Transfers, error) {
	if g, ok := m.GrantFor(sender); !ok || !g.Has(domain.MarkerAccessAdmin) {
		return nil, nil, fmt.Errorf("%w: %s does not hold admin on marker %s", domain.ErrUnauthorized, sender, m.Denom)
	}
	if g, ok := m.GrantFor(contract); !ok || !g.Has(domain.MarkerAccessAdmin) {
		return nil, nil, fmt.Errorf("%w: contract does not hold admin on marker %s", domain.ErrInvalidExternalState, m.Denom)
	}
	var (
		removed []domain.AccessGrant
		revokes domain.Transfers
	)
	for _, g := range m.Permissions {
		if g.Address == contract {
			continue
		}
		removed = append(removed, g)
		revokes = append(revokes, domain.MarkerRevokeAccess{Denom: m.Denom, Address: g.Address})
	}
	return removed, revokes, nil
}

func listedShares(sales []domain.MarkerShareSaleAskCollateral) uint64 {
	var total uint64
	for _, s := range sales {
		total += s.RemainingSharesInSale
	}
	return total
}

func checkListable(denom string, holding, listed, shares uint64) error {
	if listed > holding || shares > holding-listed {
		return domain.NewValidationError([]string{fmt.Sprintf(
			"marker %s holds %d shares with %d already listed, cannot list %d more", denom, holding, listed, shares)})
	}
	return nil
}

func hasGrant(grants []domain.AccessGrant, addr string) bool {
	for _, g := range grants {
		if g.Address == addr {
			return true
		}
	}
	return false
}

func heldSolelyBy(scope *domain.Scope, addr string) bool {
	if scope.ValueOwnerAddress != addr || len(scope.Owners) == 0 {
		return false
	}
	for _, p := range scope.Owners {
		if p.Address != addr {
			return false
		}
	}
	return true
}

func sameSaleType(a, b domain.ShareSaleType) bool {
	return a.Kind == b.Kind && a.Threshold() == b.Threshold()
}
