package service

import (
	"errors"
	"fmt"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// InitSettings stores initial when no settings exist yet and returns the
// settings in effect.
func (s *Service) InitSettings(initial domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.GetSettings()
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, store.ErrSettingsNotFound) {
		return nil, err
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	cs := store.NewChangeSet()
	cs.PutSettings(nil, &initial)
	if err := s.store.Commit(cs); err != nil {
		return nil, err
	}
	s.logger.Info("settings initialized", "admin", initial.Admin, "contract_address", initial.ContractAddress)
	return &initial, nil
}

// UpdateSettings replaces the settings. Only the current admin may do so, and
// the contract address is fixed once set.
func (s *Service) UpdateSettings(c Caller, next domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settings()
	if err != nil {
		return nil, err
	}
	if !current.IsAdmin(c.Sender) {
		return nil, fmt.Errorf("%w: only the admin may update settings", domain.ErrUnauthorized)
	}
	if err := requireNoFunds(c, "update settings"); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.ContractAddress != current.ContractAddress {
		return nil, fmt.Errorf("%w: contract address cannot change", domain.ErrInvalidUpdate)
	}

	cs := store.NewChangeSet()
	cs.PutSettings(current, &next)
	if err := s.store.Commit(cs); err != nil {
		return nil, err
	}
	s.logger.Info("settings updated", "admin", next.Admin)
	return &next, nil
}

// GetSettings returns the settings in effect.
func (s *Service) GetSettings() (*domain.Settings, error) {
	return s.settings()
}
