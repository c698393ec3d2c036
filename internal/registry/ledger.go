package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"sync"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// Sentinel errors returned by Ledger lookups and transfer execution.
var (
	// ErrMarkerNotFound is returned when no marker has the requested denom.
	ErrMarkerNotFound = errors.New("marker_not_found")
	// ErrScopeNotFound is returned when no scope has the requested address.
	ErrScopeNotFound = errors.New("scope_not_found")
	// ErrInsufficientBalance is returned when an account or marker cannot cover a debit.
	ErrInsufficientBalance = errors.New("insufficient_balance")
	// ErrAccessDenied is returned when the sender lacks the grant or signature
	// an instruction requires.
	ErrAccessDenied = errors.New("access_denied")
)

// Ledger is an in-memory stand-in for the host chain: the marker, scope and
// attribute registries plus bank balances. It executes transfer instructions
// with the contract as the implied sender. It is safe for concurrent use.
type Ledger struct {
	mu         sync.RWMutex
	contract   string
	markers    map[string]*domain.Marker // denom → marker
	scopes     map[string]*domain.Scope  // address → scope
	attributes map[string][]string
	balances   map[string]map[string]uint64 // address → denom → amount
}

// NewLedger creates an empty ledger whose custody account is contract.
func NewLedger(contract string) *Ledger {
	return &Ledger{
		contract:   contract,
		markers:    make(map[string]*domain.Marker),
		scopes:     make(map[string]*domain.Scope),
		attributes: make(map[string][]string),
		balances:   make(map[string]map[string]uint64),
	}
}

// GetMarkerByDenom returns a copy of the marker with the given denom.
func (l *Ledger) GetMarkerByDenom(denom string) (*domain.Marker, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.markers[denom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, denom)
	}
	return cloneMarker(m), nil
}

// GetScope returns a copy of the scope at address.
func (l *Ledger) GetScope(address string) (*domain.Scope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.scopes[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, address)
	}
	return cloneScope(s), nil
}

// GetAttributes returns the attributes held by address. An unknown address
// holds none.
func (l *Ledger) GetAttributes(address string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.attributes[address]...), nil
}

// Balance returns the coins held by address, sorted by denom.
func (l *Ledger) Balance(address string) domain.Coins {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out domain.Coins
	for denom, amount := range l.balances[address] {
		if amount > 0 {
			out = append(out, domain.Coin{Denom: denom, Amount: amount})
		}
	}
	return out.Sorted()
}

// PutMarker registers or replaces a marker.
func (l *Ledger) PutMarker(m domain.Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers[m.Denom] = cloneMarker(&m)
}

// PutScope registers or replaces a scope.
func (l *Ledger) PutScope(s domain.Scope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scopes[s.Address] = cloneScope(&s)
}

// SetAttributes replaces the attributes held by address.
func (l *Ledger) SetAttributes(address string, attrs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attributes[address] = append([]string{}, attrs...)
}

// Credit mints coins into address.
func (l *Ledger) Credit(address string, coins domain.Coins) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx := l.begin()
	for _, c := range coins {
		if err := tx.credit(address, c); err != nil {
			return err
		}
	}
	tx.commit()
	return nil
}

// Execute moves funds from sender into contract custody and then performs
// every transfer in order. Either all of it happens or none of it does.
func (l *Ledger) Execute(sender string, funds domain.Coins, transfers domain.Transfers) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := l.begin()
	for _, c := range funds {
		if err := tx.move(sender, l.contract, c); err != nil {
			return fmt.Errorf("failed to escrow funds from %s: %w", sender, err)
		}
	}
	for i, t := range transfers {
		if err := tx.apply(t); err != nil {
			return fmt.Errorf("transfer %d (%s): %w", i, t.Kind(), err)
		}
	}
	tx.commit()
	return nil
}

// Seed is the JSON layout accepted by LoadSeed.
type Seed struct {
	Markers    []domain.Marker         `json:"markers"`
	Scopes     []domain.Scope          `json:"scopes"`
	Attributes map[string][]string     `json:"attributes"`
	Balances   map[string]domain.Coins `json:"balances"`
}

// LoadSeed reads a Seed from path and adds it to the ledger.
func (l *Ledger) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registry seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse registry seed %s: %w", path, err)
	}
	for _, m := range seed.Markers {
		l.PutMarker(m)
	}
	for _, s := range seed.Scopes {
		l.PutScope(s)
	}
	for addr, attrs := range seed.Attributes {
		l.SetAttributes(addr, attrs)
	}
	for addr, coins := range seed.Balances {
		if err := l.Credit(addr, coins); err != nil {
			return fmt.Errorf("failed to seed balance of %s: %w", addr, err)
		}
	}
	return nil
}

// ledgerTx stages changes over the ledger. Nothing is visible until commit.
// The caller holds l.mu for writing.
type ledgerTx struct {
	l        *Ledger
	markers  map[string]*domain.Marker
	scopes   map[string]*domain.Scope
	balances map[string]map[string]uint64
}

func (l *Ledger) begin() *ledgerTx {
	return &ledgerTx{
		l:        l,
		markers:  make(map[string]*domain.Marker),
		scopes:   make(map[string]*domain.Scope),
		balances: make(map[string]map[string]uint64),
	}
}

func (tx *ledgerTx) commit() {
	for denom, m := range tx.markers {
		tx.l.markers[denom] = m
	}
	for addr, s := range tx.scopes {
		tx.l.scopes[addr] = s
	}
	for addr, bal := range tx.balances {
		tx.l.balances[addr] = bal
	}
}

func (tx *ledgerTx) marker(denom string) (*domain.Marker, error) {
	if m, ok := tx.markers[denom]; ok {
		return m, nil
	}
	m, ok := tx.l.markers[denom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, denom)
	}
	m = cloneMarker(m)
	tx.markers[denom] = m
	return m, nil
}

func (tx *ledgerTx) balance(addr string) map[string]uint64 {
	if b, ok := tx.balances[addr]; ok {
		return b
	}
	b := make(map[string]uint64, len(tx.l.balances[addr]))
	for denom, amount := range tx.l.balances[addr] {
		b[denom] = amount
	}
	tx.balances[addr] = b
	return b
}

func (tx *ledgerTx) credit(addr string, c domain.Coin) error {
	b := tx.balance(addr)
	sum, carry := bits.Add64(b[c.Denom], c.Amount, 0)
	if carry != 0 {
		return fmt.Errorf("balance overflow crediting %s to %s", c, addr)
	}
	b[c.Denom] = sum
	return nil
}

func (tx *ledgerTx) move(from, to string, c domain.Coin) error {
	b := tx.balance(from)
	if b[c.Denom] < c.Amount {
		return fmt.Errorf("%w: %s holds %d%s, needs %s", ErrInsufficientBalance, from, b[c.Denom], c.Denom, c)
	}
	b[c.Denom] -= c.Amount
	return tx.credit(to, c)
}

func (tx *ledgerTx) apply(t domain.Transfer) error {
	switch t := t.(type) {
	case domain.BankSend:
		for _, c := range t.Amount {
			if err := tx.move(tx.l.contract, t.ToAddress, c); err != nil {
				return err
			}
		}
	case domain.MarkerGrantAccess:
		m, err := tx.marker(t.Denom)
		if err != nil {
			return err
		}
		grant := domain.AccessGrant{Address: t.Address, Permissions: append([]domain.MarkerAccess{}, t.Permissions...)}
		for i := range m.Permissions {
			if m.Permissions[i].Address == t.Address {
				m.Permissions[i] = grant
				return nil
			}
		}
		m.Permissions = append(m.Permissions, grant)
	case domain.MarkerRevokeAccess:
		m, err := tx.marker(t.Denom)
		if err != nil {
			return err
		}
		kept := m.Permissions[:0]
		found := false
		for _, g := range m.Permissions {
			if g.Address == t.Address {
				found = true
				continue
			}
			kept = append(kept, g)
		}
		if !found {
			return fmt.Errorf("%w: %s holds no access on %s", ErrAccessDenied, t.Address, t.Denom)
		}
		m.Permissions = kept
	case domain.MarkerWithdraw:
		m, err := tx.marker(t.Denom)
		if err != nil {
			return err
		}
		if g, ok := m.GrantFor(tx.l.contract); !ok || !(g.Has(domain.MarkerAccessWithdraw) || g.Has(domain.MarkerAccessAdmin)) {
			return fmt.Errorf("%w: contract cannot withdraw from %s", ErrAccessDenied, t.Denom)
		}
		if err := withdrawHolding(m, t.Amount); err != nil {
			return err
		}
		return tx.credit(t.Recipient, t.Amount)
	case domain.WriteScope:
		current, err := tx.scope(t.Scope.Address)
		if err != nil {
			return err
		}
		if !contains(t.Signers, current.ValueOwnerAddress) {
			return fmt.Errorf("%w: scope %s must be signed by its value owner %s",
				ErrAccessDenied, current.Address, current.ValueOwnerAddress)
		}
		tx.scopes[t.Scope.Address] = cloneScope(&t.Scope)
	default:
		return fmt.Errorf("unsupported transfer %T", t)
	}
	return nil
}

func (tx *ledgerTx) scope(address string) (*domain.Scope, error) {
	if s, ok := tx.scopes[address]; ok {
		return s, nil
	}
	s, ok := tx.l.scopes[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, address)
	}
	return s, nil
}

func withdrawHolding(m *domain.Marker, c domain.Coin) error {
	for i := range m.Holdings {
		if m.Holdings[i].Denom != c.Denom {
			continue
		}
		if m.Holdings[i].Amount < c.Amount {
			break
		}
		m.Holdings[i].Amount -= c.Amount
		return nil
	}
	return fmt.Errorf("%w: marker %s cannot cover withdrawal of %s", ErrInsufficientBalance, m.Denom, c)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneMarker(m *domain.Marker) *domain.Marker {
	out := *m
	out.Holdings = append(domain.Coins(nil), m.Holdings...)
	out.Permissions = make([]domain.AccessGrant, len(m.Permissions))
	for i, g := range m.Permissions {
		out.Permissions[i] = domain.AccessGrant{
			Address:     g.Address,
			Permissions: append([]domain.MarkerAccess(nil), g.Permissions...),
		}
	}
	return &out
}

func cloneScope(s *domain.Scope) *domain.Scope {
	out := *s
	out.Owners = append([]domain.Party(nil), s.Owners...)
	return &out
}
