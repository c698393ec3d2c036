package domain

import "fmt"

// MarkerAccess is a single permission on a marker (tokenized account).
type MarkerAccess string

const (
	MarkerAccessAdmin    MarkerAccess = "admin"
	MarkerAccessBurn     MarkerAccess = "burn"
	MarkerAccessDeposit  MarkerAccess = "deposit"
	MarkerAccessDelete   MarkerAccess = "delete"
	MarkerAccessMint     MarkerAccess = "mint"
	MarkerAccessTransfer MarkerAccess = "transfer"
	MarkerAccessWithdraw MarkerAccess = "withdraw"
)

// AccessGrant is the set of permissions one address holds on a marker.
type AccessGrant struct {
	Address     string         `json:"address"`
	Permissions []MarkerAccess `json:"permissions"`
}

// Has reports whether the grant includes the permission.
func (g AccessGrant) Has(p MarkerAccess) bool {
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// MarkerStatus is the lifecycle state of a marker.
type MarkerStatus string

const (
	MarkerStatusProposed  MarkerStatus = "proposed"
	MarkerStatusFinalized MarkerStatus = "finalized"
	MarkerStatusActive    MarkerStatus = "active"
	MarkerStatusCancelled MarkerStatus = "cancelled"
	MarkerStatusDestroyed MarkerStatus = "destroyed"
)

// Marker is the tokenized-account registry's view of an account.
type Marker struct {
	Address     string        `json:"address"`
	Denom       string        `json:"denom"`
	Status      MarkerStatus  `json:"status"`
	Permissions []AccessGrant `json:"permissions"`
	Holdings    Coins         `json:"holdings"`
}

// GrantFor returns the grant held by addr, if any.
func (m *Marker) GrantFor(addr string) (AccessGrant, bool) {
	for _, g := range m.Permissions {
		if g.Address == addr {
			return g, true
		}
	}
	return AccessGrant{}, false
}

// OwnHolding returns the amount of the marker's own denom it holds. Exactly
// one holding entry of that denom is expected; any other shape is an
// ErrInvalidExternalState.
func (m *Marker) OwnHolding() (uint64, error) {
	var (
		found  int
		amount uint64
	)
	for _, c := range m.Holdings {
		if c.Denom == m.Denom {
			found++
			amount = c.Amount
		}
	}
	if found != 1 {
		return 0, fmt.Errorf("%w: marker %s holds %d entries of its own denom, expected 1", ErrInvalidExternalState, m.Denom, found)
	}
	return amount, nil
}

// PartyRole is the role a party holds on a scope.
type PartyRole string

const (
	PartyRoleOwner      PartyRole = "owner"
	PartyRoleOriginator PartyRole = "originator"
	PartyRoleServicer   PartyRole = "servicer"
)

// Party is one owner entry of a scope.
type Party struct {
	Address string    `json:"address"`
	Role    PartyRole `json:"role"`
}

// Scope is the metadata-record registry's view of a record.
type Scope struct {
	Address           string  `json:"address"`
	Owners            []Party `json:"owners"`
	ValueOwnerAddress string  `json:"value_owner_address"`
}

// WithSoleOwner returns a copy of the scope owned and value-owned by addr.
func (s Scope) WithSoleOwner(addr string) Scope {
	return Scope{
		Address:           s.Address,
		Owners:            []Party{{Address: addr, Role: PartyRoleOwner}},
		ValueOwnerAddress: addr,
	}
}
