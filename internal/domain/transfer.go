package domain

import (
	"encoding/json"
	"fmt"
)

// TransferKind names a transfer instruction variant.
type TransferKind string

const (
	TransferBankSend           TransferKind = "bank_send"
	TransferMarkerGrantAccess  TransferKind = "marker_grant_access"
	TransferMarkerRevokeAccess TransferKind = "marker_revoke_access"
	TransferMarkerWithdraw     TransferKind = "marker_withdraw"
	TransferWriteScope         TransferKind = "write_scope"
)

// Transfer is an instruction for the host to execute alongside the state
// change that produced it. The contract is always the implied sender.
type Transfer interface {
	Kind() TransferKind
	isTransfer()
}

// BankSend pays coins out of contract custody.
type BankSend struct {
	ToAddress string `json:"to_address"`
	Amount    Coins  `json:"amount"`
}

// MarkerGrantAccess grants permissions on a marker.
type MarkerGrantAccess struct {
	Denom       string         `json:"denom"`
	Address     string         `json:"address"`
	Permissions []MarkerAccess `json:"permissions"`
}

// MarkerRevokeAccess removes every permission an address holds on a marker.
type MarkerRevokeAccess struct {
	Denom   string `json:"denom"`
	Address string `json:"address"`
}

// MarkerWithdraw moves coins out of a marker's holdings to a recipient.
type MarkerWithdraw struct {
	Denom     string `json:"denom"`
	Amount    Coin   `json:"amount"`
	Recipient string `json:"recipient"`
}

// WriteScope replaces a scope record, signed by Signers.
type WriteScope struct {
	Scope   Scope    `json:"scope"`
	Signers []string `json:"signers"`
}

func (BankSend) Kind() TransferKind           { return TransferBankSend }
func (MarkerGrantAccess) Kind() TransferKind  { return TransferMarkerGrantAccess }
func (MarkerRevokeAccess) Kind() TransferKind { return TransferMarkerRevokeAccess }
func (MarkerWithdraw) Kind() TransferKind     { return TransferMarkerWithdraw }
func (WriteScope) Kind() TransferKind         { return TransferWriteScope }

func (BankSend) isTransfer()           {}
func (MarkerGrantAccess) isTransfer()  {}
func (MarkerRevokeAccess) isTransfer() {}
func (MarkerWithdraw) isTransfer()     {}
func (WriteScope) isTransfer()         {}

// Transfers is an ordered list of instructions with a tagged JSON encoding.
type Transfers []Transfer

func (ts Transfers) MarshalJSON() ([]byte, error) {
	out := make([]map[TransferKind]Transfer, len(ts))
	for i, t := range ts {
		out[i] = map[TransferKind]Transfer{t.Kind(): t}
	}
	return json.Marshal(out)
}

func (ts *Transfers) UnmarshalJSON(data []byte) error {
	var raw []map[TransferKind]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Transfers, 0, len(raw))
	for _, env := range raw {
		if len(env) != 1 {
			return fmt.Errorf("transfer must have exactly one variant, got %d", len(env))
		}
		for kind, body := range env {
			t, err := decodeTransfer(kind, body)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
	}
	*ts = out
	return nil
}

func decodeTransfer(kind TransferKind, body json.RawMessage) (Transfer, error) {
	var (
		t   Transfer
		err error
	)
	switch kind {
	case TransferBankSend:
		var v BankSend
		err = json.Unmarshal(body, &v)
		t = v
	case TransferMarkerGrantAccess:
		var v MarkerGrantAccess
		err = json.Unmarshal(body, &v)
		t = v
	case TransferMarkerRevokeAccess:
		var v MarkerRevokeAccess
		err = json.Unmarshal(body, &v)
		t = v
	case TransferMarkerWithdraw:
		var v MarkerWithdraw
		err = json.Unmarshal(body, &v)
		t = v
	case TransferWriteScope:
		var v WriteScope
		err = json.Unmarshal(body, &v)
		t = v
	default:
		return nil, fmt.Errorf("unknown transfer kind %q", kind)
	}
	return t, err
}

// ReleaseMarker returns the instructions that hand a marker in custody back
// to the given grants and drop the contract's own access.
func ReleaseMarker(denom, contract string, grants []AccessGrant) Transfers {
	out := make(Transfers, 0, len(grants)+1)
	for _, g := range grants {
		out = append(out, MarkerGrantAccess{Denom: denom, Address: g.Address, Permissions: g.Permissions})
	}
	return append(out, MarkerRevokeAccess{Denom: denom, Address: contract})
}

// ReassignGrants copies grants, replacing from with to wherever it appears.
func ReassignGrants(grants []AccessGrant, from, to string) []AccessGrant {
	out := make([]AccessGrant, len(grants))
	for i, g := range grants {
		perms := make([]MarkerAccess, len(g.Permissions))
		copy(perms, g.Permissions)
		addr := g.Address
		if addr == from {
			addr = to
		}
		out[i] = AccessGrant{Address: addr, Permissions: perms}
	}
	return out
}
