package domain

import (
	"encoding/json"
	"time"
)

// AttributeRequirementType selects how a required attribute set is evaluated
// against the counterparty.
type AttributeRequirementType string

const (
	AttributeRequirementAll  AttributeRequirementType = "all"
	AttributeRequirementAny  AttributeRequirementType = "any"
	AttributeRequirementNone AttributeRequirementType = "none"
)

// AttributeRequirement names identity attributes the counterparty must (or,
// for "none", must not) carry.
type AttributeRequirement struct {
	Attributes []string                 `json:"attributes"`
	Type       AttributeRequirementType `json:"type"`
}

// SatisfiedBy reports whether the held attributes satisfy the requirement.
func (r AttributeRequirement) SatisfiedBy(held []string) bool {
	set := make(map[string]bool, len(held))
	for _, a := range held {
		set[a] = true
	}
	switch r.Type {
	case AttributeRequirementAll:
		for _, a := range r.Attributes {
			if !set[a] {
				return false
			}
		}
		return true
	case AttributeRequirementAny:
		for _, a := range r.Attributes {
			if set[a] {
				return true
			}
		}
		return false
	case AttributeRequirementNone:
		for _, a := range r.Attributes {
			if set[a] {
				return false
			}
		}
		return true
	}
	return false
}

// RequestDescriptor is optional metadata attached to an order.
type RequestDescriptor struct {
	Description          string                `json:"description,omitempty"`
	EffectiveTime        *time.Time            `json:"effective_time,omitempty"`
	AttributeRequirement *AttributeRequirement `json:"attribute_requirement,omitempty"`
}

// AskOrder is a standing offer to give up an asset for a price.
type AskOrder struct {
	ID         string
	Type       RequestType
	Owner      string
	Collateral AskCollateral
	Descriptor *RequestDescriptor
}

// BidOrder is a standing offer to pay a price for an asset.
type BidOrder struct {
	ID         string
	Type       RequestType
	Owner      string
	Collateral BidCollateral
	Descriptor *RequestDescriptor
}

// CollateralID is the secondary key identifying what the ask escrows: the
// order id for coin trades, the marker address for marker trades and share
// sales, and the scope address for scope trades.
func (a *AskOrder) CollateralID() string {
	switch c := a.Collateral.(type) {
	case MarkerTradeAskCollateral:
		return c.MarkerAddress
	case MarkerShareSaleAskCollateral:
		return c.MarkerAddress
	case ScopeTradeAskCollateral:
		return c.ScopeAddress
	}
	return a.ID
}

// AttributeRequirement returns the descriptor's requirement, if any.
func (a *AskOrder) AttributeRequirement() *AttributeRequirement {
	if a.Descriptor == nil {
		return nil
	}
	return a.Descriptor.AttributeRequirement
}

// AttributeRequirement returns the descriptor's requirement, if any.
func (b *BidOrder) AttributeRequirement() *AttributeRequirement {
	if b.Descriptor == nil {
		return nil
	}
	return b.Descriptor.AttributeRequirement
}

// Clone returns a deep copy so stored orders are never aliased by callers.
func (a *AskOrder) Clone() *AskOrder {
	if a == nil {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		panic(err)
	}
	var out AskOrder
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// Clone returns a deep copy so stored orders are never aliased by callers.
func (b *BidOrder) Clone() *BidOrder {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		panic(err)
	}
	var out BidOrder
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

type orderJSON struct {
	ID         string             `json:"id"`
	Type       RequestType        `json:"type"`
	Owner      string             `json:"owner"`
	Collateral json.RawMessage    `json:"collateral"`
	Descriptor *RequestDescriptor `json:"descriptor,omitempty"`
}

func (a AskOrder) MarshalJSON() ([]byte, error) {
	var coll json.RawMessage
	if a.Collateral != nil {
		raw, err := marshalVariant(a.Collateral.RequestType(), a.Collateral)
		if err != nil {
			return nil, err
		}
		coll = raw
	}
	return json.Marshal(orderJSON{ID: a.ID, Type: a.Type, Owner: a.Owner, Collateral: coll, Descriptor: a.Descriptor})
}

func (a *AskOrder) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AskOrder{ID: raw.ID, Type: raw.Type, Owner: raw.Owner, Descriptor: raw.Descriptor}
	if len(raw.Collateral) == 0 || string(raw.Collateral) == "null" {
		return nil
	}
	c, err := unmarshalAskCollateral(raw.Collateral)
	if err != nil {
		return err
	}
	a.Collateral = c
	return nil
}

func (b BidOrder) MarshalJSON() ([]byte, error) {
	var coll json.RawMessage
	if b.Collateral != nil {
		raw, err := marshalVariant(b.Collateral.RequestType(), b.Collateral)
		if err != nil {
			return nil, err
		}
		coll = raw
	}
	return json.Marshal(orderJSON{ID: b.ID, Type: b.Type, Owner: b.Owner, Collateral: coll, Descriptor: b.Descriptor})
}

func (b *BidOrder) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = BidOrder{ID: raw.ID, Type: raw.Type, Owner: raw.Owner, Descriptor: raw.Descriptor}
	if len(raw.Collateral) == 0 || string(raw.Collateral) == "null" {
		return nil
	}
	c, err := unmarshalBidCollateral(raw.Collateral)
	if err != nil {
		return err
	}
	b.Collateral = c
	return nil
}
