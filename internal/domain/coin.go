package domain

import (
	"fmt"
	"math"
	"math/bits"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

// String renders the coin as "<amount><denom>".
func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// Coins is a set of coin amounts. Order is not significant.
type Coins []Coin

// String renders the coins comma separated, sorted by denom.
func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs.Sorted() {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}

// Sorted returns a copy ordered by denom, then amount.
func (cs Coins) Sorted() Coins {
	out := make(Coins, len(cs))
	copy(out, cs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Denom != out[j].Denom {
			return out[i].Denom < out[j].Denom
		}
		return out[i].Amount < out[j].Amount
	})
	return out
}

// Equal reports whether both sets hold the same coins regardless of order.
func (cs Coins) Equal(other Coins) bool {
	if len(cs) != len(other) {
		return false
	}
	a, b := cs.Sorted(), other.Sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AmountOf returns the summed amount held in the given denom, saturating at
// math.MaxUint64.
func (cs Coins) AmountOf(denom string) uint64 {
	var total uint64
	for _, c := range cs {
		if c.Denom != denom {
			continue
		}
		sum, carry := bits.Add64(total, c.Amount, 0)
		if carry != 0 {
			return math.MaxUint64
		}
		total = sum
	}
	return total
}

// Merge sums amounts per denom and drops zero entries. The result is sorted.
func (cs Coins) Merge() (Coins, error) {
	totals := make(map[string]uint64, len(cs))
	for _, c := range cs {
		sum, carry := bits.Add64(totals[c.Denom], c.Amount, 0)
		if carry != 0 {
			return nil, fmt.Errorf("amount overflow in denom %s", c.Denom)
		}
		totals[c.Denom] = sum
	}
	out := make(Coins, 0, len(totals))
	for denom, amount := range totals {
		if amount == 0 {
			continue
		}
		out = append(out, Coin{Denom: denom, Amount: amount})
	}
	return out.Sorted(), nil
}

// MulUint64 multiplies every amount by n. It never rounds; an overflow is an error.
func (cs Coins) MulUint64(n uint64) (Coins, error) {
	out := make(Coins, len(cs))
	for i, c := range cs {
		hi, lo := bits.Mul64(c.Amount, n)
		if hi != 0 {
			return nil, fmt.Errorf("amount overflow multiplying %s by %d", c, n)
		}
		out[i] = Coin{Denom: c.Denom, Amount: lo}
	}
	return out, nil
}

// Surplus returns, per denom, how much cs holds beyond other. Denoms where cs
// holds less than or equal to other are omitted.
func (cs Coins) Surplus(other Coins) Coins {
	var out Coins
	merged, err := cs.Merge()
	if err != nil {
		return nil
	}
	for _, c := range merged {
		held := other.AmountOf(c.Denom)
		if c.Amount > held {
			out = append(out, Coin{Denom: c.Denom, Amount: c.Amount - held})
		}
	}
	return out
}

// CappedBy returns, per denom, the part of cs that does not exceed limit.
// cs.CappedBy(l) and cs.Surplus(l) together add back up to cs.
func (cs Coins) CappedBy(limit Coins) Coins {
	var out Coins
	merged, err := cs.Merge()
	if err != nil {
		return nil
	}
	for _, c := range merged {
		amount := min(c.Amount, limit.AmountOf(c.Denom))
		if amount > 0 {
			out = append(out, Coin{Denom: c.Denom, Amount: amount})
		}
	}
	return out
}

var coinPattern = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]*)$`)

// ParseCoins parses a comma separated list such as "10nhash,5usd", the form
// String produces. An empty string parses to no coins.
func ParseCoins(s string) (Coins, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out Coins
	for _, part := range strings.Split(s, ",") {
		m := coinPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("invalid coin %q: want <amount><denom>", part)
		}
		amount, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coin amount %q: %w", m[1], err)
		}
		out = append(out, Coin{Denom: m[2], Amount: amount})
	}
	return out, nil
}

// DecimalCoin is a display-only coin amount that may carry a fractional part.
type DecimalCoin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// UnitPrice derives a per-share price from a total quote. It exists for
// display; settlement comparisons always multiply instead.
func UnitPrice(quote Coins, shares uint64) []DecimalCoin {
	if shares == 0 {
		return nil
	}
	divisor := decimalFromUint64(shares)
	out := make([]DecimalCoin, 0, len(quote))
	for _, c := range quote.Sorted() {
		out = append(out, DecimalCoin{
			Denom:  c.Denom,
			Amount: decimalFromUint64(c.Amount).DivRound(divisor, 18).String(),
		})
	}
	return out
}

func decimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v)
}
