// Package money holds the exact fiat and token arithmetic used by the ledger.
// Fiat amounts are decimals with a fixed number of fraction digits; token
// amounts are unsigned integers. Nothing here uses binary floating point.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// FiatPlaces is the number of fraction digits of the fiat minor unit.
const FiatPlaces = 2

var (
	ErrNegativeResult = errors.New("money: result would be negative")
	ErrTokenOverflow  = errors.New("money: token amount overflows uint64")
	ErrInvalidFiat    = errors.New("money: invalid fiat amount")
)

var minorUnit = decimal.New(1, -FiatPlaces)

// MinorUnit returns the smallest representable fiat amount (0.01).
func MinorUnit() decimal.Decimal { return minorUnit }

// ValidateFiat rejects negative amounts and amounts finer than the minor unit.
func ValidateFiat(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidFiat, d.String())
	}
	if !d.Equal(d.Truncate(FiatPlaces)) {
		return fmt.Errorf("%w: %s has more than %d fraction digits", ErrInvalidFiat, d.String(), FiatPlaces)
	}
	return nil
}

// RoundHalfUp rounds d to the minor unit, halves away from zero.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(FiatPlaces)
}

// FromMinorUnits converts an integer amount of minor units (cents) to fiat.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -FiatPlaces)
}

// FormatFiat renders d with exactly FiatPlaces fraction digits.
func FormatFiat(d decimal.Decimal) string {
	return d.StringFixed(FiatPlaces)
}

// ParseFiat parses a stored fiat string.
func ParseFiat(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidFiat, s, err)
	}
	return d, nil
}

// Percent returns d * pct / 100, unrounded.
func Percent(d decimal.Decimal, pct int) decimal.Decimal {
	return d.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
}

// Tokens is a count of platform tokens.
type Tokens uint64

// Add returns t+o or ErrTokenOverflow.
func (t Tokens) Add(o Tokens) (Tokens, error) {
	if o > math.MaxUint64-t {
		return 0, ErrTokenOverflow
	}
	return t + o, nil
}

// Sub returns t-o or ErrNegativeResult.
func (t Tokens) Sub(o Tokens) (Tokens, error) {
	if o > t {
		return 0, ErrNegativeResult
	}
	return t - o, nil
}

func (t Tokens) String() string { return strconv.FormatUint(uint64(t), 10) }

// ParseTokens parses a stored base-10 token amount.
func ParseTokens(s string) (Tokens, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", s, err)
	}
	return Tokens(v), nil
}

// TokenDelta is a signed change to a token balance.
type TokenDelta struct {
	Amount   Tokens
	Negative bool
}

// Credit returns a positive delta of n tokens.
func Credit(n uint64) TokenDelta { return TokenDelta{Amount: Tokens(n)} }

// Debit returns a negative delta of n tokens.
func Debit(n uint64) TokenDelta { return TokenDelta{Amount: Tokens(n), Negative: true} }

// IsZero reports whether the delta changes nothing.
func (d TokenDelta) IsZero() bool { return d.Amount == 0 }

// Apply returns balance+d, failing with ErrNegativeResult or ErrTokenOverflow.
func (d TokenDelta) Apply(balance Tokens) (Tokens, error) {
	if d.Negative {
		return balance.Sub(d.Amount)
	}
	return balance.Add(d.Amount)
}

// ApplyFiat returns balance+delta, failing with ErrNegativeResult when the
// result is below zero.
func ApplyFiat(balance, delta decimal.Decimal) (decimal.Decimal, error) {
	next := balance.Add(delta)
	if next.IsNegative() {
		return balance, ErrNegativeResult
	}
	return next, nil
}
