// Package core holds the domain of the savings program: members, deposits,
// month period keys and money amounts.
//
// This file contains the money type used for carry-forward balances and
// ledger totals, stored in satang to avoid floating point drift.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// SatangPerBaht is the number of minor units in one baht.
const SatangPerBaht = 100

// Money is a signed amount in satang.
type Money struct {
	Satang int64
}

var ErrInvalidAmount = errors.New("invalid amount")

// Baht builds a Money value from whole baht.
func Baht(b int64) Money {
	return Money{Satang: b * SatangPerBaht}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Satang: m.Satang + o.Satang}
}

// Float returns the amount in baht for display and JSON output.
// Use Satang for arithmetic.
func (m Money) Float() float64 {
	return float64(m.Satang) / SatangPerBaht
}

// String renders the amount as plain decimal baht ("12.5", "-3", "0").
func (m Money) String() string {
	return strconv.FormatFloat(m.Float(), 'f', -1, 64)
}

// MarshalJSON writes the amount as a JSON number of baht.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = Money{}
		return nil
	}
	v, err := ParseBalance(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseBalance converts a decimal string into Money.
//
// The decimal separator is the dot. Commas are accepted only as thousands
// separators in groups of three digits ("1,500.25"); anything else with a
// comma is rejected. The sign may be negative. The third decimal is rounded
// half-up away from zero. An empty string is a zero balance.
//
// Examples:
//
//	ParseBalance("120")      -> 12000 satang
//	ParseBalance("-3,255.5") -> -325550 satang
//	ParseBalance("1,23")     -> ErrInvalidAmount
//	ParseBalance("")         -> 0 satang
func ParseBalance(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, nil
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") || strings.Contains(fracPart, ",") {
		return Money{}, ErrInvalidAmount
	}
	intPart, ok := stripGrouping(intPart)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return Money{}, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / SatangPerBaht
	if iv > maxSafe {
		return Money{}, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	satang := iv*SatangPerBaht + frac
	if neg {
		satang = -satang
	}
	return Money{Satang: satang}, nil
}

// stripGrouping removes thousands separators from the integer part. The
// first group holds one to three digits, every later group exactly three.
func stripGrouping(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	groups := strings.Split(s, ",")
	if n := len(groups[0]); n < 1 || n > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}
