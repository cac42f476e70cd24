package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ParseCents converts decimal string amounts (major units) to minor units.
// The storefront API serializes DecimalField prices as strings ("12.99").
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
// A string that is not a number is an error, never a zero price.
func ParseCents(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100)), nil
}

// FormatCents renders minor units as a two-decimal string: 1299 → "12.99".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Price is an amount in minor units.
// Decodes from either a decimal string ("12.99") or a JSON number (12.99);
// always encodes as a decimal string so the backend sees its own format.
type Price int64

// UnmarshalJSON accepts "12.99", 12.99 and null.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("price: %w", err)
		}
		cents, err := ParseCents(s)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		*p = Price(cents)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(math.Round(f * 100))
	return nil
}

// MarshalJSON encodes the price as a decimal string.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatCents(int64(p)))
}

// String implements fmt.Stringer.
func (p Price) String() string {
	return FormatCents(int64(p))
}
