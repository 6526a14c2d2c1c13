package models

import "time"

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Valid reports whether t is a recognized option type.
func (t OptionType) Valid() bool { return t == Call || t == Put }

// OptionQuote is a single listed option observation. ImpliedVol <= 0 means
// the feed did not supply a usable implied volatility for this quote.
type OptionQuote struct {
	Expiry       time.Time
	Strike       float64
	Type         OptionType
	ImpliedVol   float64
	Volume       int64
	OpenInterest int64
	Greeks       map[string]float64
	ObservedAt   time.Time
}

// HasIV reports whether the quote carries a usable implied volatility.
func (q OptionQuote) HasIV() bool { return q.ImpliedVol > 0 }

// RawChain is an options-chain batch as delivered by a market-data feed,
// before normalization. Quotes may be duplicated, unordered, or malformed.
type RawChain struct {
	Symbol    string
	SpotPrice float64
	Timestamp time.Time
	Quotes    []OptionQuote
}

// ExpirySlice holds all quotes for one expiry, strikes ascending.
type ExpirySlice struct {
	Expiry time.Time
	Quotes []OptionQuote
}

// Strikes returns the distinct strikes of the slice in ascending order.
func (s ExpirySlice) Strikes() []float64 {
	out := make([]float64, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		if len(out) == 0 || out[len(out)-1] != q.Strike {
			out = append(out, q.Strike)
		}
	}
	return out
}

// OptionsChainSnapshot is the canonical per-expiry, per-strike view of an
// options chain at one instant. (expiry, strike, type) is unique, expiries
// and strikes are sorted ascending. A snapshot is immutable once built: a
// new snapshot supersedes the old one each evaluation cycle.
type OptionsChainSnapshot struct {
	Symbol    string
	SpotPrice float64
	Timestamp time.Time
	Expiries  []ExpirySlice
}

// Slice returns the expiry slice for the given expiry, if present.
func (s OptionsChainSnapshot) Slice(expiry time.Time) (ExpirySlice, bool) {
	for _, e := range s.Expiries {
		if e.Expiry.Equal(expiry) {
			return e, true
		}
	}
	return ExpirySlice{}, false
}

// StrikeCount returns the number of distinct strikes across all expiries.
func (s OptionsChainSnapshot) StrikeCount() int {
	n := 0
	for _, e := range s.Expiries {
		n += len(e.Strikes())
	}
	return n
}
