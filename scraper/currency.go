package scraper

import "fmt"

// RateProvider supplies a multiplicative conversion rate between two
// currency codes. Keeps the conversion source explicit and swappable;
// collapsing foreign prices into the default currency via a fixed constant
// lives in StaticRates, not in the adapter.
type RateProvider interface {
	Rate(from, to string) (float64, bool)
}

// StaticRates is a fixed conversion table keyed by "FROM/TO" pairs.
// Best-effort normalization only, not a financial feature.
type StaticRates struct {
	rates map[string]float64
}

// NewStaticRates builds a provider from a "FROM/TO" → rate table.
func NewStaticRates(rates map[string]float64) *StaticRates {
	return &StaticRates{rates: rates}
}

// DefaultRates is the built-in conversion table. USD prices from US storefronts
// get normalized into CAD.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"USD/CAD": 1.4,
	}
}

// Rate returns the conversion rate from one currency to another.
func (s *StaticRates) Rate(from, to string) (float64, bool) {
	if from == to {
		return 1, true
	}
	rate, ok := s.rates[fmt.Sprintf("%s/%s", from, to)]
	return rate, ok
}
