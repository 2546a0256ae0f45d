// Package fx supplies currency validation and spot rates to the margin
// engine. The engine only ever needs USD crosses: sensitivities arrive
// pre-converted to USD and a single USD/result-currency rate converts the
// final margins.
package fx

import (
	"fmt"
	"sync"
)

// Source quotes spot rates. Rate returns how many units of quote one unit
// of base buys; implementations return an error for unknown pairs.
type Source interface {
	Rate(base, quote string) (float64, error)
}

// iso4217 lists the currency codes the engine accepts. Minor and retired
// codes are omitted on purpose: a sensitivity quoted in one almost always
// indicates a malformed CRIF file.
var iso4217 = map[string]bool{
	"AED": true, "ARS": true, "AUD": true, "BRL": true, "CAD": true,
	"CHF": true, "CLP": true, "CNH": true, "CNY": true, "COP": true,
	"CZK": true, "DKK": true, "EUR": true, "GBP": true, "HKD": true,
	"HUF": true, "IDR": true, "ILS": true, "INR": true, "JPY": true,
	"KRW": true, "MXN": true, "MYR": true, "NOK": true, "NZD": true,
	"PEN": true, "PHP": true, "PLN": true, "QAR": true, "RON": true,
	"RUB": true, "SAR": true, "SEK": true, "SGD": true, "THB": true,
	"TRY": true, "TWD": true, "USD": true, "ZAR": true,
}

// ValidCurrency reports whether code is an accepted ISO 4217 currency.
func ValidCurrency(code string) bool {
	return iso4217[code]
}

// StaticSource is an in-memory rate table. Safe for concurrent use.
type StaticSource struct {
	mu    sync.RWMutex
	rates map[string]float64 // key: base+quote
}

// NewStaticSource builds a source from base+quote keyed rates, e.g.
// {"USDEUR": 0.92}. Identity pairs need no entry.
func NewStaticSource(rates map[string]float64) *StaticSource {
	m := make(map[string]float64, len(rates))
	for k, v := range rates {
		m[k] = v
	}
	return &StaticSource{rates: m}
}

// Set inserts or replaces a rate and its implied inverse.
func (s *StaticSource) Set(base, quote string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[base+quote] = rate
	if rate != 0 {
		s.rates[quote+base] = 1 / rate
	}
}

// Rate implements Source.
func (s *StaticSource) Rate(base, quote string) (float64, error) {
	if base == quote {
		return 1, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[base+quote]; ok {
		return r, nil
	}
	if r, ok := s.rates[quote+base]; ok && r != 0 {
		return 1 / r, nil
	}
	return 0, fmt.Errorf("fx: no rate for %s/%s", base, quote)
}
