// Package exchange declares the numeric-rate valuation primitive the lending
// engine consults when an offer is accepted. The rate service is an external
// collaborator; only its interface is specified here.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable is returned when no rate is known for a token pair.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource reports the current exchange rate between two tokens, expressed
// as units of tokenB per unit of tokenA.
type RateSource interface {
	Rate(ctx context.Context, tokenA, tokenB string) (decimal.Decimal, error)
}

// Static is a map-backed rate source for tests and local development.
type Static struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewStatic creates an empty static rate source.
func NewStatic() *Static {
	return &Static{rates: make(map[string]decimal.Decimal)}
}

var _ RateSource = (*Static)(nil)

func pairKey(a, b string) string {
	return strings.ToLower(a) + "/" + strings.ToLower(b)
}

// Set fixes the rate for a token pair and its inverse.
func (s *Static) Set(tokenA, tokenB string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pairKey(tokenA, tokenB)] = rate
	if !rate.IsZero() {
		s.rates[pairKey(tokenB, tokenA)] = decimal.NewFromInt(1).Div(rate)
	}
}

func (s *Static) Rate(_ context.Context, tokenA, tokenB string) (decimal.Decimal, error) {
	if strings.EqualFold(tokenA, tokenB) {
		return decimal.NewFromInt(1), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[pairKey(tokenA, tokenB)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, tokenA, tokenB)
	}
	return rate, nil
}
