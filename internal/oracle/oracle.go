/*

This file contains the PriceOracle capability. Every calculator that needs a
spot price takes an oracle explicitly - there is no process-wide price state.

*/

package oracle

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
)

var ErrUnknownAsset = errors.New("no price available for asset")

// PriceOracle supplies spot prices in USD. Implementations must be safe for
// concurrent use.
type PriceOracle interface {
	GetPrice(assetID string) (sdkmath.LegacyDec, error)
}

// Static is a fixed map-backed oracle, used for backtests and tests. The live
// data-feed collaborator supplies its own implementation.
type Static struct {
	mu     sync.RWMutex
	prices map[string]sdkmath.LegacyDec
}

// NewStatic builds a Static oracle from a symbol -> price map.
func NewStatic(prices map[string]sdkmath.LegacyDec) *Static {
	copied := make(map[string]sdkmath.LegacyDec, len(prices))
	for asset, price := range prices {
		copied[asset] = price
	}
	return &Static{prices: copied}
}

// GetPrice returns the configured price for assetID.
func (s *Static) GetPrice(assetID string) (sdkmath.LegacyDec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[assetID]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	return price, nil
}

// SetPrice updates or adds a price. Used by tests and replay drivers.
func (s *Static) SetPrice(assetID string, price sdkmath.LegacyDec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[assetID] = price
}
