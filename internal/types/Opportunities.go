/*

This file contains the types for candidate opportunities and price series as
supplied by the data-feed collaborator. Candidates are ephemeral: recreated on
every data poll and never persisted.

*/

package types

import "time"

// VenueKind describes the execution venue, which drives the slippage model.
type VenueKind string

const (
	VenueAMM       VenueKind = "AMM"
	VenueOrderBook VenueKind = "ORDER_BOOK"
)

// CandidateOpportunity is one investable pool/asset as reported by the data
// feed. Unit contract: BaseAPY and ILRisk are percentages (x100), supplied
// already converted by the feed - the core never guesses reward-rate units.
type CandidateOpportunity struct {
	ID          string    `json:"id"`            // pool/asset identity, e.g. "osmo-atom-lp"
	BaseAPY     float64   `json:"base_apy"`      // simple annual percentage, e.g. 12.5
	TvlUSD      float64   `json:"tvl"`           // total value locked
	CapacityUSD float64   `json:"capacity"`      // additional capital the venue can absorb
	FeeBps      float64   `json:"fee_bps"`       // round-trip fee in basis points
	ILRisk      float64   `json:"il_risk_hint"`  // 0..100 impermanent-loss risk estimate
	Venue       VenueKind `json:"venue"`         // slippage model selector
	NetAPR      *float64  `json:"net_apr,omitempty"` // full yield-decomposition net APR (decimal), when available
}

// PricePoint is one (date, value) observation in a series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"` // daily-sampled annual APY percentage, or a price, per series contract
}

// PriceSeries is an ordered daily series for one asset.
type PriceSeries struct {
	AssetID string       `json:"asset_id"`
	Points  []PricePoint `json:"points"`
}
