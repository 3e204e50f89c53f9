package yield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func TestCalculateStakingYield_LiquidStakingPosition(t *testing.T) {
	// 1000 tokens at $10, 11.25% APR: $1125/year.
	staking, err := CalculateStakingYield(1000, 0.1125, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1125.0, staking.AnnualUSD, 1e-9)
	assert.InDelta(t, 1125.0/12, staking.MonthlyUSD, 1e-9)
	assert.InDelta(t, 1125.0/365, staking.DailyUSD, 1e-9)
	assert.InDelta(t, 0.1125, staking.APR, 1e-12)
}

func TestCalculateStakingYield_RejectsNegativeAmount(t *testing.T) {
	_, err := CalculateStakingYield(-1, 0.1, 10)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCalculateStakingYield_RejectsNonFinite(t *testing.T) {
	_, err := CalculateStakingYield(math.NaN(), 0.1, 10)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCalculateFundingComponent_PositiveRateIsIncome(t *testing.T) {
	// 0.01% per 8h at 1095 periods: 10.95% funding APR on a short.
	funding, err := CalculateFundingComponent(100, 10, 0.0001, 1095)
	require.NoError(t, err)
	assert.InDelta(t, 0.1095, funding.APR, 1e-12)
	assert.InDelta(t, 1000*0.1095, funding.AnnualUSD, 1e-9)
	assert.True(t, funding.Income)
}

func TestCalculateFundingComponent_NegativeRateIsCost(t *testing.T) {
	funding, err := CalculateFundingComponent(100, 10, -0.0002, 1095)
	require.NoError(t, err)
	assert.InDelta(t, -0.219, funding.APR, 1e-12)
	assert.False(t, funding.Income)
}

func TestCalculateTradingFees_RebalanceChargesBothLegs(t *testing.T) {
	// 30bps in, 30bps out, 10bps per leg monthly: 0.003+0.003+2*0.001*12 = 3%.
	fees, err := CalculateTradingFees(10000, 0.003, 0.003, 0.001, 12)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, fees.APR, 1e-12)
	assert.InDelta(t, 300.0, fees.AnnualUSD, 1e-9)
}

func TestCalculateGasCosts_AmortizesEntryExit(t *testing.T) {
	// $5+$5 over 365 days plus $3 x 12 rebalances: $46/year on $10k = 0.46%.
	gas, err := CalculateGasCosts(5, 5, 3, 12, 365, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 46.0, gas.AnnualUSD, 1e-9)
	assert.InDelta(t, 0.0046, gas.APR, 1e-12)
}

func TestCalculateGasCosts_ShortHoldAmplifiesDrag(t *testing.T) {
	// Same costs over a 30-day hold: entry/exit gas is amortized 365/30 times.
	gas, err := CalculateGasCosts(5, 5, 3, 12, 30, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 10*(365.0/30)+36, gas.AnnualUSD, 1e-9)
}

func TestCalculateGasCosts_ZeroPositionValueSentinel(t *testing.T) {
	gas, err := CalculateGasCosts(5, 5, 3, 12, 365, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, gas.APR)
	assert.InDelta(t, 46.0, gas.AnnualUSD, 1e-9)
}

func TestCalculateSlippageCosts_AMMLinearRegion(t *testing.T) {
	// $10k into $1M AMM liquidity: rate = 0.01*0.5 = 0.5%, well below the cap.
	slippage, err := CalculateSlippageCosts(10000, 1_000_000, 12, types.VenueAMM, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, slippage.PerRebalanceRate, 1e-12)
	assert.InDelta(t, 0.10*0.005*12, slippage.APR, 1e-12)
}

func TestCalculateSlippageCosts_AMMCap(t *testing.T) {
	// Position larger than venue liquidity clamps at the 5% AMM cap.
	slippage, err := CalculateSlippageCosts(100000, 10000, 12, types.VenueAMM, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, slippage.PerRebalanceRate, 1e-12)
}

func TestCalculateSlippageCosts_OrderBookIsCheaper(t *testing.T) {
	amm, err := CalculateSlippageCosts(10000, 1_000_000, 12, types.VenueAMM, 0.10)
	require.NoError(t, err)
	book, err := CalculateSlippageCosts(10000, 1_000_000, 12, types.VenueOrderBook, 0.10)
	require.NoError(t, err)
	assert.Less(t, book.PerRebalanceRate, amm.PerRebalanceRate)
	assert.InDelta(t, 0.002, book.PerRebalanceRate, 1e-12)
}

func TestCalculateSlippageCosts_ZeroLiquiditySentinel(t *testing.T) {
	slippage, err := CalculateSlippageCosts(10000, 0, 12, types.VenueOrderBook, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, slippage.PerRebalanceRate, 1e-12)
}

func TestCalculateBasisCost_DecaysTowardExpiry(t *testing.T) {
	// 2% basis decaying 10%/month over 90 days: 0.02*0.9^3 = 1.458%.
	basis, err := CalculateBasisCost(0.02, 10000, 90, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 0.02*math.Pow(0.9, 3), basis.ExpectedBasisAtClose, 1e-12)
	assert.InDelta(t, 0.02*math.Pow(0.9, 3)*(365.0/90), basis.APR, 1e-12)
}

func TestCalculateBasisCost_NegativeBasisStillCosts(t *testing.T) {
	positive, err := CalculateBasisCost(0.02, 10000, 90, 0.10)
	require.NoError(t, err)
	negative, err := CalculateBasisCost(-0.02, 10000, 90, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, positive.APR, negative.APR, 1e-12)
	assert.Less(t, negative.ExpectedBasisAtClose, 0.0)
}

func TestCompose_DeltaNeutralScenario(t *testing.T) {
	// Staked leg earning 11% plus funding income at 0.01% per 8h,
	// against fee, gas, and slippage drags.
	staking, err := CalculateStakingYield(1000, 0.11, 10)
	require.NoError(t, err)
	funding, err := CalculateFundingComponent(1000, 10, 0.0001, 1095)
	require.NoError(t, err)
	fees, err := CalculateTradingFees(10000, 0.003, 0.003, 0.001, 12)
	require.NoError(t, err)
	gas, err := CalculateGasCosts(5, 5, 3, 12, 365, 10000)
	require.NoError(t, err)
	slippage, err := CalculateSlippageCosts(10000, 1_000_000, 12, types.VenueAMM, 0.10)
	require.NoError(t, err)
	basis, err := CalculateBasisCost(0.01, 10000, 365, 0.10)
	require.NoError(t, err)

	breakdown, err := Compose(staking, funding, fees, gas, slippage, basis)
	require.NoError(t, err)

	expected := 0.11 + 0.1095 - 0.03 - 0.0046 - slippage.APR - basis.APR
	assert.InDelta(t, expected, breakdown.NetAPR, 1e-12)
	assert.Greater(t, breakdown.NetAPR, 0.0)
}

func TestBreakevenFundingRate_RoundTrip(t *testing.T) {
	// Plugging the breakeven rate back into the decomposition nets to zero.
	stakingAPR := 0.11
	feeAPR := 0.03
	gasAPR := 0.0046
	slippageAPR := 0.006
	basisAPR := 0.01

	rate, err := BreakevenFundingRate(stakingAPR, feeAPR, gasAPR, slippageAPR, basisAPR, 1095)
	require.NoError(t, err)

	fundingAPR := rate * 1095
	net := stakingAPR + fundingAPR - feeAPR - gasAPR - slippageAPR - basisAPR
	assert.InDelta(t, 0, net, 1e-4)
}

func TestBreakevenFundingRate_RichStakingGoesNegative(t *testing.T) {
	// Staking alone covers all costs: the breakeven funding rate is negative,
	// meaning the hedge can pay funding and still break even.
	rate, err := BreakevenFundingRate(0.20, 0.03, 0.005, 0.005, 0.005, 1095)
	require.NoError(t, err)
	assert.Less(t, rate, 0.0)
}
