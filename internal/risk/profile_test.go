package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func healthyInputs() ProfileInputs {
	return ProfileInputs{
		CollateralQty:    1000,
		CollateralPrice:  1,
		DebtQty:          400,
		DebtPrice:        1,
		LiqThreshold:     0.8,
		StakedExposure:   1000,
		ShortExposure:    1000,
		AnnualVolatility: 0.6,
		PDHorizonDays:    7,
	}
}

func TestBuildProfile_HealthyHedgedPosition(t *testing.T) {
	profile, err := BuildProfile(healthyInputs())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, profile.HealthFactor, 1e-12)
	assert.InDelta(t, 0.5, profile.LiquidationPrice, 1e-12)
	assert.InDelta(t, 50.0, profile.DistanceToLiquidationPct, 1e-9)
	assert.InDelta(t, 1.0, profile.HedgeRatio, 1e-12)
	assert.Equal(t, types.RiskLow, profile.RiskLevel)
}

func TestBuildProfile_ThinCollateralBandsHigh(t *testing.T) {
	in := healthyInputs()
	in.DebtQty = 750 // HF = 800/750 = 1.0667 < 1.2

	profile, err := BuildProfile(in)
	require.NoError(t, err)
	assert.Equal(t, types.RiskHigh, profile.RiskLevel)
}

func TestBuildProfile_MediumBand(t *testing.T) {
	in := healthyInputs()
	in.DebtQty = 550            // HF = 800/550 = 1.4545, between 1.2 and 1.6
	in.AnnualVolatility = 0.10  // keep PD below the HIGH bar
	in.PDHorizonDays = 1

	profile, err := BuildProfile(in)
	require.NoError(t, err)
	assert.Equal(t, types.RiskMedium, profile.RiskLevel)
}

func TestBuildProfile_HighPDOverridesHealthyHF(t *testing.T) {
	in := healthyInputs()
	in.DebtQty = 620            // HF = 800/620 = 1.29, above the HIGH HF bar
	in.AnnualVolatility = 2.5   // extreme volatility pushes PD above 5%
	in.PDHorizonDays = 30

	profile, err := BuildProfile(in)
	require.NoError(t, err)
	assert.Greater(t, profile.ProbabilityOfDefault, 0.05)
	assert.Equal(t, types.RiskHigh, profile.RiskLevel)
}

func TestBuildProfile_ReturnHistoryPopulatesDistributionMetrics(t *testing.T) {
	in := healthyInputs()
	in.DailyReturns = []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.01, 0.005}

	profile, err := BuildProfile(in)
	require.NoError(t, err)
	assert.Less(t, profile.ValueAtRisk1d, 0.0)
	// The 7-day VaR scales by sqrt(7).
	assert.InDelta(t, profile.ValueAtRisk1d*2.6457513110645906, profile.ValueAtRisk7d, 1e-9)
}

func TestBuildProfile_FreshPositionKeepsZeroDistributionMetrics(t *testing.T) {
	profile, err := BuildProfile(healthyInputs())
	require.NoError(t, err)
	assert.Equal(t, 0.0, profile.ValueAtRisk1d)
	assert.Equal(t, 0.0, profile.SharpeRatio)
}
