package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defiquant/yre/internal/types"
)

func TestRunBatch_RunsAllConfigs(t *testing.T) {
	configs := make([]Config, 4)
	for i := range configs {
		cfg := baseConfig()
		cfg.RunID = ""
		configs[i] = cfg
	}

	outcomes, err := RunBatch(context.Background(), configs, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	for i, outcome := range outcomes {
		assert.Equal(t, i, outcome.Index)
		require.NoError(t, outcome.Err)
		assert.Equal(t, 30, outcome.Result.TradingDays)
	}
}

func TestRunBatch_SharedSeriesDoesNotAlias(t *testing.T) {
	// All configs share one series map; per-run copies must keep results
	// identical to a solo run.
	shared := map[string]types.PriceSeries{
		"pool-a": flatSeries("pool-a", 30, 12),
		"pool-b": flatSeries("pool-b", 30, 8),
	}
	configs := make([]Config, 8)
	for i := range configs {
		cfg := baseConfig()
		cfg.Series = shared
		configs[i] = cfg
	}

	outcomes, err := RunBatch(context.Background(), configs, 4)
	require.NoError(t, err)

	for _, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		assert.Equal(t, outcomes[0].Result.FinalValue, outcome.Result.FinalValue)
	}
}

func TestRunBatch_BadConfigDoesNotPoisonBatch(t *testing.T) {
	good := baseConfig()
	bad := baseConfig()
	bad.InitialCapital = -1

	outcomes, err := RunBatch(context.Background(), []Config{good, bad}, 2)
	require.Error(t, err)
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, types.ErrInvalidInput)
}

func TestRunBatch_CancellationMarksEveryOutcome(t *testing.T) {
	// A cancelled batch must not leave zero-valued slots that read as
	// successful empty runs: every submitted config carries its own index and
	// either a result or an error.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	configs := make([]Config, 4)
	for i := range configs {
		configs[i] = baseConfig()
	}

	outcomes, err := RunBatch(ctx, configs, 1)
	require.Error(t, err)
	require.Len(t, outcomes, 4)

	for i, outcome := range outcomes {
		assert.Equal(t, i, outcome.Index)
		assert.ErrorIs(t, outcome.Err, context.Canceled)
	}
}

func TestRunBatch_RejectsEmptyInput(t *testing.T) {
	_, err := RunBatch(context.Background(), nil, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = RunBatch(context.Background(), []Config{baseConfig()}, 0)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
