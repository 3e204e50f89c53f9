/*

This file contains the batch runner for parameter sweeps: many independent
backtest configs executed across a bounded worker pool. Each worker gets a
deep copy of the shared series so concurrent runs never alias data.

*/

package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

// BatchOutcome pairs one config's result with its error. Index matches the
// position in the submitted config slice.
type BatchOutcome struct {
	Index  int
	Result types.BacktestResult
	Err    error
}

// RunBatch executes the configs across at most workers goroutines and returns
// outcomes in submission order. Individual run failures are reported per
// outcome and joined into the returned error; the batch keeps going so one bad
// config does not waste the rest of a sweep. Cancellation stops feeding new
// runs and propagates to in-flight simulators.
func RunBatch(ctx context.Context, configs []Config, workers int) ([]BatchOutcome, error) {
	if len(configs) == 0 {
		return nil, errors.Join(types.ErrInvalidInput, errors.New("no configs submitted"))
	}
	if workers <= 0 {
		return nil, errors.Join(types.ErrInvalidInput, errors.New("workers must be positive"))
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	batchLogger := logger.GetForComponent("backtest_runner")
	batchLogger.Info().Int("runs", len(configs)).Int("workers", workers).Msg("Batch starting")

	jobs := make(chan int)
	outcomes := make([]BatchOutcome, len(configs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				outcomes[index] = runOne(ctx, index, configs[index])
			}
		}()
	}

feed:
	for index := range configs {
		select {
		case <-ctx.Done():
			// Runs never handed to a worker must still carry an explicit
			// outcome; a zero-valued slot would read as a successful empty run.
			for unfed := index; unfed < len(configs); unfed++ {
				outcomes[unfed] = BatchOutcome{Index: unfed, Err: ctx.Err()}
			}
			break feed
		case jobs <- index:
		}
	}
	close(jobs)
	wg.Wait()

	var failures []error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failures = append(failures, fmt.Errorf("run %d: %w", outcome.Index, outcome.Err))
		}
	}

	batchLogger.Info().
		Int("runs", len(configs)).
		Int("failures", len(failures)).
		Msg("Batch completed")

	return outcomes, errors.Join(failures...)
}

func runOne(ctx context.Context, index int, cfg Config) BatchOutcome {
	outcome := BatchOutcome{Index: index}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	cfg.Series = copySeries(cfg.Series)

	sim, err := New(cfg)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Result, outcome.Err = sim.Run(ctx)
	return outcome
}

// copySeries deep-copies the series map so sweeps sharing one dataset cannot
// race through slice aliasing.
func copySeries(series map[string]types.PriceSeries) map[string]types.PriceSeries {
	copied := make(map[string]types.PriceSeries, len(series))
	for asset, s := range series {
		points := make([]types.PricePoint, len(s.Points))
		copy(points, s.Points)
		copied[asset] = types.PriceSeries{AssetID: s.AssetID, Points: points}
	}
	return copied
}
