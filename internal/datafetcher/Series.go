package datafetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var seriesLogger = logger.GetForComponent("series_source")

var (
	ErrInvalidSeriesData = errors.New("invalid series data")
	ErrSeriesValidation  = errors.New("series validation failed")
	ErrNoSeriesAvailable = errors.New("no series available from source")
)

// PriceSeriesSource supplies historical daily APY series for backtesting.
type PriceSeriesSource interface {
	GetSeries(assetIDs []string) (map[string]types.PriceSeries, error)
}

// FileSeriesSource reads a map of asset ID to series from one JSON file.
type FileSeriesSource struct {
	Path string
}

// GetSeries loads the series file, validates every requested asset, and
// returns only the requested subset with points sorted chronologically.
// A requested asset absent from the file is an error, not a gap: gaps are a
// per-day concept inside a series that exists.
func (f FileSeriesSource) GetSeries(assetIDs []string) (map[string]types.PriceSeries, error) {
	seriesLogger.Info().Str("path", f.Path).Int("requestedAssets", len(assetIDs)).Msg("Loading series file")

	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.Join(ErrInvalidSeriesData, errors.New("series path cannot be empty"))
	}
	if len(assetIDs) == 0 {
		return nil, errors.Join(ErrInvalidSeriesData, errors.New("requested asset list cannot be empty"))
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		seriesLogger.Error().Err(err).Str("path", f.Path).Msg("Failed to read series file")
		return nil, fmt.Errorf("failed to read series file: %w", err)
	}

	var all map[string]types.PriceSeries
	if err := json.Unmarshal(raw, &all); err != nil {
		seriesLogger.Error().Err(err).Str("path", f.Path).Msg("Failed to parse series file")
		return nil, errors.Join(ErrInvalidSeriesData, fmt.Errorf("failed to parse series file: %w", err))
	}
	if len(all) == 0 {
		return nil, ErrNoSeriesAvailable
	}

	selected := make(map[string]types.PriceSeries, len(assetIDs))
	for _, assetID := range assetIDs {
		series, ok := all[assetID]
		if !ok {
			return nil, errors.Join(ErrSeriesValidation, fmt.Errorf("no series for requested asset %q", assetID))
		}
		if err := validateSeries(assetID, series); err != nil {
			return nil, err
		}

		points := make([]types.PricePoint, len(series.Points))
		copy(points, series.Points)
		sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		selected[assetID] = types.PriceSeries{AssetID: assetID, Points: points}
	}

	seriesLogger.Info().
		Int("loadedAssets", len(selected)).
		Str("path", f.Path).
		Msg("Series loaded and validated")

	return selected, nil
}

func validateSeries(assetID string, series types.PriceSeries) error {
	if len(series.Points) == 0 {
		return errors.Join(ErrSeriesValidation, fmt.Errorf("series for %q has no points", assetID))
	}
	for i, point := range series.Points {
		if point.Date.IsZero() {
			return errors.Join(ErrSeriesValidation, fmt.Errorf("series for %q: point %d has zero date", assetID, i))
		}
		if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
			return errors.Join(ErrSeriesValidation, fmt.Errorf("series for %q: point %d is not finite", assetID, i))
		}
	}
	return nil
}
