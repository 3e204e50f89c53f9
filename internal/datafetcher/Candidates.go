package datafetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/defiquant/yre/internal/logger"
	"github.com/defiquant/yre/internal/types"
)

var candidateLogger = logger.GetForComponent("candidate_source")

var (
	ErrInvalidCandidateData  = errors.New("invalid candidate data")
	ErrCandidateValidation   = errors.New("candidate validation failed")
	ErrNoCandidatesAvailable = errors.New("no candidates available from source")
)

// CandidateSource supplies the investable universe for one engine cycle.
// Implementations must return a fully validated set - no partial results for
// financial calculations.
type CandidateSource interface {
	GetCandidates() ([]types.CandidateOpportunity, error)
}

// FileCandidateSource reads candidates from a JSON snapshot file. Used for
// backtesting and offline analysis; a live deployment swaps in an ingesting
// implementation behind the same interface.
type FileCandidateSource struct {
	Path string
}

// GetCandidates loads and strictly validates every candidate in the snapshot.
// One malformed candidate fails the whole load: a silently dropped pool skews
// every downstream allocation.
func (f FileCandidateSource) GetCandidates() ([]types.CandidateOpportunity, error) {
	candidateLogger.Info().Str("path", f.Path).Msg("Loading candidate snapshot")

	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.Join(ErrInvalidCandidateData, errors.New("snapshot path cannot be empty"))
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		candidateLogger.Error().Err(err).Str("path", f.Path).Msg("Failed to read candidate snapshot")
		return nil, fmt.Errorf("failed to read candidate snapshot: %w", err)
	}

	var candidates []types.CandidateOpportunity
	if err := json.Unmarshal(raw, &candidates); err != nil {
		candidateLogger.Error().Err(err).Str("path", f.Path).Msg("Failed to parse candidate snapshot")
		return nil, errors.Join(ErrInvalidCandidateData, fmt.Errorf("failed to parse candidate snapshot: %w", err))
	}

	if len(candidates) == 0 {
		candidateLogger.Warn().Str("path", f.Path).Msg("Candidate snapshot is empty")
		return nil, ErrNoCandidatesAvailable
	}

	seen := make(map[string]bool, len(candidates))
	for i, candidate := range candidates {
		if err := validateCandidate(i, candidate); err != nil {
			return nil, err
		}
		if seen[candidate.ID] {
			return nil, errors.Join(ErrCandidateValidation, fmt.Errorf("duplicate candidate ID %q", candidate.ID))
		}
		seen[candidate.ID] = true
	}

	candidateLogger.Info().
		Int("candidateCount", len(candidates)).
		Str("path", f.Path).
		Msg("Candidate snapshot loaded and validated")

	return candidates, nil
}

func validateCandidate(index int, candidate types.CandidateOpportunity) error {
	if strings.TrimSpace(candidate.ID) == "" {
		return errors.Join(ErrCandidateValidation, fmt.Errorf("candidate %d has empty ID", index))
	}

	switch candidate.Venue {
	case types.VenueAMM, types.VenueOrderBook:
	default:
		return errors.Join(ErrCandidateValidation,
			fmt.Errorf("candidate %s has unknown venue %q", candidate.ID, candidate.Venue))
	}

	checks := map[string]float64{
		"base_apy": candidate.BaseAPY,
		"tvl":      candidate.TvlUSD,
		"capacity": candidate.CapacityUSD,
		"fee_bps":  candidate.FeeBps,
		"il_risk":  candidate.ILRisk,
	}
	for field, value := range checks {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return errors.Join(ErrCandidateValidation,
				fmt.Errorf("candidate %s: %s is not finite", candidate.ID, field))
		}
	}

	if candidate.TvlUSD < 0 || candidate.CapacityUSD < 0 || candidate.FeeBps < 0 {
		return errors.Join(ErrCandidateValidation,
			fmt.Errorf("candidate %s: tvl, capacity, and fee cannot be negative", candidate.ID))
	}
	if candidate.ILRisk < 0 || candidate.ILRisk > 100 {
		return errors.Join(ErrCandidateValidation,
			fmt.Errorf("candidate %s: il_risk must be in [0,100], got %f", candidate.ID, candidate.ILRisk))
	}
	if candidate.NetAPR != nil && (math.IsNaN(*candidate.NetAPR) || math.IsInf(*candidate.NetAPR, 0)) {
		return errors.Join(ErrCandidateValidation,
			fmt.Errorf("candidate %s: net_apr is not finite", candidate.ID))
	}
	return nil
}
