package risk

import (
	"errors"
	"math"
	"sort"

	"github.com/defiquant/yre/internal/types"
)

// ErrInsufficientDataVolatility indicates that not enough data points were
// provided to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientDataVolatility = errors.New("insufficient data points to calculate volatility")

// ReturnStats bundles the distribution metrics computed from one return
// sample. The sampling frequency is fixed per series and declared through
// periodsPerYear at construction.
type ReturnStats struct {
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	ValueAtRisk95 float64 `json:"value_at_risk_95"` // 5th percentile daily return, decimal
	CVaR95        float64 `json:"cvar_95"`          // mean of the tail at/below VaR95
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
}

// CalculateVolatility calculates the annualized historical volatility from a
// chronological price series using logarithmic returns. The
// annualizationFactor must match the data frequency (8760 for hourly, 365 for
// daily). Non-positive prices are skipped.
func CalculateVolatility(points []types.PricePoint, annualizationFactor float64) (float64, error) {
	n := len(points)
	if n < 2 {
		return 0, ErrInsufficientDataVolatility
	}

	sorted := make([]types.PricePoint, n)
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := sorted[i].Value
		previous := sorted[i-1].Value
		if previous <= 0 || current <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}
	if len(logReturns) == 0 {
		return 0, ErrInsufficientDataVolatility
	}

	return stdDev(logReturns) * math.Sqrt(annualizationFactor), nil
}

// Percentile returns the p-th percentile (0..100) of the sample using linear
// interpolation between order statistics.
func Percentile(sample []float64, p float64) (float64, error) {
	if len(sample) == 0 {
		return 0, errors.Join(types.ErrInvalidInput, types.ErrInsufficientData)
	}
	if p < 0 || p > 100 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("percentile must be in [0,100]"))
	}

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0], nil
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower], nil
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight, nil
}

// ValueAtRisk returns the loss threshold at the given confidence level: the
// (100-confidence)-th percentile of the return sample. Negative values are
// losses.
func ValueAtRisk(returns []float64, confidencePct float64) (float64, error) {
	if confidencePct <= 0 || confidencePct >= 100 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("confidence must be in (0,100)"))
	}
	return Percentile(returns, 100-confidencePct)
}

// ConditionalValueAtRisk returns the mean of the tail at or below VaR.
func ConditionalValueAtRisk(returns []float64, confidencePct float64) (float64, error) {
	varThreshold, err := ValueAtRisk(returns, confidencePct)
	if err != nil {
		return 0, err
	}

	sum, count := 0.0, 0
	for _, r := range returns {
		if r <= varThreshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		// VaR sits below every observation; the tail collapses to VaR itself
		return varThreshold, nil
	}
	return sum / float64(count), nil
}

// MaxDrawdown returns the worst peak-to-trough decline on a cumulative value
// path, as a positive decimal fraction.
func MaxDrawdown(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.Join(types.ErrInvalidInput, types.ErrInsufficientData)
	}

	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}
	return worst, nil
}

// SharpeRatio computes mean excess return over its standard deviation,
// annualized by sqrt(periodsPerYear). The riskFree rate is per period.
// Sentinel: 0 when the sample has no dispersion.
func SharpeRatio(returns []float64, riskFreePerPeriod, periodsPerYear float64) (float64, error) {
	if len(returns) == 0 {
		return 0, errors.Join(types.ErrInvalidInput, types.ErrInsufficientData)
	}
	if periodsPerYear <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("periodsPerYear must be positive"))
	}

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreePerPeriod
	}

	sd := stdDev(excess)
	if sd == 0 {
		return 0, nil
	}
	return mean(excess) / sd * math.Sqrt(periodsPerYear), nil
}

// SortinoRatio substitutes downside deviation (relative to the risk-free
// rate) for total deviation. Sentinel: with no downside observations the
// ratio is +Inf for a positive mean excess return and 0 otherwise.
func SortinoRatio(returns []float64, riskFreePerPeriod, periodsPerYear float64) (float64, error) {
	if len(returns) == 0 {
		return 0, errors.Join(types.ErrInvalidInput, types.ErrInsufficientData)
	}
	if periodsPerYear <= 0 {
		return 0, errors.Join(types.ErrInvalidInput, errors.New("periodsPerYear must be positive"))
	}

	meanExcess := 0.0
	downsideSumSq := 0.0
	for _, r := range returns {
		excess := r - riskFreePerPeriod
		meanExcess += excess
		if excess < 0 {
			downsideSumSq += excess * excess
		}
	}
	meanExcess /= float64(len(returns))
	downsideDev := math.Sqrt(downsideSumSq / float64(len(returns)))

	if downsideDev == 0 {
		if meanExcess > 0 {
			return math.Inf(1), nil
		}
		return 0, nil
	}
	return meanExcess / downsideDev * math.Sqrt(periodsPerYear), nil
}

// CalculateReturnStats computes the full distribution bundle for a return
// sample at the declared frequency.
func CalculateReturnStats(returns []float64, riskFreePerPeriod, periodsPerYear float64) (ReturnStats, error) {
	if len(returns) == 0 {
		return ReturnStats{}, errors.Join(types.ErrInvalidInput, types.ErrInsufficientData)
	}

	valueAtRisk, err := ValueAtRisk(returns, 95)
	if err != nil {
		return ReturnStats{}, err
	}
	cvar, err := ConditionalValueAtRisk(returns, 95)
	if err != nil {
		return ReturnStats{}, err
	}
	sharpe, err := SharpeRatio(returns, riskFreePerPeriod, periodsPerYear)
	if err != nil {
		return ReturnStats{}, err
	}
	sortino, err := SortinoRatio(returns, riskFreePerPeriod, periodsPerYear)
	if err != nil {
		return ReturnStats{}, err
	}

	return ReturnStats{
		Mean:          mean(returns),
		StdDev:        stdDev(returns),
		ValueAtRisk95: valueAtRisk,
		CVaR95:        cvar,
		SharpeRatio:   sharpe,
		SortinoRatio:  sortino,
	}, nil
}

func mean(sample []float64) float64 {
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// stdDev is the population standard deviation.
func stdDev(sample []float64) float64 {
	m := mean(sample)
	sumSq := 0.0
	for _, v := range sample {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(sample)))
}
