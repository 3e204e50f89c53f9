/*
This file contains common utility functions for converting between float64 and
SDK decimal types at the oracle boundary, with precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// DecToFloat64 converts a LegacyDec price to float64, rejecting non-finite
// results. Prices are the only values that cross the decimal boundary; all
// analytics math downstream is float64.
func DecToFloat64(value sdkmath.LegacyDec) (float64, error) {
	if value.IsNil() {
		return 0, fmt.Errorf("%w: nil decimal", ErrConversionFailed)
	}
	if value.IsNegative() {
		return 0, ErrAmountNegative
	}

	result, err := value.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// Float64ToDec converts a float64 USD amount to a LegacyDec with the given
// decimal precision, going through a string to avoid binary float artifacts.
func Float64ToDec(amount float64, precision int) (sdkmath.LegacyDec, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.LegacyZeroDec(), ErrAmountNegative
	}

	formatStr := fmt.Sprintf("%%.%df", precision)
	amountStr := fmt.Sprintf(formatStr, amount)

	dec, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}
	return dec, nil
}

// AnnualToDaily converts an annual rate (decimal) to a simple daily rate.
func AnnualToDaily(annualRate float64) float64 {
	return annualRate / 365.0
}
