// Package analytics derives return and risk figures from closing-price
// series.
package analytics

import (
	"fmt"
	"math"
)

// LogReturns computes the log-return series r_t = ln(p_t / p_t-1) of a
// price series. Prices must be positive; the result has len(prices)-1
// entries.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 prices, got %d", len(prices))
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			return nil, fmt.Errorf("non-positive price at position %d", i)
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	return returns, nil
}

// Mean returns the arithmetic mean of the series, 0 when empty.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// StdDev returns the sample standard deviation, 0 for fewer than 2 points.
func StdDev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mean := Mean(series)
	var sum float64
	for _, v := range series {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)-1))
}

// AnnualizeReturn scales a mean per-period log return to n periods
// (n=252 for daily B3 sessions).
func AnnualizeReturn(meanReturn float64, periods int) float64 {
	return meanReturn * float64(periods)
}

// AnnualizeRisk scales a per-period volatility to n periods.
func AnnualizeRisk(stdDev float64, periods int) float64 {
	return stdDev * math.Sqrt(float64(periods))
}

// CoefficientOfVariation returns risk per unit of return, NaN when the
// return is zero.
func CoefficientOfVariation(risk, ret float64) float64 {
	if ret == 0 {
		return math.NaN()
	}
	return risk / ret
}

// Correlation returns the Pearson correlation of two equal-length series.
func Correlation(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("series length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) < 2 {
		return 0, fmt.Errorf("need at least 2 points, got %d", len(a))
	}

	meanA, meanB := Mean(a), Mean(b)
	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, fmt.Errorf("zero variance series")
	}
	return cov / math.Sqrt(varA*varB), nil
}

// CorrelationMatrix computes pairwise Pearson correlations across named
// return series. Pairs that cannot be correlated get NaN.
func CorrelationMatrix(series map[string][]float64, order []string) [][]float64 {
	n := len(order)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			c, err := Correlation(series[order[i]], series[order[j]])
			if err != nil {
				matrix[i][j] = math.NaN()
				continue
			}
			matrix[i][j] = c
		}
	}
	return matrix
}
