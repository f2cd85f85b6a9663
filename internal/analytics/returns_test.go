package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReturns(t *testing.T) {
	returns, err := LogReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.InDelta(t, math.Log(1.1), returns[0], 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), returns[1], 1e-12)
}

func TestLogReturnsErrors(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
	}{
		{name: "empty", prices: nil},
		{name: "single price", prices: []float64{100}},
		{name: "zero price", prices: []float64{100, 0, 101}},
		{name: "negative price", prices: []float64{100, -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LogReturns(tt.prices)
			assert.Error(t, err)
		})
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, -1.5, Mean([]float64{-1, -2}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	// Sample std dev of {2,4,4,4,5,5,7,9} is ~2.138.
	assert.InDelta(t, 2.13809, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-4)
	assert.Equal(t, 0.0, StdDev([]float64{3, 3, 3}))
}

func TestAnnualize(t *testing.T) {
	assert.InDelta(t, 0.252, AnnualizeReturn(0.001, 252), 1e-12)
	assert.InDelta(t, 0.02*math.Sqrt(252), AnnualizeRisk(0.02, 252), 1e-12)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.InDelta(t, 2.0, CoefficientOfVariation(0.5, 0.25), 1e-12)
	assert.True(t, math.IsNaN(CoefficientOfVariation(0.5, 0)))
}

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	up := []float64{2, 4, 6, 8}
	down := []float64{8, 6, 4, 2}

	c, err := Correlation(a, up)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-12)

	c, err = Correlation(a, down)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, c, 1e-12)
}

func TestCorrelationErrors(t *testing.T) {
	_, err := Correlation([]float64{1, 2}, []float64{1, 2, 3})
	assert.ErrorContains(t, err, "length mismatch")

	_, err = Correlation([]float64{1}, []float64{2})
	assert.ErrorContains(t, err, "at least 2 points")

	_, err = Correlation([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.ErrorContains(t, err, "zero variance")
}

func TestCorrelationMatrix(t *testing.T) {
	series := map[string][]float64{
		"PETR4": {1, 2, 3, 4},
		"VALE3": {2, 4, 6, 8},
		"FLAT":  {5, 5, 5, 5},
	}
	order := []string{"PETR4", "VALE3", "FLAT"}

	m := CorrelationMatrix(series, order)
	require.Len(t, m, 3)

	assert.Equal(t, 1.0, m[0][0])
	assert.Equal(t, 1.0, m[2][2])
	assert.InDelta(t, 1.0, m[0][1], 1e-12)
	assert.InDelta(t, 1.0, m[1][0], 1e-12)
	assert.True(t, math.IsNaN(m[0][2]))
	assert.True(t, math.IsNaN(m[2][0]))
}
