package validation

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"b3ingest/pkg/contracts/domain"
)

const (
	// EnvThreshold names the environment variable consulted when no
	// explicit threshold is configured.
	EnvThreshold = "VALIDATION_INVALID_PERCENT_THRESHOLD"

	// DefaultThreshold is the fallback invalid-rate ceiling (10%).
	DefaultThreshold = 0.10
)

// ThresholdError reports a batch whose invalid-row rate met or exceeded the
// configured ceiling with abort requested.
type ThresholdError struct {
	InvalidPercent float64
	Threshold      float64
	RowsInvalid    int
	RowsTotal      int
	ErrorCodes     map[domain.ReasonCode]int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("invalid row rate %.2f%% meets or exceeds threshold %.2f%% (%d of %d rows invalid)",
		e.InvalidPercent*100, e.Threshold*100, e.RowsInvalid, e.RowsTotal)
}

// CheckThreshold reports whether the batch passes the invalid-rate ceiling.
// The boundary is inclusive on the failing side: a rate exactly equal to
// the threshold fails. With abortOnExceed set, failure returns a
// *ThresholdError carrying the full breakdown.
func CheckThreshold(summary domain.ValidationSummary, threshold float64, abortOnExceed bool) (bool, error) {
	if summary.InvalidPercent < threshold {
		return true, nil
	}
	if !abortOnExceed {
		return false, nil
	}
	return false, &ThresholdError{
		InvalidPercent: summary.InvalidPercent,
		Threshold:      threshold,
		RowsInvalid:    summary.RowsInvalid,
		RowsTotal:      summary.RowsTotal,
		ErrorCodes:     summary.ErrorCodesCount,
	}
}

// ResolveThreshold picks the effective threshold: an explicit value wins,
// then the environment, then the default. Percent notation ("10", "10%")
// is normalized to a fraction; misconfigured values fall back to the
// default with a warning rather than failing the pipeline.
func ResolveThreshold(explicit *float64, logger *slog.Logger) float64 {
	if logger == nil {
		logger = slog.Default()
	}
	if explicit != nil {
		if *explicit < 0 || *explicit > 1 {
			logger.Warn("explicit validation threshold out of range, using default",
				slog.Float64("value", *explicit),
				slog.Float64("default", DefaultThreshold))
			return DefaultThreshold
		}
		return *explicit
	}

	raw, ok := os.LookupEnv(EnvThreshold)
	if !ok || strings.TrimSpace(raw) == "" {
		return DefaultThreshold
	}

	trimmed := strings.TrimSpace(raw)
	text := strings.TrimSuffix(trimmed, "%")
	percent := text != trimmed
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		logger.Warn("unparseable validation threshold, using default",
			slog.String("value", raw),
			slog.Float64("default", DefaultThreshold))
		return DefaultThreshold
	}

	// A percent suffix always means percent notation; bare values above 1
	// are treated as percentages too.
	if percent || value > 1 {
		value /= 100
	}
	if value < 0 || value > 1 {
		logger.Warn("validation threshold out of range, using default",
			slog.String("value", raw),
			slog.Float64("default", DefaultThreshold))
		return DefaultThreshold
	}
	return value
}
