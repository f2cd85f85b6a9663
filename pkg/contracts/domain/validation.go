package domain

// ReasonCode is the closed taxonomy of row-level validation failures.
type ReasonCode string

const (
	ReasonMissingCol          ReasonCode = "MISSING_COL"
	ReasonBadDate             ReasonCode = "BAD_DATE"
	ReasonNonNumericPrice     ReasonCode = "NON_NUMERIC_PRICE"
	ReasonNegativeVolume      ReasonCode = "NEGATIVE_VOLUME"
	ReasonNonNumericVolume    ReasonCode = "NON_NUMERIC_VOLUME"
	ReasonTypeError           ReasonCode = "TYPE_ERROR"
	ReasonConstraintViolation ReasonCode = "CONSTRAINT_VIOLATION"
	ReasonValidationError     ReasonCode = "VALIDATION_ERROR"
	ReasonAdapterValidation   ReasonCode = "ADAPTER_VALIDATION"
)

// ErrorRecord describes one constraint violation. RowIndex is nil for
// schema-level conditions that cannot be pinned to a single row.
type ErrorRecord struct {
	RowIndex      *int       `json:"row_index"`
	Column        string     `json:"column,omitempty"`
	ReasonCode    ReasonCode `json:"reason_code"`
	ReasonMessage string     `json:"reason_message"`
	FailureValue  *string    `json:"failure_value,omitempty"`
}

// ValidationSummary aggregates one batch's validation results. It is
// computed once per ingest attempt and never mutated.
type ValidationSummary struct {
	RowsTotal       int                `json:"rows_total"`
	RowsValid       int                `json:"rows_valid"`
	RowsInvalid     int                `json:"rows_invalid"`
	InvalidPercent  float64            `json:"invalid_percent"`
	ErrorCodesCount map[ReasonCode]int `json:"error_codes_count"`
}
