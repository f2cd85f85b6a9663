package mapper

import "fmt"

// MappingError reports a failure to transform a provider payload into the
// canonical shape. It always names the ticker so multi-ticker runs can
// attribute the failure.
type MappingError struct {
	Ticker  string
	Message string
	Cause   error
}

func (e *MappingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mapping failed for %s: %s (caused by: %v)", e.Ticker, e.Message, e.Cause)
	}
	return fmt.Sprintf("mapping failed for %s: %s", e.Ticker, e.Message)
}

func (e *MappingError) Unwrap() error { return e.Cause }

func newMappingError(ticker, message string, cause error) *MappingError {
	return &MappingError{Ticker: ticker, Message: message, Cause: cause}
}
