package adapter

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// Class tags a fetch failure for the retry engine.
type Class uint8

const (
	// ClassStructural marks adapter validation failures. Retrying cannot
	// help; the engine propagates them immediately.
	ClassStructural Class = iota
	// ClassNetwork marks connectivity and timeout failures, plus responses
	// with a configured retryable status code. Retried; surfaced as a
	// NetworkError on exhaustion.
	ClassNetwork
	// ClassRetryable marks every other failure. Retried with the same
	// policy as network errors but surfaced as a FetchError on exhaustion.
	ClassRetryable
)

// String returns a log-friendly name for the class.
func (c Class) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassNetwork:
		return "network"
	default:
		return "retryable"
	}
}

// Classify tags err for the retry engine. retryOnStatus is the set of HTTP
// status codes treated as transient.
func Classify(err error, retryOnStatus map[int]bool) Class {
	if IsValidationError(err) {
		return ClassStructural
	}

	var se *StatusError
	if errors.As(err, &se) {
		if retryOnStatus[se.StatusCode] {
			return ClassNetwork
		}
		return ClassRetryable
	}

	var re *AdapterError
	if errors.As(err, &re) {
		switch re.Code {
		case CodeNetworkError:
			return ClassNetwork
		case CodeRateLimitError:
			return ClassNetwork
		}
	}

	if isConnectivityError(err) {
		return ClassNetwork
	}

	return ClassRetryable
}

func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}

	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
