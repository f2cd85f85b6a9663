package adapter

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls the retry/backoff behavior of the engine. All fields
// have safe defaults and can be overridden from the environment.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration `yaml:"initial_delay" envconfig:"INITIAL_DELAY" default:"1s"`
	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY" default:"30s"`
	// BackoffFactor is the multiplicative growth per attempt.
	BackoffFactor float64 `yaml:"backoff_factor" envconfig:"BACKOFF_FACTOR" default:"2.0"`
	// RetryOnStatusCodes lists HTTP statuses treated as transient.
	RetryOnStatusCodes []int `yaml:"retry_on_status_codes" envconfig:"ON_STATUS_CODES" default:"429,500,502,503,504"`
	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        3,
		InitialDelay:       1 * time.Second,
		MaxDelay:           30 * time.Second,
		BackoffFactor:      2.0,
		RetryOnStatusCodes: []int{429, 500, 502, 503, 504},
		Timeout:            30 * time.Second,
	}
}

// RetryConfigFromEnv loads the retry configuration from ADAPTER_RETRY_*
// environment variables, falling back to defaults for anything absent or
// unparseable.
func RetryConfigFromEnv() RetryConfig {
	return retryConfigFromEnv("ADAPTER_RETRY")
}

func retryConfigFromEnv(prefix string) RetryConfig {
	cfg := NewRetryConfig()

	if v, err := strconv.Atoi(os.Getenv(prefix + "_MAX_ATTEMPTS")); err == nil && v >= 1 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.Atoi(os.Getenv(prefix + "_INITIAL_DELAY_MS")); err == nil && v >= 0 {
		cfg.InitialDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(os.Getenv(prefix + "_MAX_DELAY_MS")); err == nil && v >= 0 {
		cfg.MaxDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.ParseFloat(os.Getenv(prefix+"_BACKOFF_FACTOR"), 64); err == nil && v > 0 {
		cfg.BackoffFactor = v
	}
	if codes := parseStatusCodes(os.Getenv(prefix + "_ON_STATUS_CODES")); codes != nil {
		cfg.RetryOnStatusCodes = codes
	}
	if v, err := strconv.Atoi(os.Getenv(prefix + "_TIMEOUT_SECONDS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Second
	}

	return cfg
}

func parseStatusCodes(s string) []int {
	if s == "" {
		return nil
	}
	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		codes = append(codes, code)
	}
	return codes
}

// Delay computes the backoff delay before the attempt following the given
// one: min(initial * factor^(attempt-1), max). Attempt 0 and below yield
// zero. The formula is deterministic with no jitter so tests reproduce
// exactly.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// StatusCodeSet returns RetryOnStatusCodes as a lookup set.
func (c RetryConfig) StatusCodeSet() map[int]bool {
	set := make(map[int]bool, len(c.RetryOnStatusCodes))
	for _, code := range c.RetryOnStatusCodes {
		set[code] = true
	}
	return set
}
