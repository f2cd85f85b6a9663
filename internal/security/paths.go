// Package security validates untrusted CLI inputs before they reach the
// filesystem.
package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// pathTraversalPatterns cover the encoded spellings of "..".
var pathTraversalPatterns = []string{
	"../", "..\\", "..%2f", "..%5c", "%2e%2e%2f", "%2e%2e%5c",
}

// tickerPattern matches exchange symbols we accept on the command line:
// letters and digits with an optional exchange suffix (PETR4, PETR4.SA).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{2,12}(\.[A-Z]{1,4})?$`)

// SanitizeRelPath resolves p against base and rejects anything that would
// escape it: absolute paths, parent references, encoded traversal attempts.
// Returns the cleaned absolute path.
func SanitizeRelPath(base, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}

	lower := strings.ToLower(p)
	for _, pattern := range pathTraversalPatterns {
		if strings.Contains(lower, pattern) {
			return "", fmt.Errorf("path %q contains a traversal pattern", p)
		}
	}

	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute path %q not allowed", p)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base %q: %w", base, err)
	}

	joined := filepath.Clean(filepath.Join(absBase, p))
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %q", p, base)
	}
	return joined, nil
}

// ValidateTicker rejects command-line tickers that could not be exchange
// symbols. Input is upper-cased before matching.
func ValidateTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("empty ticker")
	}
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("ticker %q has an unexpected format", ticker)
	}
	return t, nil
}
