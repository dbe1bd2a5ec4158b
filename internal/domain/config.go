package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Validate reports whether the config can be rendered into a worker config.
// Values are substituted verbatim into a JSON document, so quotes,
// backslashes and control characters are rejected.
func (c MiningConfig) Validate() error {
	if strings.TrimSpace(c.Pool) == "" {
		return fmt.Errorf("%w: pool is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidConfig)
	}
	if hasUnsafeRune(c.Pool) {
		return fmt.Errorf("%w: pool contains unsupported characters", ErrInvalidConfig)
	}
	if hasUnsafeRune(c.Username) {
		return fmt.Errorf("%w: username contains unsupported characters", ErrInvalidConfig)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidConfig, c.Threads)
	}
	if c.MaxCPU < 1 || c.MaxCPU > 100 {
		return fmt.Errorf("%w: max cpu must be between 1 and 100, got %d", ErrInvalidConfig, c.MaxCPU)
	}
	return nil
}

func hasUnsafeRune(value string) bool {
	return strings.ContainsFunc(value, func(r rune) bool {
		return r == '"' || r == '\\' || unicode.IsControl(r)
	})
}
