// Package validate holds the pure field validators shared by every entity
// transformer. Validators reject bad input; they never repair it.
package validate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrInvalidSnowflake is returned for identifiers that are not 17-20 digits.
	ErrInvalidSnowflake = errors.New("invalid identifier format")
	// ErrInvalidTimestamp is returned for negative or non-numeric timestamps.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrInvalidNumber is returned for negative or non-numeric counters.
	ErrInvalidNumber = errors.New("invalid number")
)

const (
	// MaxDisplayNameLen bounds sanitized display names.
	MaxDisplayNameLen = 100
	// FallbackDisplayName substitutes empty or non-string display names.
	FallbackDisplayName = "Unknown User"
)

// Snowflake checks that raw is a Discord-style snowflake: 17 to 20 ASCII
// digits. Anything else is rejected, not repaired.
func Snowflake(raw string) error {
	if len(raw) < 17 || len(raw) > 20 {
		return fmt.Errorf("%w: %q", ErrInvalidSnowflake, raw)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidSnowflake, raw)
		}
	}
	return nil
}

// DisplayName trims and truncates raw to MaxDisplayNameLen runes. Empty or
// non-string input yields FallbackDisplayName.
func DisplayName(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return FallbackDisplayName
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return FallbackDisplayName
	}
	runes := []rune(s)
	if len(runes) > MaxDisplayNameLen {
		s = string(runes[:MaxDisplayNameLen])
	}
	return s
}

// Timestamp parses an epoch-milliseconds value as decoded from JSON.
// nil maps to (nil, nil); negative or non-numeric values are errors, never
// clamped.
func Timestamp(raw any) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	ms, err := epochMillis(raw)
	if err != nil {
		return nil, err
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

// NonNegativeInt parses a non-negative integer counter as decoded from JSON.
func NonNegativeInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidNumber, v)
		}
		return int64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidNumber, v)
		}
		return int64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidNumber, v)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %T value", ErrInvalidNumber, raw)
	}
}

// NonNegativeFloat parses a non-negative numeric value as decoded from JSON.
func NonNegativeFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidNumber, v)
		}
		return v, nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidNumber, v)
		}
		return float64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidNumber, v)
		}
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T value", ErrInvalidNumber, raw)
	}
}

func epochMillis(raw any) (int64, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, v)
		}
		return int64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, v)
		}
		return int64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, v)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %T value", ErrInvalidTimestamp, raw)
	}
}
