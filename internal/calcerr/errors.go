// Package calcerr defines the error taxonomy shared by the invoice
// computation packages. Domain packages wrap these sentinels so callers can
// branch with errors.Is regardless of which component failed.
package calcerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork means the rate source was unreachable, timed out or replied with a non-2xx status.
	ErrNetwork = errors.New("network_error")
	// ErrParse means a rate payload was malformed.
	ErrParse = errors.New("parse_error")
	// ErrValidation covers negative amounts, invalid currency or tax input and non-monotonic windows.
	ErrValidation = errors.New("validation_error")
	// ErrConversionUnavailable means no usable rate could be obtained and no fallback is permitted.
	ErrConversionUnavailable = errors.New("conversion_unavailable")
)

// Validation wraps ErrValidation with a formatted detail message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Parse wraps ErrParse with a formatted detail message.
func Parse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// Network wraps ErrNetwork and keeps the underlying cause in the chain.
func Network(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrNetwork, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrNetwork, msg, cause)
}

// Kind returns the taxonomy name for err, or "internal" when err does not
// belong to the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConversionUnavailable):
		return ErrConversionUnavailable.Error()
	case errors.Is(err, ErrNetwork):
		return ErrNetwork.Error()
	case errors.Is(err, ErrParse):
		return ErrParse.Error()
	case errors.Is(err, ErrValidation):
		return ErrValidation.Error()
	default:
		return "internal"
	}
}

// UserMessage maps err to an actionable message for the presentation layer.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConversionUnavailable), errors.Is(err, ErrNetwork), errors.Is(err, ErrParse):
		return "exchange rate unavailable, please retry or enter manually"
	case errors.Is(err, ErrValidation):
		return "invoice line contains invalid amounts, tax rates or dates, please review the line item"
	default:
		return "invoice could not be computed, please retry later"
	}
}
