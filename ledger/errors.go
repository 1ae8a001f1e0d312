package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Business outcomes. Both map to 400 at the HTTP boundary: they are
// expected results of valid requests, not infrastructure failures.
var (
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrDailyLimitReached   = errors.New("daily deposit limit reached")
)

// ValidationError rejects a malformed request before any transaction
// begins.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a request-validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// isRetryable classifies store errors worth re-running the transaction
// for: MySQL serialization conflicts between concurrent writers to the
// same rows. Business errors and validation errors never retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrDailyLimitReached) || IsValidation(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "Lock wait timeout") ||
		strings.Contains(msg, "try restarting transaction") ||
		// Losing a lazy-create race surfaces as a duplicate key; the
		// retry then finds the winner's row under lock.
		strings.Contains(msg, "Duplicate entry")
}
