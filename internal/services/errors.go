package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// ValidationError reports a request that can never succeed as submitted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// BudgetExceededError is returned when a plan write would push the user's
// total allocation past the score budget.
type BudgetExceededError struct {
	Remaining int
	Requested int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("score budget exceeded: requested %d, remaining %d", e.Requested, e.Remaining)
}

// notFound maps gorm's missing-row error to ErrNotFound so callers never see
// storage details for an absent or foreign entity.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
