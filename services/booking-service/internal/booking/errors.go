package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("time slot conflicts with an existing appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrConfiguration     = errors.New("tenant is not configured for booking")
	ErrTransient         = errors.New("temporarily unavailable")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

type ConflictError struct {
	TenantID string
	StaffID  string
	Start    time.Time
	End      time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot %s-%s conflicts with an existing appointment",
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidTransitionError struct {
	From model.Status
	To   model.Status
	// Reason is set when the transition exists but its time precondition
	// does not hold yet.
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ConfigurationError struct {
	TenantID string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tenant %s has no booking settings", e.TenantID)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }
