// Package validate turns raw request input into engine values. Every
// function either returns a fully checked value or a
// *booking.ValidationError listing each offending field.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

const (
	MinServiceDuration = 5
	MaxServiceDuration = 480
	MaxNotesLength     = 2000
)

var (
	phonePattern     = regexp.MustCompile(`^\d{10,11}$`)
	subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// Checker accumulates field errors so a request reports all of them at
// once.
type Checker struct {
	fields []booking.FieldError
}

func (c *Checker) Fail(field, format string, args ...any) {
	c.fields = append(c.fields, booking.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *Checker) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &booking.ValidationError{Fields: c.fields}
}

func (c *Checker) Required(field, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		c.Fail(field, "is required")
	}
	return v
}

// UUID accepts an empty value only when optional.
func (c *Checker) UUID(field, v string, optional bool) string {
	v = strings.TrimSpace(v)
	if v == "" {
		if !optional {
			c.Fail(field, "is required")
		}
		return ""
	}
	id, err := uuid.Parse(v)
	if err != nil {
		c.Fail(field, "must be a UUID")
		return ""
	}
	return id.String()
}

// Instant parses an ISO-8601 timestamp carrying an offset.
func (c *Checker) Instant(field, v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		c.Fail(field, "is required")
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		c.Fail(field, "must be an ISO-8601 timestamp with offset")
		return time.Time{}
	}
	return t
}

func (c *Checker) Date(field, v string) model.Date {
	v = strings.TrimSpace(v)
	if v == "" {
		c.Fail(field, "is required")
		return model.Date{}
	}
	d, err := model.ParseDate(v)
	if err != nil {
		c.Fail(field, "must be a date in YYYY-MM-DD form")
	}
	return d
}

func (c *Checker) Phone(field, v string) string {
	v = strings.TrimSpace(v)
	if !phonePattern.MatchString(v) {
		c.Fail(field, "must be 10 or 11 digits")
	}
	return v
}

func (c *Checker) Email(field, v string, optional bool) string {
	v = strings.TrimSpace(v)
	if v == "" && optional {
		return ""
	}
	if addr, err := mail.ParseAddress(v); err != nil || addr.Address != v {
		c.Fail(field, "must be an email address")
	}
	return v
}

func (c *Checker) Subdomain(field, v string) string {
	v = strings.TrimSpace(v)
	if len(v) < 3 || !subdomainPattern.MatchString(v) {
		c.Fail(field, "must be at least 3 characters of a-z, 0-9 or -")
	}
	return v
}

func (c *Checker) ServiceDuration(field string, minutes int) int {
	if minutes < MinServiceDuration || minutes > MaxServiceDuration {
		c.Fail(field, "must be between %d and %d minutes", MinServiceDuration, MaxServiceDuration)
	}
	return minutes
}

func (c *Checker) Between(field string, v, lo, hi int) int {
	if v < lo || v > hi {
		c.Fail(field, "must be between %d and %d", lo, hi)
	}
	return v
}

func (c *Checker) MaxLen(field, v string, n int) string {
	if len(v) > n {
		c.Fail(field, "must be at most %d characters", n)
	}
	return v
}

// Price parses a positive amount with at most two decimal places.
func (c *Checker) Price(field, v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		c.Fail(field, "must be a decimal amount")
		return decimal.Zero
	}
	if !d.IsPositive() || !d.Equal(d.Round(2)) {
		c.Fail(field, "must be positive with at most two decimal places")
	}
	return d
}
