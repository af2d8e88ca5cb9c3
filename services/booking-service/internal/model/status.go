package model

import "fmt"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status still holds its
// time on the calendar.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status %q", v)
}
