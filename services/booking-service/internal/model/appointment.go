package model

import "time"

// Appointment instants are stored in UTC; the tenant timezone only matters
// when mapping to calendar days and business hours.
type Appointment struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	CustomerID   string     `json:"customer_id"`
	ServiceID    string     `json:"service_id"`
	StaffID      string     `json:"staff_id,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       Status     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}
