package validate

import (
	"net/url"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

type BookInput struct {
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
	StaffID    string `json:"staff_id"`
	StartTime  string `json:"start_time"`
	Notes      string `json:"notes"`
}

func Book(tenantID string, in BookInput) (booking.BookRequest, error) {
	var c Checker
	req := booking.BookRequest{
		TenantID:   tenantID,
		CustomerID: c.UUID("customer_id", in.CustomerID, false),
		ServiceID:  c.UUID("service_id", in.ServiceID, false),
		StaffID:    c.UUID("staff_id", in.StaffID, true),
		StartTime:  c.Instant("start_time", in.StartTime),
		Notes:      c.MaxLen("notes", strings.TrimSpace(in.Notes), MaxNotesLength),
	}
	if err := c.Err(); err != nil {
		return booking.BookRequest{}, err
	}
	return req, nil
}

// SlotQuery reads service_id, date and an optional staff_id.
func SlotQuery(tenantID string, q url.Values) (booking.SlotQuery, error) {
	var c Checker
	out := booking.SlotQuery{
		TenantID:  tenantID,
		ServiceID: c.UUID("service_id", q.Get("service_id"), false),
		StaffID:   c.UUID("staff_id", q.Get("staff_id"), true),
		Date:      c.Date("date", q.Get("date")),
	}
	if err := c.Err(); err != nil {
		return booking.SlotQuery{}, err
	}
	return out, nil
}

type DayQuery struct {
	Date    model.Date
	StaffID string
}

func Day(q url.Values) (DayQuery, error) {
	var c Checker
	out := DayQuery{
		Date:    c.Date("date", q.Get("date")),
		StaffID: c.UUID("staff_id", q.Get("staff_id"), true),
	}
	if err := c.Err(); err != nil {
		return DayQuery{}, err
	}
	return out, nil
}

// AppointmentID checks a path identifier.
func AppointmentID(v string) (string, error) {
	var c Checker
	id := c.UUID("id", v, false)
	return id, c.Err()
}

type TransitionInput struct {
	Reason string `json:"reason"`
}

func Transition(action string, in TransitionInput) (booking.Action, string, error) {
	var c Checker
	a := booking.Action(strings.TrimSpace(action))
	known := false
	for _, candidate := range booking.Actions {
		if a == candidate {
			known = true
		}
	}
	if !known {
		c.Fail("action", "must be one of confirm, cancel, complete, no-show")
	}
	reason := c.MaxLen("reason", strings.TrimSpace(in.Reason), MaxNotesLength)
	if err := c.Err(); err != nil {
		return "", "", err
	}
	return a, reason, nil
}

type SettingsInput struct {
	Timezone           string              `json:"timezone"`
	BusinessHours      model.BusinessHours `json:"business_hours"`
	SlotDuration       int                 `json:"slot_duration"`
	BufferTime         int                 `json:"buffer_time"`
	AdvanceBookingDays int                 `json:"advance_booking_days"`
	AutoConfirm        bool                `json:"auto_confirm"`
}

func Settings(tenantID string, in SettingsInput) (model.TenantSettings, error) {
	var c Checker
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		c.Fail("timezone", "unknown IANA timezone %q", tz)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		h := in.BusinessHours[d]
		if h.IsOpen() && h.Closes <= h.Opens {
			c.Fail("business_hours."+strings.ToLower(d.String()), "must close after it opens")
		}
	}
	out := model.TenantSettings{
		TenantID:           tenantID,
		Timezone:           tz,
		BusinessHours:      in.BusinessHours,
		SlotDuration:       c.Between("slot_duration", in.SlotDuration, 1, 24*60),
		BufferTime:         c.Between("buffer_time", in.BufferTime, 0, 24*60),
		AdvanceBookingDays: c.Between("advance_booking_days", in.AdvanceBookingDays, 0, 366),
		AutoConfirm:        in.AutoConfirm,
	}
	if err := c.Err(); err != nil {
		return model.TenantSettings{}, err
	}
	return out, nil
}

type TenantInput struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Subdomain string     `json:"subdomain"`
	Plan      model.Plan `json:"plan"`
}

func Tenant(in TenantInput) (model.Tenant, error) {
	var c Checker
	out := model.Tenant{
		ID:        c.UUID("id", in.ID, false),
		Name:      c.Required("name", in.Name),
		Subdomain: c.Subdomain("subdomain", in.Subdomain),
		Plan:      in.Plan,
		Active:    true,
	}
	switch out.Plan {
	case "":
		out.Plan = model.PlanBasic
	case model.PlanBasic, model.PlanPremium, model.PlanEnterprise:
	default:
		c.Fail("plan", "must be basic, premium or enterprise")
	}
	if err := c.Err(); err != nil {
		return model.Tenant{}, err
	}
	return out, nil
}

type ServiceInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Price       string `json:"price"`
}

func Service(tenantID string, in ServiceInput) (model.Service, error) {
	var c Checker
	out := model.Service{
		ID:          c.UUID("id", in.ID, false),
		TenantID:    tenantID,
		Name:        c.Required("name", in.Name),
		Description: strings.TrimSpace(in.Description),
		Duration:    c.ServiceDuration("duration", in.Duration),
		Active:      true,
	}
	out.Price = c.Price("price", in.Price)
	if err := c.Err(); err != nil {
		return model.Service{}, err
	}
	return out, nil
}

type CustomerInput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func Customer(tenantID string, in CustomerInput) (model.Customer, error) {
	var c Checker
	out := model.Customer{
		ID:       c.UUID("id", in.ID, false),
		TenantID: tenantID,
		Name:     c.Required("name", in.Name),
		Email:    c.Email("email", in.Email, true),
		Phone:    c.Phone("phone", in.Phone),
	}
	if err := c.Err(); err != nil {
		return model.Customer{}, err
	}
	return out, nil
}

type StaffInput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func Staff(tenantID string, in StaffInput) (model.Staff, error) {
	var c Checker
	out := model.Staff{
		ID:       c.UUID("id", in.ID, false),
		TenantID: tenantID,
		Name:     c.Required("name", in.Name),
		Email:    c.Email("email", in.Email, false),
		Role:     strings.ToUpper(strings.TrimSpace(in.Role)),
		Active:   true,
	}
	switch out.Role {
	case "":
		out.Role = "STAFF"
	case "OWNER", "ADMIN", "STAFF":
	default:
		c.Fail("role", "must be OWNER, ADMIN or STAFF")
	}
	if err := c.Err(); err != nil {
		return model.Staff{}, err
	}
	return out, nil
}
