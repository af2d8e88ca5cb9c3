package availability

import (
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Query is everything ComputeSlots needs. Existing should hold the tenant's
// appointments around Date; filtering by staff and status happens here.
type Query struct {
	Settings model.TenantSettings
	Service  model.Service
	Existing []model.Appointment
	Date     model.Date
	StaffID  string
	Now      time.Time
}

// BlockLength is how much of the business day a booking must fit in: the
// service duration, but never less than one slot.
func BlockLength(settings model.TenantSettings, service model.Service) time.Duration {
	return max(service.Length(), settings.Slot())
}

// WithinHorizon reports whether date lies between today and today plus
// AdvanceBookingDays, with today taken in the tenant timezone.
func WithinHorizon(settings model.TenantSettings, date model.Date, now time.Time) bool {
	today := model.DateOf(now, settings.Location())
	days := today.DaysUntil(date)
	return days >= 0 && days <= settings.AdvanceBookingDays
}

// ComputeSlots enumerates the bookable grid for one day. Slots start every
// SlotDuration from opening; each lasts the service duration. Slots already
// in the past are returned unavailable. Closed days, days outside the
// booking horizon and misconfigured durations yield no slots.
func ComputeSlots(q Query) []Slot {
	step := q.Settings.Slot()
	length := q.Service.Length()
	if step <= 0 || length <= 0 {
		return nil
	}
	if !WithinHorizon(q.Settings, q.Date, q.Now) {
		return nil
	}
	opens, closes, ok := q.Settings.Window(q.Date)
	if !ok {
		return nil
	}

	block := BlockLength(q.Settings, q.Service)
	buffer := q.Settings.Buffer()

	var slots []Slot
	for t := opens; !t.Add(block).After(closes); t = t.Add(step) {
		candidate := Interval{Start: t, End: t.Add(length)}
		available := !t.Before(q.Now)
		if available {
			_, conflict := ConflictsWith(candidate, q.StaffID, q.Existing, buffer)
			available = !conflict
		}
		slots = append(slots, Slot{Start: candidate.Start, End: candidate.End, Available: available})
	}
	return slots
}
