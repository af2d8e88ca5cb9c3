package availability

import (
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals ([9:00,9:30) and [9:30,10:00)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Blocked is the span an appointment keeps others out of: its own time
// widened by buffer on both sides.
func Blocked(a model.Appointment, buffer time.Duration) Interval {
	return Interval{Start: a.StartTime.Add(-buffer), End: a.EndTime.Add(buffer)}
}

// Overlaps is the single conflict rule: candidate conflicts with existing
// when it intersects existing's buffered span. Cancelled appointments never
// conflict.
func Overlaps(candidate Interval, existing model.Appointment, buffer time.Duration) bool {
	if !existing.Status.Occupies() {
		return false
	}
	return candidate.Overlaps(Blocked(existing, buffer))
}

// SharesCalendar reports whether bookings for the two staff ids compete for
// the same time. An unassigned booking (empty id) competes with everyone.
func SharesCalendar(staffID, other string) bool {
	return staffID == "" || other == "" || staffID == other
}

// ConflictsWith returns the first appointment in existing that conflicts
// with candidate. With a staffID that staff member's appointments and the
// unassigned ones are considered; an empty staffID checks against all of
// them.
func ConflictsWith(candidate Interval, staffID string, existing []model.Appointment, buffer time.Duration) (model.Appointment, bool) {
	for _, a := range existing {
		if !SharesCalendar(staffID, a.StaffID) {
			continue
		}
		if Overlaps(candidate, a, buffer) {
			return a, true
		}
	}
	return model.Appointment{}, false
}
