package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func appt(id, staff string, start, end time.Time, status model.Status) model.Appointment {
	return model.Appointment{ID: id, TenantID: "t1", StaffID: staff, StartTime: start, EndTime: end, Status: status}
}

func TestIntervalOverlaps_HalfOpen(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(9, 30)}
	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"touching after", Interval{at(9, 30), at(10, 0)}, false},
		{"touching before", Interval{at(8, 30), at(9, 0)}, false},
		{"inside", Interval{at(9, 10), at(9, 20)}, true},
		{"covering", Interval{at(8, 0), at(10, 0)}, true},
		{"straddling end", Interval{at(9, 29), at(9, 45)}, true},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Errorf("%s (reversed): got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestOverlaps_BufferWidensExisting(t *testing.T) {
	existing := appt("a1", "S", at(10, 0), at(10, 30), model.StatusConfirmed)
	buffer := 5 * time.Minute
	dur := 30 * time.Minute

	cases := []struct {
		start time.Time
		want  bool
	}{
		{at(9, 25), false},
		{at(9, 55), true},
		{at(10, 0), true},
		{at(10, 34), true},
		{at(10, 35), false},
	}
	for _, tc := range cases {
		got := Overlaps(Interval{tc.start, tc.start.Add(dur)}, existing, buffer)
		if got != tc.want {
			t.Errorf("start %s: got %v want %v", tc.start.Format("15:04"), got, tc.want)
		}
	}
}

func TestOverlaps_CancelledNeverConflicts(t *testing.T) {
	existing := appt("a1", "S", at(10, 0), at(10, 30), model.StatusCancelled)
	if Overlaps(Interval{at(10, 0), at(10, 30)}, existing, 5*time.Minute) {
		t.Fatalf("cancelled appointment must not conflict")
	}
	for _, st := range []model.Status{model.StatusPending, model.StatusCompleted, model.StatusNoShow} {
		existing.Status = st
		if !Overlaps(Interval{at(10, 0), at(10, 30)}, existing, 0) {
			t.Errorf("%s appointment should still occupy its time", st)
		}
	}
}

func TestConflictsWith_StaffScoping(t *testing.T) {
	existing := []model.Appointment{
		appt("a1", "S1", at(10, 0), at(10, 30), model.StatusConfirmed),
	}
	candidate := Interval{at(10, 0), at(10, 30)}

	if _, hit := ConflictsWith(candidate, "S2", existing, 0); hit {
		t.Fatalf("other staff member's booking must not block S2")
	}
	got, hit := ConflictsWith(candidate, "S1", existing, 0)
	if !hit || got.ID != "a1" {
		t.Fatalf("expected conflict with a1, got %v %v", got.ID, hit)
	}
	if _, hit := ConflictsWith(candidate, "", existing, 0); !hit {
		t.Fatalf("unscoped candidate should see every appointment")
	}
}

func TestConflictsWith_UnassignedBlocksEveryone(t *testing.T) {
	existing := []model.Appointment{
		appt("u1", "", at(10, 0), at(10, 30), model.StatusConfirmed),
	}
	candidate := Interval{at(10, 15), at(10, 45)}

	for _, staff := range []string{"S1", "S2", ""} {
		got, hit := ConflictsWith(candidate, staff, existing, 0)
		if !hit || got.ID != "u1" {
			t.Errorf("staff %q: unassigned booking should conflict, got %v %v", staff, got.ID, hit)
		}
	}
}

func TestSharesCalendar_Symmetric(t *testing.T) {
	ids := []string{"", "S1", "S2"}
	for _, a := range ids {
		for _, b := range ids {
			if SharesCalendar(a, b) != SharesCalendar(b, a) {
				t.Errorf("SharesCalendar(%q, %q) is not symmetric", a, b)
			}
		}
	}
	if SharesCalendar("S1", "S2") {
		t.Fatalf("distinct staff members must not share a calendar")
	}
}
