package storage

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

// LockKey scopes the serialization of bookings: one tenant, one staff
// member (or every staff member when StaffID is empty), one tenant-local
// day.
type LockKey struct {
	TenantID string
	StaffID  string
	Day      model.Date
}

const anyStaff = "*"

func (k LockKey) String() string {
	staff := k.StaffID
	if staff == "" {
		staff = anyStaff
	}
	return k.TenantID + "|" + staff + "|" + k.Day.String()
}

// dayKey is the tenant-wide key every booking of the day touches. Staffed
// bookings hold it shared, unstaffed ones exclusively, so an unassigned
// booking (which conflicts with everyone) never races a staffed one.
func (k LockKey) dayKey() string {
	return LockKey{TenantID: k.TenantID, Day: k.Day}.String()
}

// Guard tells InsertIfNoConflict what to lock, which existing appointments
// to examine, and how to judge them.
type Guard struct {
	Key LockKey
	// Days lists every tenant-local day the buffered span touches. A span
	// crossing midnight locks both days. Empty means Key.Day alone.
	Days []model.Date
	// From/To bound the appointments handed to Conflict. Appointments
	// overlapping [From, To) in any status are included.
	From time.Time
	To   time.Time
	// Buffer is persisted with the row so the exclusion constraint can
	// enforce the buffered span.
	Buffer   time.Duration
	Conflict func(existing []model.Appointment) bool
}

// lockKeys returns one key per guarded day in ascending day order, the
// order every caller acquires them in.
func (g Guard) lockKeys() []LockKey {
	days := g.Days
	if len(days) == 0 {
		days = []model.Date{g.Key.Day}
	}
	seen := map[string]bool{}
	var keys []LockKey
	for _, d := range days {
		if seen[d.String()] {
			continue
		}
		seen[d.String()] = true
		keys = append(keys, LockKey{TenantID: g.Key.TenantID, StaffID: g.Key.StaffID, Day: d})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Day.String() < keys[j].Day.String() })
	return keys
}
