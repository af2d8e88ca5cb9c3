package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimeOfDay is a wall clock time in minutes after midnight. 24:00 is valid
// as a closing time.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// DayHours is either closed or open between Opens and Closes.
type DayHours struct {
	Opens  TimeOfDay
	Closes TimeOfDay
	open   bool
}

func Closed() DayHours { return DayHours{} }

func OpenBetween(opens, closes TimeOfDay) DayHours {
	return DayHours{Opens: opens, Closes: closes, open: true}
}

func (h DayHours) IsOpen() bool { return h.open }

// BusinessHours is indexed by time.Weekday.
type BusinessHours [7]DayHours

var weekdayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

type dayHoursJSON struct {
	Open  *string `json:"open"`
	Close *string `json:"close"`
}

func (b BusinessHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]dayHoursJSON, 7)
	for i, h := range b {
		var v dayHoursJSON
		if h.open {
			o, c := h.Opens.String(), h.Closes.String()
			v = dayHoursJSON{Open: &o, Close: &c}
		}
		out[weekdayKeys[i]] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {"monday":{"open":"09:00","close":"18:00"},...}.
// A missing day or null open/close means closed.
func (b *BusinessHours) UnmarshalJSON(data []byte) error {
	var raw map[string]*dayHoursJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out BusinessHours
	for key, v := range raw {
		idx := -1
		for i, k := range weekdayKeys {
			if strings.EqualFold(k, key) {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("business hours: unknown day %q", key)
		}
		if v == nil || v.Open == nil || v.Close == nil {
			continue
		}
		opens, err := ParseTimeOfDay(*v.Open)
		if err != nil {
			return fmt.Errorf("business hours %s: %w", key, err)
		}
		closes, err := ParseTimeOfDay(*v.Close)
		if err != nil {
			return fmt.Errorf("business hours %s: %w", key, err)
		}
		out[idx] = OpenBetween(opens, closes)
	}
	*b = out
	return nil
}

type TenantSettings struct {
	TenantID           string        `json:"tenant_id"`
	Timezone           string        `json:"timezone"`
	BusinessHours      BusinessHours `json:"business_hours"`
	SlotDuration       int           `json:"slot_duration"` // minutes
	BufferTime         int           `json:"buffer_time"`   // minutes
	AdvanceBookingDays int           `json:"advance_booking_days"`
	AutoConfirm        bool          `json:"auto_confirm"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// DefaultSettings is what a newly provisioned tenant starts with.
func DefaultSettings(tenantID string) TenantSettings {
	var hours BusinessHours
	for d := time.Monday; d <= time.Friday; d++ {
		hours[d] = OpenBetween(9*60, 18*60)
	}
	return TenantSettings{
		TenantID:           tenantID,
		Timezone:           "UTC",
		BusinessHours:      hours,
		SlotDuration:       30,
		BufferTime:         5,
		AdvanceBookingDays: 30,
	}
}

func (s TenantSettings) Slot() time.Duration   { return time.Duration(s.SlotDuration) * time.Minute }
func (s TenantSettings) Buffer() time.Duration { return time.Duration(s.BufferTime) * time.Minute }

// InitialStatus is the status a new booking starts in.
func (s TenantSettings) InitialStatus() Status {
	if s.AutoConfirm {
		return StatusConfirmed
	}
	return StatusPending
}

var locations sync.Map

// Location resolves the tenant timezone, falling back to UTC for an empty
// or unknown name.
func (s TenantSettings) Location() *time.Location {
	name := s.Timezone
	if name == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	locations.Store(name, loc)
	return loc
}

// Window returns the open interval of d in the tenant timezone.
func (s TenantSettings) Window(d Date) (opens, closes time.Time, ok bool) {
	h := s.BusinessHours[d.Weekday()]
	if !h.IsOpen() || h.Closes <= h.Opens {
		return time.Time{}, time.Time{}, false
	}
	loc := s.Location()
	return d.At(h.Opens, loc), d.At(h.Closes, loc), true
}
