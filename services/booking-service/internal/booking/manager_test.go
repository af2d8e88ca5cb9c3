package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
)

// 2026-03-02 is a Monday.
func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

type fakeConfig struct {
	settings map[string]model.TenantSettings
	services map[string]model.Service
	err      error
}

func (f *fakeConfig) GetSettings(_ context.Context, tenantID string) (model.TenantSettings, error) {
	if f.err != nil {
		return model.TenantSettings{}, f.err
	}
	s, ok := f.settings[tenantID]
	if !ok {
		return model.TenantSettings{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeConfig) GetService(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	svc, ok := f.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func newFakeConfig() *fakeConfig {
	s := model.DefaultSettings("t1")
	s.AutoConfirm = true
	other := model.DefaultSettings("t2")
	return &fakeConfig{
		settings: map[string]model.TenantSettings{"t1": s, "t2": other},
		services: map[string]model.Service{
			"cut":   {ID: "cut", TenantID: "t1", Name: "Haircut", Duration: 30, Active: true},
			"long":  {ID: "long", TenantID: "t1", Name: "Colour", Duration: 90, Active: true},
			"old":   {ID: "old", TenantID: "t1", Name: "Retired", Duration: 30},
			"t2cut": {ID: "t2cut", TenantID: "t2", Name: "Haircut", Duration: 30, Active: true},
		},
	}
}

func newTestManager(t *testing.T, repo Repository, now time.Time) (*Manager, *fakeConfig) {
	t.Helper()
	cfg := newFakeConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return now }
	return NewManager(cfg, cfg, repo, logger, WithClock(clock)), cfg
}

func book(m *Manager, staff string, start time.Time) (model.Appointment, error) {
	return m.Book(context.Background(), BookRequest{
		TenantID:   "t1",
		CustomerID: "c1",
		ServiceID:  "cut",
		StaffID:    staff,
		StartTime:  start,
	})
}

func TestBook_CreatesAppointment(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	appt, err := book(m, "S", at(10, 0))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.ID == "" {
		t.Fatalf("expected an id")
	}
	if !appt.EndTime.Equal(at(10, 30)) {
		t.Fatalf("expected end 10:30, got %s", appt.EndTime)
	}
	if appt.Status != model.StatusConfirmed {
		t.Fatalf("auto confirm tenant should start CONFIRMED, got %s", appt.Status)
	}
}

func TestBook_InitialStatusPendingWithoutAutoConfirm(t *testing.T) {
	m, cfg := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))
	s := cfg.settings["t1"]
	s.AutoConfirm = false
	cfg.settings["t1"] = s

	appt, err := book(m, "S", at(10, 0))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", appt.Status)
	}
}

func TestBook_Validation(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	cases := []struct {
		name  string
		start time.Time
	}{
		{"after close", at(20, 0)},
		{"before open", at(8, 30)},
		{"service overruns close", at(17, 45)},
		{"in the past", at(6, 0)},
		{"sunday", at(10, 0).AddDate(0, 0, 6)},
		{"beyond horizon", at(10, 0).AddDate(0, 0, 35)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := book(m, "S", tc.start)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || len(ve.Fields) == 0 || ve.Fields[0].Field != "start_time" {
				t.Fatalf("expected start_time field error, got %#v", err)
			}
		})
	}
}

func TestBook_LastDayOfHorizonAccepted(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	// 2026-04-01 is a Wednesday, exactly 30 days after the Monday.
	if _, err := book(m, "S", at(9, 0).AddDate(0, 0, 30)); err != nil {
		t.Fatalf("expected booking on the last horizon day to succeed, got %v", err)
	}
}

func TestBook_ServiceChecks(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	_, err := m.Book(context.Background(), BookRequest{TenantID: "t1", CustomerID: "c1", ServiceID: "old", StartTime: at(10, 0)})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("inactive service: expected validation error, got %v", err)
	}

	_, err = m.Book(context.Background(), BookRequest{TenantID: "t1", CustomerID: "c1", ServiceID: "t2cut", StartTime: at(10, 0)})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "service" {
		t.Fatalf("foreign service: expected service not found, got %v", err)
	}
}

func TestBook_BufferedConflicts(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	if _, err := book(m, "S", at(10, 0)); err != nil {
		t.Fatalf("book 10:00: %v", err)
	}

	for _, start := range []time.Time{at(10, 0), at(10, 15), at(9, 55), at(10, 30)} {
		_, err := book(m, "S", start)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("%s: expected conflict, got %v", start.Format("15:04"), err)
		}
		var ce *ConflictError
		if !errors.As(err, &ce) || ce.StaffID != "S" {
			t.Fatalf("expected ConflictError for staff S, got %#v", err)
		}
	}

	if _, err := book(m, "S", at(10, 35)); err != nil {
		t.Fatalf("10:35 clears the buffer: %v", err)
	}
	if _, err := book(m, "S", at(9, 25)); err != nil {
		t.Fatalf("09:25 ends at the buffer edge: %v", err)
	}
	if _, err := book(m, "T", at(10, 0)); err != nil {
		t.Fatalf("other staff member should be free: %v", err)
	}
}

func TestBook_UnassignedConflictsWithEveryone(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	if _, err := book(m, "S", at(10, 0)); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := book(m, "", at(10, 0)); !errors.Is(err, ErrConflict) {
		t.Fatalf("unassigned booking must see staffed ones, got %v", err)
	}
}

func TestBook_TenantsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	if _, err := book(m, "S", at(10, 0)); err != nil {
		t.Fatalf("book t1: %v", err)
	}
	_, err := m.Book(context.Background(), BookRequest{TenantID: "t2", CustomerID: "c9", ServiceID: "t2cut", StaffID: "S", StartTime: at(10, 0)})
	if err != nil {
		t.Fatalf("t2 must not see t1's calendar: %v", err)
	}
}

func TestBook_MissingSettings(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	_, err := m.Book(context.Background(), BookRequest{TenantID: "t3", CustomerID: "c1", ServiceID: "cut", StartTime: at(10, 0)})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	slots, err := m.Slots(context.Background(), SlotQuery{TenantID: "t3", ServiceID: "cut", Date: model.DateOf(at(0, 0), time.UTC)})
	if err != nil {
		t.Fatalf("slots for unconfigured tenant: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestBook_SettingsLookupTransient(t *testing.T) {
	m, cfg := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))
	cfg.err = storage.ErrTransient

	_, err := book(m, "S", at(10, 0))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

// scriptedRepo fails the first inserts with the queued errors.
type scriptedRepo struct {
	*storage.MemoryRepository
	errs  []error
	calls int
}

func (r *scriptedRepo) InsertIfNoConflict(ctx context.Context, appt model.Appointment, g storage.Guard) (model.Appointment, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return model.Appointment{}, err
	}
	return r.MemoryRepository.InsertIfNoConflict(ctx, appt, g)
}

func TestBook_RetriesOnce(t *testing.T) {
	cases := []struct {
		name    string
		errs    []error
		want    error
		attempt int
	}{
		{"race then success", []error{storage.ErrConflictRace}, nil, 2},
		{"transient then success", []error{storage.ErrTransient}, nil, 2},
		{"race twice", []error{storage.ErrConflictRace, storage.ErrConflictRace}, ErrConflict, 2},
		{"transient twice", []error{storage.ErrTransient, storage.ErrTransient}, ErrTransient, 2},
		{"plain conflict", []error{storage.ErrConflict}, ErrConflict, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &scriptedRepo{MemoryRepository: storage.NewMemoryRepository(), errs: tc.errs}
			m, _ := newTestManager(t, repo, at(7, 0))

			_, err := book(m, "S", at(10, 0))
			if tc.want == nil && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if repo.calls != tc.attempt {
				t.Fatalf("expected %d attempts, got %d", tc.attempt, repo.calls)
			}
		})
	}
}

func TestCancel_FreesSlot(t *testing.T) {
	repo := storage.NewMemoryRepository()
	m, _ := newTestManager(t, repo, at(7, 0))
	ctx := context.Background()
	day := model.DateOf(at(0, 0), time.UTC)

	appt, err := book(m, "S", at(10, 0))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if free := slotAvailable(t, m, day, "10:00"); free {
		t.Fatalf("10:00 should be taken")
	}

	cancelled, err := m.Cancel(ctx, "t1", appt.ID, "customer asked")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancelReason != "customer asked" || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled appointment %+v", cancelled)
	}
	if free := slotAvailable(t, m, day, "10:00"); !free {
		t.Fatalf("10:00 should be free after cancel")
	}
	if _, err := book(m, "S", at(10, 0)); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}

	// The cancelled row is kept.
	got, err := m.Get(ctx, "t1", appt.ID)
	if err != nil || got.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled appointment to remain, got %+v %v", got, err)
	}
}

func slotAvailable(t *testing.T, m *Manager, day model.Date, hhmm string) bool {
	t.Helper()
	slots, err := m.Slots(context.Background(), SlotQuery{TenantID: "t1", ServiceID: "cut", StaffID: "S", Date: day})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	for _, s := range slots {
		if s.Start.Format("15:04") == hhmm {
			return s.Available
		}
	}
	t.Fatalf("no slot at %s", hhmm)
	return false
}

func TestSlots_MondayExample(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))
	if _, err := book(m, "S", at(10, 0)); err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err := m.Slots(context.Background(), SlotQuery{TenantID: "t1", ServiceID: "cut", StaffID: "S", Date: model.DateOf(at(0, 0), time.UTC)})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(slots))
	}
	busy := map[string]bool{"09:30": true, "10:00": true, "10:30": true}
	for _, s := range slots {
		if s.Available == busy[s.Start.Format("15:04")] {
			t.Errorf("slot %s available=%v", s.Start.Format("15:04"), s.Available)
		}
	}
}

func TestSlots_UnknownService(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))

	_, err := m.Slots(context.Background(), SlotQuery{TenantID: "t1", ServiceID: "nope", Date: model.DateOf(at(0, 0), time.UTC)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	setup := func(t *testing.T, now time.Time, autoConfirm bool) (*Manager, model.Appointment) {
		t.Helper()
		m, cfg := newTestManager(t, repo, at(7, 0))
		s := cfg.settings["t1"]
		s.AutoConfirm = autoConfirm
		cfg.settings["t1"] = s
		appt, err := book(m, t.Name(), at(10, 0))
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		m.now = func() time.Time { return now }
		return m, appt
	}

	t.Run("confirm pending", func(t *testing.T) {
		m, appt := setup(t, at(8, 0), false)
		got, err := m.Confirm(ctx, "t1", appt.ID)
		if err != nil || got.Status != model.StatusConfirmed {
			t.Fatalf("confirm: %+v %v", got, err)
		}
		if _, err := m.Confirm(ctx, "t1", appt.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("second confirm should fail, got %v", err)
		}
	})

	t.Run("complete before end", func(t *testing.T) {
		m, appt := setup(t, at(10, 15), true)
		_, err := m.Complete(ctx, "t1", appt.ID)
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) || ite.Reason == "" {
			t.Fatalf("expected time precondition failure, got %v", err)
		}
		got, _ := m.Get(ctx, "t1", appt.ID)
		if got.Status != model.StatusConfirmed {
			t.Fatalf("failed transition must not change status, got %s", got.Status)
		}
	})

	t.Run("complete after end", func(t *testing.T) {
		m, appt := setup(t, at(10, 30), true)
		got, err := m.Complete(ctx, "t1", appt.ID)
		if err != nil || got.Status != model.StatusCompleted || got.CompletedAt == nil {
			t.Fatalf("complete: %+v %v", got, err)
		}
		if _, err := m.Cancel(ctx, "t1", appt.ID, ""); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("completed is terminal, got %v", err)
		}
	})

	t.Run("no-show before start", func(t *testing.T) {
		m, appt := setup(t, at(9, 59), true)
		if _, err := m.MarkNoShow(ctx, "t1", appt.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("no-show after start", func(t *testing.T) {
		m, appt := setup(t, at(10, 10), true)
		got, err := m.MarkNoShow(ctx, "t1", appt.ID)
		if err != nil || got.Status != model.StatusNoShow {
			t.Fatalf("no-show: %+v %v", got, err)
		}
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		m, appt := setup(t, at(11, 0), false)
		if _, err := m.Complete(ctx, "t1", appt.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("apply by name", func(t *testing.T) {
		m, appt := setup(t, at(8, 0), false)
		got, err := m.Apply(ctx, "t1", appt.ID, ActionCancel, "sick")
		if err != nil || got.Status != model.StatusCancelled || got.CancelReason != "sick" {
			t.Fatalf("apply cancel: %+v %v", got, err)
		}
		if _, err := m.Apply(ctx, "t1", appt.ID, Action("reschedule"), ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("unknown action should be a validation error, got %v", err)
		}
	})
}

func TestTransitions_OtherTenantSeesNotFound(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))
	appt, err := book(m, "S", at(10, 0))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := m.Cancel(context.Background(), "t2", appt.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := m.Get(context.Background(), "t2", appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}

func TestListDay(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryRepository(), at(7, 0))
	for _, tc := range []struct {
		staff string
		start time.Time
	}{{"S", at(10, 0)}, {"T", at(11, 0)}, {"S", at(10, 0).AddDate(0, 0, 1)}} {
		if _, err := book(m, tc.staff, tc.start); err != nil {
			t.Fatalf("book: %v", err)
		}
	}

	day := model.DateOf(at(0, 0), time.UTC)
	all, err := m.ListDay(context.Background(), "t1", day, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 appointments on the day, got %d %v", len(all), err)
	}
	onlyS, err := m.ListDay(context.Background(), "t1", day, "S")
	if err != nil || len(onlyS) != 1 || onlyS[0].StaffID != "S" {
		t.Fatalf("expected 1 appointment for S, got %+v %v", onlyS, err)
	}
}

func TestTouchedDays(t *testing.T) {
	monday := model.DateOf(at(0, 0), time.UTC)
	tuesday := monday.AddDays(1)

	if got := touchedDays(at(10, 0), at(10, 35), time.UTC); len(got) != 1 || got[0] != monday {
		t.Fatalf("same-day span: got %v", got)
	}
	if got := touchedDays(at(23, 30), at(24, 0), time.UTC); len(got) != 1 {
		t.Fatalf("span ending exactly at midnight stays on one day, got %v", got)
	}
	got := touchedDays(at(23, 30), at(24, 5), time.UTC)
	if len(got) != 2 || got[0] != monday || got[1] != tuesday {
		t.Fatalf("cross-midnight span: got %v", got)
	}
}
