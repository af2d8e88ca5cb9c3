package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxBookAttempts = 2

// Manager runs bookings and lifecycle transitions. It keeps no state of its
// own between calls; every method takes the tenant explicitly.
type Manager struct {
	settings  SettingsStore
	services  ServiceCatalog
	directory Directory
	repo      Repository
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDirectory makes Book reject customers and staff that do not belong
// to the tenant.
func WithDirectory(d Directory) Option {
	return func(m *Manager) { m.directory = d }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(settings SettingsStore, services ServiceCatalog, repo Repository, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		settings: settings,
		services: services,
		repo:     repo,
		logger:   logger,
		tracer:   otel.Tracer("booking"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type BookRequest struct {
	TenantID   string
	CustomerID string
	ServiceID  string
	StaffID    string
	StartTime  time.Time
	Notes      string
}

// Book validates the request against the tenant's calendar rules and
// persists it if no conflicting appointment exists. A storage-level race
// or transient failure is retried once.
func (m *Manager) Book(ctx context.Context, req BookRequest) (appt model.Appointment, err error) {
	ctx, span := m.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("service.id", req.ServiceID),
	))
	defer func() { endSpan(span, err) }()

	settings, err := m.loadSettings(ctx, req.TenantID)
	if err != nil {
		return model.Appointment{}, err
	}
	service, err := m.loadService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := m.checkPeople(ctx, req); err != nil {
		return model.Appointment{}, err
	}
	if err := checkBookable(settings, service, req.StartTime, m.now()); err != nil {
		return model.Appointment{}, err
	}

	candidate := model.Appointment{
		ID:         m.newID(),
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		ServiceID:  req.ServiceID,
		StaffID:    req.StaffID,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.StartTime.Add(service.Length()).UTC(),
		Status:     settings.InitialStatus(),
		Notes:      req.Notes,
	}
	guard := bookingGuard(settings, candidate)
	conflict := &ConflictError{TenantID: req.TenantID, StaffID: req.StaffID, Start: candidate.StartTime, End: candidate.EndTime}

	for attempt := 1; ; attempt++ {
		created, err := m.repo.InsertIfNoConflict(ctx, candidate, guard)
		retryable := errors.Is(err, storage.ErrConflictRace) || errors.Is(err, storage.ErrTransient)
		switch {
		case err == nil:
			m.logger.InfoContext(ctx, "appointment booked",
				"tenant_id", created.TenantID,
				"appointment_id", created.ID,
				"staff_id", created.StaffID,
				"start_time", created.StartTime,
				"status", created.Status,
			)
			return created, nil
		case errors.Is(err, storage.ErrConflict):
			return model.Appointment{}, conflict
		case retryable && attempt < maxBookAttempts:
			m.logger.WarnContext(ctx, "booking attempt failed, retrying",
				"tenant_id", req.TenantID, "attempt", attempt, "err", err)
		case errors.Is(err, storage.ErrConflictRace):
			return model.Appointment{}, conflict
		case errors.Is(err, storage.ErrTransient):
			return model.Appointment{}, &TransientError{Op: "book", Err: err}
		default:
			return model.Appointment{}, err
		}
	}
}

// bookingGuard locks every tenant-local day the buffered candidate touches
// and examines every appointment whose buffered span could reach into the
// day of the start.
func bookingGuard(settings model.TenantSettings, candidate model.Appointment) storage.Guard {
	loc := settings.Location()
	buffer := settings.Buffer()
	day := model.DateOf(candidate.StartTime, loc)
	dayStart, dayEnd := day.Bounds(loc)
	span := availability.Interval{Start: candidate.StartTime, End: candidate.EndTime}

	return storage.Guard{
		Key:    storage.LockKey{TenantID: candidate.TenantID, StaffID: candidate.StaffID, Day: day},
		Days:   touchedDays(candidate.StartTime.Add(-buffer), candidate.EndTime.Add(buffer), loc),
		From:   minTime(dayStart, candidate.StartTime).Add(-buffer),
		To:     maxTime(dayEnd, candidate.EndTime).Add(buffer),
		Buffer: buffer,
		Conflict: func(existing []model.Appointment) bool {
			_, hit := availability.ConflictsWith(span, candidate.StaffID, existing, buffer)
			return hit
		},
	}
}

// touchedDays lists the tenant-local days [from, to) falls on.
func touchedDays(from, to time.Time, loc *time.Location) []model.Date {
	first := model.DateOf(from, loc)
	last := model.DateOf(to.Add(-time.Nanosecond), loc)
	days := []model.Date{first}
	for d := first; d != last; {
		d = d.AddDays(1)
		days = append(days, d)
	}
	return days
}

func checkBookable(settings model.TenantSettings, service model.Service, start, now time.Time) error {
	if !start.After(now) {
		return invalid("start_time", "must be in the future")
	}
	loc := settings.Location()
	date := model.DateOf(start, loc)
	if !availability.WithinHorizon(settings, date, now) {
		return invalid("start_time", "is more than %d days ahead", settings.AdvanceBookingDays)
	}
	opens, closes, ok := settings.Window(date)
	if !ok {
		return invalid("start_time", "business is closed on %s", date.Weekday())
	}
	if start.Before(opens) || start.Add(availability.BlockLength(settings, service)).After(closes) {
		return invalid("start_time", "must fall within business hours %s-%s",
			opens.In(loc).Format("15:04"), closes.In(loc).Format("15:04"))
	}
	return nil
}

func (m *Manager) checkPeople(ctx context.Context, req BookRequest) error {
	if m.directory == nil {
		return nil
	}
	ok, err := m.directory.HasCustomer(ctx, req.TenantID, req.CustomerID)
	if err != nil {
		return lookupError("customer", req.CustomerID, err)
	}
	if !ok {
		return &NotFoundError{Entity: "customer", ID: req.CustomerID}
	}
	if req.StaffID == "" {
		return nil
	}
	ok, err = m.directory.HasStaff(ctx, req.TenantID, req.StaffID)
	if err != nil {
		return lookupError("staff", req.StaffID, err)
	}
	if !ok {
		return &NotFoundError{Entity: "staff", ID: req.StaffID}
	}
	return nil
}

func (m *Manager) Confirm(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	return m.transition(ctx, tenantID, id, ActionConfirm, nil)
}

func (m *Manager) Cancel(ctx context.Context, tenantID, id, reason string) (model.Appointment, error) {
	return m.transition(ctx, tenantID, id, ActionCancel, func(a *model.Appointment, now time.Time) error {
		a.CancelReason = reason
		a.CancelledAt = &now
		return nil
	})
}

// Complete requires the appointment to have ended.
func (m *Manager) Complete(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	return m.transition(ctx, tenantID, id, ActionComplete, func(a *model.Appointment, now time.Time) error {
		if now.Before(a.EndTime) {
			return &InvalidTransitionError{From: model.StatusConfirmed, To: model.StatusCompleted, Reason: "appointment has not ended yet"}
		}
		a.CompletedAt = &now
		return nil
	})
}

// MarkNoShow requires the appointment to have started.
func (m *Manager) MarkNoShow(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	return m.transition(ctx, tenantID, id, ActionNoShow, func(a *model.Appointment, now time.Time) error {
		if now.Before(a.StartTime) {
			return &InvalidTransitionError{From: model.StatusConfirmed, To: model.StatusNoShow, Reason: "appointment has not started yet"}
		}
		return nil
	})
}

// Apply runs action by name; used by adapters that route on the action.
func (m *Manager) Apply(ctx context.Context, tenantID, id string, action Action, reason string) (model.Appointment, error) {
	switch action {
	case ActionConfirm:
		return m.Confirm(ctx, tenantID, id)
	case ActionCancel:
		return m.Cancel(ctx, tenantID, id, reason)
	case ActionComplete:
		return m.Complete(ctx, tenantID, id)
	case ActionNoShow:
		return m.MarkNoShow(ctx, tenantID, id)
	}
	return model.Appointment{}, invalid("action", "unknown action %q", action)
}

func (m *Manager) transition(ctx context.Context, tenantID, id string, action Action, apply func(*model.Appointment, time.Time) error) (appt model.Appointment, err error) {
	ctx, span := m.tracer.Start(ctx, "booking."+string(action), trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("appointment.id", id),
	))
	defer func() { endSpan(span, err) }()

	now := m.now().UTC()
	var from model.Status
	appt, err = m.repo.UpdateStatus(ctx, tenantID, id, func(a *model.Appointment) error {
		from = a.Status
		next, err := Next(a.Status, action)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(a, now); err != nil {
				return err
			}
		}
		a.Status = next
		return nil
	})
	if err != nil {
		var ite *InvalidTransitionError
		if errors.As(err, &ite) {
			return model.Appointment{}, err
		}
		return model.Appointment{}, lookupError("appointment", id, err)
	}

	m.logger.InfoContext(ctx, "appointment status changed",
		"tenant_id", tenantID,
		"appointment_id", id,
		"from", from,
		"to", appt.Status,
	)
	return appt, nil
}

func (m *Manager) Get(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	appt, err := m.repo.Get(ctx, tenantID, id)
	if err != nil {
		return model.Appointment{}, lookupError("appointment", id, err)
	}
	return appt, nil
}

// ListDay returns the tenant's appointments starting on date (tenant-local),
// every status included. A staffID narrows the list to that staff member.
func (m *Manager) ListDay(ctx context.Context, tenantID string, date model.Date, staffID string) ([]model.Appointment, error) {
	settings, err := m.loadSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	from, to := date.Bounds(settings.Location())
	appts, err := m.repo.ListByTenantAndDay(ctx, tenantID, from, to, staffID)
	if err != nil {
		return nil, lookupError("appointments", date.String(), err)
	}
	out := appts[:0]
	for _, a := range appts {
		if a.StartTime.Before(from) || (staffID != "" && a.StaffID != staffID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type SlotQuery struct {
	TenantID  string
	ServiceID string
	StaffID   string
	Date      model.Date
}

// Slots computes the day's grid. A tenant without settings has no
// bookable time and gets an empty result rather than an error.
func (m *Manager) Slots(ctx context.Context, q SlotQuery) (slots []availability.Slot, err error) {
	ctx, span := m.tracer.Start(ctx, "booking.Slots", trace.WithAttributes(
		attribute.String("tenant.id", q.TenantID),
		attribute.String("date", q.Date.String()),
	))
	defer func() { endSpan(span, err) }()

	settings, err := m.loadSettings(ctx, q.TenantID)
	if errors.Is(err, ErrConfiguration) {
		m.logger.WarnContext(ctx, "slots requested for unconfigured tenant", "tenant_id", q.TenantID)
		return []availability.Slot{}, nil
	}
	if err != nil {
		return nil, err
	}
	service, err := m.loadService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, err
	}

	loc := settings.Location()
	from, to := q.Date.Bounds(loc)
	existing, err := m.repo.ListByTenantAndDay(ctx, q.TenantID, from.Add(-settings.Buffer()), to.Add(settings.Buffer()), q.StaffID)
	if err != nil {
		return nil, lookupError("appointments", q.Date.String(), err)
	}

	slots = availability.ComputeSlots(availability.Query{
		Settings: settings,
		Service:  service,
		Existing: existing,
		Date:     q.Date,
		StaffID:  q.StaffID,
		Now:      m.now(),
	})
	if slots == nil {
		slots = []availability.Slot{}
	}
	return slots, nil
}

func (m *Manager) loadSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	s, err := m.settings.GetSettings(ctx, tenantID)
	switch {
	case err == nil:
		return s, nil
	case storage.IsNotFound(err):
		return model.TenantSettings{}, &ConfigurationError{TenantID: tenantID}
	default:
		return model.TenantSettings{}, lookupError("settings", tenantID, err)
	}
}

func (m *Manager) loadService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	svc, err := m.services.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return model.Service{}, lookupError("service", serviceID, err)
	}
	if !svc.Active {
		return model.Service{}, invalid("service_id", "service is not active")
	}
	if svc.Duration <= 0 {
		return model.Service{}, invalid("service_id", "service has no duration")
	}
	return svc, nil
}

// lookupError maps repository failures onto the engine taxonomy.
func lookupError(entity, id string, err error) error {
	switch {
	case storage.IsNotFound(err):
		return &NotFoundError{Entity: entity, ID: id}
	case storage.IsTransient(err):
		return &TransientError{Op: "load " + entity, Err: err}
	default:
		return fmt.Errorf("load %s %s: %w", entity, id, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
