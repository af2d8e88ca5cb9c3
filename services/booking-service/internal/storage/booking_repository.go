package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/outbox"
)

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `id::text, tenant_id::text, customer_id::text, service_id::text, COALESCE(staff_id::text, ''),
	start_time, end_time, status, COALESCE(notes, ''), COALESCE(cancel_reason, ''),
	created_at, updated_at, cancelled_at, completed_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.CustomerID, &a.ServiceID, &a.StaffID,
		&a.StartTime, &a.EndTime, &a.Status, &a.Notes, &a.CancelReason,
		&a.CreatedAt, &a.UpdatedAt, &a.CancelledAt, &a.CompletedAt)
	return a, err
}

// InsertIfNoConflict serializes on the guard's advisory locks, reads the
// affected appointments, asks the guard whether the new one conflicts and
// inserts it if not, all in one transaction. The outbox event is written
// in the same transaction.
func (r *BookingRepository) InsertIfNoConflict(ctx context.Context, appt model.Appointment, g Guard) (model.Appointment, error) {
	var created model.Appointment
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, key := range g.lockKeys() {
			if err := lockGuard(ctx, tx, key); err != nil {
				return err
			}
		}

		existing, err := listOverlapping(ctx, tx, g.Key.TenantID, g.From, g.To, g.Key.StaffID, true)
		if err != nil {
			return err
		}
		if g.Conflict != nil && g.Conflict(existing) {
			return ErrConflict
		}

		created, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments
				(id, tenant_id, customer_id, service_id, staff_id, start_time, end_time, blocked_until, status, notes)
			VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8, $9, NULLIF($10, ''))
			RETURNING `+appointmentColumns,
			appt.ID, appt.TenantID, appt.CustomerID, appt.ServiceID, appt.StaffID,
			appt.StartTime, appt.EndTime, appt.EndTime.Add(g.Buffer), appt.Status, appt.Notes))
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, outbox.AppointmentBooked, created)
	})
	if errors.Is(err, ErrConflict) {
		return model.Appointment{}, ErrConflict
	}
	return created, Classify("insert appointment", err)
}

func lockGuard(ctx context.Context, tx pgx.Tx, key LockKey) error {
	if key.StaffID == "" {
		_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.dayKey())
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared(hashtext($1))`, key.dayKey()); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String())
	return err
}

// UpdateStatus loads the appointment under a row lock, lets mutate decide
// the transition and persists the result. An error from mutate aborts the
// update and is returned unchanged.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tenantID, id string, mutate func(*model.Appointment) error) (model.Appointment, error) {
	var updated model.Appointment
	var mutateErr error
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		appt, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE tenant_id = $1 AND id = $2
			FOR UPDATE
		`, tenantID, id))
		if err != nil {
			return err
		}

		before := appt.Status
		if mutateErr = mutate(&appt); mutateErr != nil {
			return mutateErr
		}
		if appt.Status == before {
			updated = appt
			return nil
		}

		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $3,
				cancel_reason = NULLIF($4, ''),
				cancelled_at = $5,
				completed_at = $6,
				updated_at = now()
			WHERE tenant_id = $1 AND id = $2
			RETURNING `+appointmentColumns,
			tenantID, id, appt.Status, appt.CancelReason, appt.CancelledAt, appt.CompletedAt))
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, eventTypeFor(updated.Status), updated)
	})
	if mutateErr != nil {
		return model.Appointment{}, mutateErr
	}
	return updated, Classify("update appointment", err)
}

func (r *BookingRepository) Get(ctx context.Context, tenantID, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
	return appt, Classify("get appointment", err)
}

// ListByTenantAndDay returns appointments of every status overlapping
// [from, to), ordered by start. An empty staffID lists the whole tenant;
// otherwise the staff member's and the unassigned appointments are listed.
func (r *BookingRepository) ListByTenantAndDay(ctx context.Context, tenantID string, from, to time.Time, staffID string) ([]model.Appointment, error) {
	appts, err := listOverlapping(ctx, r.pool, tenantID, from, to, staffID, false)
	return appts, Classify("list appointments", err)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listOverlapping(ctx context.Context, q querier, tenantID string, from, to time.Time, staffID string, activeOnly bool) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR staff_id IS NULL OR staff_id = NULLIF($4, '')::uuid)
			AND (NOT $5 OR status <> 'CANCELLED')
		ORDER BY start_time ASC
	`, tenantID, from, to, staffID, activeOnly)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}

func (r *BookingRepository) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	payload, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		TenantID:      appt.TenantID,
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func eventTypeFor(s model.Status) string {
	switch s {
	case model.StatusConfirmed:
		return outbox.AppointmentConfirmed
	case model.StatusCancelled:
		return outbox.AppointmentCancelled
	case model.StatusCompleted:
		return outbox.AppointmentCompleted
	case model.StatusNoShow:
		return outbox.AppointmentNoShow
	default:
		return outbox.AppointmentBooked
	}
}
