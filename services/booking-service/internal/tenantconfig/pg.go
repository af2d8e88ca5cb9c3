package tenantconfig

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/shopspring/decimal"
)

// PGStore reads tenant configuration from the tenants, tenant_settings,
// services, customers and users tables. Inactive tenants are reported as
// not found.
type PGStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPGStore(pool *db.Pool, outboxRepo *outbox.Repository) *PGStore {
	return &PGStore{pool: pool, outbox: outboxRepo}
}

func (s *PGStore) GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	var (
		out   model.TenantSettings
		hours []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT ts.tenant_id::text, ts.timezone, ts.business_hours, ts.slot_duration, ts.buffer_time,
			ts.advance_booking_days, ts.auto_confirm, ts.updated_at
		FROM tenant_settings ts
		JOIN tenants t ON t.id = ts.tenant_id
		WHERE ts.tenant_id = $1 AND t.is_active
	`, tenantID).Scan(&out.TenantID, &out.Timezone, &hours, &out.SlotDuration, &out.BufferTime,
		&out.AdvanceBookingDays, &out.AutoConfirm, &out.UpdatedAt)
	if err != nil {
		return model.TenantSettings{}, storage.Classify("get settings", err)
	}
	if err := json.Unmarshal(hours, &out.BusinessHours); err != nil {
		return model.TenantSettings{}, fmt.Errorf("decode business hours for tenant %s: %w", tenantID, err)
	}
	return out, nil
}

// UpsertSettings stores settings and queues a settings-updated event in the
// same transaction so other replicas drop their cached copy.
func (s *PGStore) UpsertSettings(ctx context.Context, in model.TenantSettings) (model.TenantSettings, error) {
	hours, err := json.Marshal(in.BusinessHours)
	if err != nil {
		return model.TenantSettings{}, fmt.Errorf("encode business hours: %w", err)
	}

	out := in
	err = s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var active bool
		if err := tx.QueryRow(ctx, `SELECT is_active FROM tenants WHERE id = $1`, in.TenantID).Scan(&active); err != nil {
			return err
		}
		if !active {
			return storage.ErrNotFound
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO tenant_settings
				(tenant_id, timezone, business_hours, slot_duration, buffer_time, advance_booking_days, auto_confirm)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id) DO UPDATE
			SET timezone = EXCLUDED.timezone,
				business_hours = EXCLUDED.business_hours,
				slot_duration = EXCLUDED.slot_duration,
				buffer_time = EXCLUDED.buffer_time,
				advance_booking_days = EXCLUDED.advance_booking_days,
				auto_confirm = EXCLUDED.auto_confirm,
				updated_at = now()
			RETURNING updated_at
		`, in.TenantID, in.Timezone, hours, in.SlotDuration, in.BufferTime,
			in.AdvanceBookingDays, in.AutoConfirm).Scan(&out.UpdatedAt); err != nil {
			return err
		}

		payload, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		return s.outbox.Insert(ctx, tx, outbox.Event{
			TenantID:      in.TenantID,
			AggregateType: "tenant_settings",
			AggregateID:   in.TenantID,
			EventType:     outbox.SettingsUpdated,
			Payload:       payload,
		})
	})
	if err != nil {
		return model.TenantSettings{}, storage.Classify("upsert settings", err)
	}
	return out, nil
}

func (s *PGStore) GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	var (
		svc   model.Service
		price string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, COALESCE(description, ''), duration, price::text, is_active
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID).Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.Description, &svc.Duration, &price, &svc.Active)
	if err != nil {
		return model.Service{}, storage.Classify("get service", err)
	}
	if svc.Price, err = decimal.NewFromString(price); err != nil {
		return model.Service{}, fmt.Errorf("decode price of service %s: %w", serviceID, err)
	}
	return svc, nil
}

func (s *PGStore) HasCustomer(ctx context.Context, tenantID, customerID string) (bool, error) {
	return s.exists(ctx, "check customer", `
		SELECT EXISTS (SELECT 1 FROM customers WHERE tenant_id = $1 AND id = $2)
	`, tenantID, customerID)
}

// HasStaff accepts any active user of the tenant; owners and admins take
// appointments too.
func (s *PGStore) HasStaff(ctx context.Context, tenantID, staffID string) (bool, error) {
	return s.exists(ctx, "check staff", `
		SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id = $1 AND id = $2 AND is_active)
	`, tenantID, staffID)
}

func (s *PGStore) exists(ctx context.Context, op, query string, args ...any) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, storage.Classify(op, err)
	}
	return ok, nil
}
