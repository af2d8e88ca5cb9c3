// Package seed loads demo tenants from a JSON fixture into either the
// in-memory stores or postgres.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/tenantconfig"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type staffFixture struct {
	validate.StaffInput
	Password string `json:"password"`
}

type tenantFixture struct {
	validate.TenantInput
	Settings  *validate.SettingsInput  `json:"settings"`
	Services  []validate.ServiceInput  `json:"services"`
	Customers []validate.CustomerInput `json:"customers"`
	Staff     []staffFixture           `json:"staff"`
}

type fixtureFile struct {
	Tenants []tenantFixture `json:"tenants"`
}

type StaffMember struct {
	model.Staff
	PasswordHash string
}

// Tenant is a validated fixture entry. Settings is nil for a tenant that
// was provisioned without booking configuration.
type Tenant struct {
	model.Tenant
	Settings  *model.TenantSettings
	Services  []model.Service
	Customers []model.Customer
	Staff     []StaffMember
}

type Fixture struct {
	Tenants []Tenant
}

// Load decodes and validates a fixture. Field errors are prefixed with the
// tenant's position so a bad file points at the offending entry.
func Load(r io.Reader) (Fixture, error) {
	var raw fixtureFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}

	var out Fixture
	for i, tf := range raw.Tenants {
		t, err := loadTenant(tf)
		if err != nil {
			return Fixture{}, fmt.Errorf("tenants[%d]: %w", i, err)
		}
		out.Tenants = append(out.Tenants, t)
	}
	return out, nil
}

func loadTenant(tf tenantFixture) (Tenant, error) {
	tenant, err := validate.Tenant(tf.TenantInput)
	if err != nil {
		return Tenant{}, err
	}
	out := Tenant{Tenant: tenant}

	if tf.Settings != nil {
		s, err := validate.Settings(tenant.ID, *tf.Settings)
		if err != nil {
			return Tenant{}, fmt.Errorf("settings: %w", err)
		}
		out.Settings = &s
	}
	for i, in := range tf.Services {
		svc, err := validate.Service(tenant.ID, in)
		if err != nil {
			return Tenant{}, fmt.Errorf("services[%d]: %w", i, err)
		}
		out.Services = append(out.Services, svc)
	}
	for i, in := range tf.Customers {
		c, err := validate.Customer(tenant.ID, in)
		if err != nil {
			return Tenant{}, fmt.Errorf("customers[%d]: %w", i, err)
		}
		out.Customers = append(out.Customers, c)
	}
	for i, in := range tf.Staff {
		st, err := validate.Staff(tenant.ID, in.StaffInput)
		if err != nil {
			return Tenant{}, fmt.Errorf("staff[%d]: %w", i, err)
		}
		member := StaffMember{Staff: st}
		if in.Password != "" {
			if len(in.Password) < minPasswordLength {
				return Tenant{}, fmt.Errorf("staff[%d]: %w", i, &booking.ValidationError{Fields: []booking.FieldError{
					{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)},
				}})
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
			if err != nil {
				return Tenant{}, fmt.Errorf("staff[%d]: hash password: %w", i, err)
			}
			member.PasswordHash = string(hash)
		}
		out.Staff = append(out.Staff, member)
	}
	return out, nil
}

// ApplyMemory registers the fixture with the in-memory configuration store.
func (f Fixture) ApplyMemory(ctx context.Context, store *tenantconfig.StaticStore) error {
	for _, t := range f.Tenants {
		if t.Settings != nil {
			if _, err := store.UpsertSettings(ctx, *t.Settings); err != nil {
				return err
			}
		}
		for _, svc := range t.Services {
			store.PutService(svc)
		}
		for _, c := range t.Customers {
			store.PutCustomer(c)
		}
		for _, st := range t.Staff {
			store.PutStaff(st.Staff)
		}
	}
	return nil
}

// ApplyPostgres upserts the fixture in one transaction. Rerunning it is
// safe; existing rows are refreshed in place.
func (f Fixture) ApplyPostgres(ctx context.Context, pool *db.Pool) error {
	return pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, t := range f.Tenants {
			if err := applyTenant(ctx, tx, t); err != nil {
				return fmt.Errorf("tenant %s: %w", t.Subdomain, err)
			}
		}
		return nil
	})
}

func applyTenant(ctx context.Context, tx pgx.Tx, t Tenant) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO tenants (id, name, subdomain, plan, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, subdomain = EXCLUDED.subdomain, plan = EXCLUDED.plan, updated_at = now()
	`, t.ID, t.Name, t.Subdomain, string(t.Plan)); err != nil {
		return err
	}

	if s := t.Settings; s != nil {
		hours, err := json.Marshal(s.BusinessHours)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
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
		`, s.TenantID, s.Timezone, hours, s.SlotDuration, s.BufferTime, s.AdvanceBookingDays, s.AutoConfirm); err != nil {
			return err
		}
	}

	for _, svc := range t.Services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, description, duration, price, is_active)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6::numeric, $7)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description, duration = EXCLUDED.duration,
				price = EXCLUDED.price, is_active = EXCLUDED.is_active
		`, svc.ID, svc.TenantID, svc.Name, svc.Description, svc.Duration, svc.Price.StringFixed(2), svc.Active); err != nil {
			return err
		}
	}

	for _, c := range t.Customers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO customers (id, tenant_id, name, email, phone)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
		`, c.ID, c.TenantID, c.Name, c.Email, c.Phone); err != nil {
			return err
		}
	}

	for _, st := range t.Staff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, tenant_id, email, name, password_hash, role, is_active)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET email = EXCLUDED.email, name = EXCLUDED.name, role = EXCLUDED.role, is_active = EXCLUDED.is_active,
				password_hash = COALESCE(EXCLUDED.password_hash, users.password_hash)
		`, st.ID, st.TenantID, st.Email, st.Name, st.PasswordHash, st.Role, st.Active); err != nil {
			return err
		}
	}
	return nil
}
