package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
)

// SettingsStore returns storage.ErrNotFound for unknown or inactive
// tenants.
type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
}

// ServiceCatalog returns storage.ErrNotFound for services outside the
// tenant.
type ServiceCatalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
}

// Directory answers whether referenced people belong to the tenant.
type Directory interface {
	HasCustomer(ctx context.Context, tenantID, customerID string) (bool, error)
	HasStaff(ctx context.Context, tenantID, staffID string) (bool, error)
}

// Repository is the appointment source of truth.
type Repository interface {
	InsertIfNoConflict(ctx context.Context, appt model.Appointment, g storage.Guard) (model.Appointment, error)
	UpdateStatus(ctx context.Context, tenantID, id string, mutate func(*model.Appointment) error) (model.Appointment, error)
	Get(ctx context.Context, tenantID, id string) (model.Appointment, error)
	ListByTenantAndDay(ctx context.Context, tenantID string, from, to time.Time, staffID string) ([]model.Appointment, error)
}
